package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewise/journal/internal/enforcement"
	"github.com/edgewise/journal/internal/trade"
)

func TestUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	assert.Equal(t, int64(42), UserID(ctx))
	assert.Zero(t, UserID(context.Background()), "unset context yields zero")
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestRespondServiceErrorRejection(t *testing.T) {
	w := httptest.NewRecorder()
	respondServiceError(w, &enforcement.Rejection{
		RuleKey:  "loss_streak_day",
		Message:  "Daily loss streak: 3 consecutive losses (max: 2)",
		Observed: 3,
		Limit:    2,
	})

	assert.Equal(t, 403, w.Code)

	var body rejectionPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "blocked", body.Error)
	assert.Equal(t, "loss_streak_day", body.RuleKey)
	assert.Equal(t, 3.0, body.Observed)
	assert.Equal(t, 2.0, body.Limit)
}

func TestRespondServiceErrorNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	respondServiceError(w, trade.ErrNotFound)
	assert.Equal(t, 404, w.Code)
}

func TestRespondServiceErrorInternal(t *testing.T) {
	w := httptest.NewRecorder()
	respondServiceError(w, errors.New("connection refused"))
	assert.Equal(t, 500, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"], "internals are not leaked")
}
