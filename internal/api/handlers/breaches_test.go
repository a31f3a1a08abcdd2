package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewise/journal/pkg/logger"
)

func listBreaches(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()

	h := NewBreachHandler(nil, logger.NewWithWriter(io.Discard, "error"))
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(WithUserID(req.Context(), 1))
	rec := httptest.NewRecorder()
	h.List(rec, req)
	return rec
}

func TestListBreachesPeriodRangeRequiresScope(t *testing.T) {
	// Period keys are scope-specific formats; a range across all scopes
	// would compare day, week and month keys lexicographically.
	for _, target := range []string{
		"/api/breaches?start=2026-01-01",
		"/api/breaches?end=2026-02",
		"/api/breaches?start=2026-W01&end=2026-W04",
	} {
		rec := listBreaches(t, target)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "scope is required when filtering by start/end", body["error"])
	}
}

func TestListBreachesRejectsUnknownScope(t *testing.T) {
	rec := listBreaches(t, "/api/breaches?scope=year")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
