package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/edgewise/journal/internal/account"
	"github.com/edgewise/journal/internal/breach"
	"github.com/edgewise/journal/internal/enforcement"
	"github.com/edgewise/journal/internal/journal"
	"github.com/edgewise/journal/internal/playbook"
	"github.com/edgewise/journal/internal/trade"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	requestIDKey contextKey = "request_id"
)

// WithUserID stores the authenticated user on the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user from the context, 0 if unset
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

// WithRequestID stores the request correlation ID on the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request correlation ID from the context
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// validate checks request body structs against their validate tags
var validate = validator.New()

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeJSON parses and validates a request body into dst. It responds
// with 400 itself and returns false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

// pathID extracts the numeric {id} path variable
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// queryInt64 parses an optional int64 query parameter
func queryInt64(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// queryBool parses an optional boolean query parameter
func queryBool(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter
func queryDate(r *http.Request, key string, loc *time.Location) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// rejectionPayload is the 403 body for a blocked write
type rejectionPayload struct {
	Error    string  `json:"error"`
	Message  string  `json:"message"`
	RuleKey  string  `json:"rule_key"`
	Observed float64 `json:"observed"`
	Limit    float64 `json:"limit"`
}

// respondServiceError maps service-layer errors onto HTTP statuses. A
// blocked write surfaces as 403 with the full rejection payload so the
// client can render which rule fired and by how much.
func respondServiceError(w http.ResponseWriter, err error) {
	var rejection *enforcement.Rejection
	if errors.As(err, &rejection) {
		respondJSON(w, http.StatusForbidden, rejectionPayload{
			Error:    "blocked",
			Message:  rejection.Message,
			RuleKey:  rejection.RuleKey,
			Observed: rejection.Observed,
			Limit:    rejection.Limit,
		})
		return
	}

	switch {
	case errors.Is(err, playbook.ErrTemplateNotFound),
		errors.Is(err, playbook.ErrResponseNotFound),
		errors.Is(err, trade.ErrNotFound),
		errors.Is(err, breach.ErrNotFound),
		errors.Is(err, account.ErrNotFound),
		errors.Is(err, journal.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
