package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/edgewise/journal/internal/api/handlers"
	"github.com/edgewise/journal/pkg/logger"
)

// requestIDMiddleware tags every request with an ID for log correlation.
// An inbound X-Request-ID is honored so IDs survive a proxy hop.
func requestIDMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			next.ServeHTTP(w, r.WithContext(handlers.WithRequestID(r.Context(), id)))
		})
	}
}

// identityMiddleware resolves the acting user from the X-User-ID header
// set by the fronting auth proxy. Requests without it get 401.
func identityMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-User-ID")
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				log.WithField("path", r.URL.Path).Warn("Request without valid user identity")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Missing or invalid X-User-ID header",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(handlers.WithUserID(r.Context(), userID)))
		})
	}
}

// rateLimitMiddleware applies a global token-bucket limit
func rateLimitMiddleware(rps float64, burst int) mux.MiddlewareFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
