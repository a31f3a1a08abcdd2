package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/edgewise/journal/internal/api/handlers"
	"github.com/edgewise/journal/pkg/config"
	"github.com/edgewise/journal/pkg/logger"
)

// Handlers bundles the route handlers the router wires up
type Handlers struct {
	Playbooks *handlers.PlaybookHandler
	Trades    *handlers.TradeHandler
	Calendar  *handlers.CalendarHandler
	Breaches  *handlers.BreachHandler
	Settings  *handlers.SettingsHandler
	Accounts  *handlers.AccountHandler
	Journal   *handlers.JournalHandler
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1, all routes require an authenticated user
	api := r.PathPrefix("/api").Subrouter()
	api.Use(identityMiddleware(log))

	// Playbook templates and evaluation
	api.HandleFunc("/playbooks", h.Playbooks.ListTemplates).Methods("GET")
	api.HandleFunc("/playbooks", h.Playbooks.CreateTemplate).Methods("POST")
	api.HandleFunc("/playbooks/{id:[0-9]+}", h.Playbooks.GetTemplate).Methods("GET")
	api.HandleFunc("/playbooks/{id:[0-9]+}", h.Playbooks.UpdateTemplate).Methods("PUT")
	api.HandleFunc("/playbooks/{id:[0-9]+}", h.Playbooks.DeleteTemplate).Methods("DELETE")
	api.HandleFunc("/playbooks/{id:[0-9]+}/evaluate", h.Playbooks.Evaluate).Methods("POST")

	// Checklist responses
	api.HandleFunc("/playbook-responses", h.Playbooks.SubmitResponse).Methods("POST")
	api.HandleFunc("/playbook-responses", h.Playbooks.ListResponses).Methods("GET")

	// Trades
	api.HandleFunc("/trades", h.Trades.Record).Methods("POST")
	api.HandleFunc("/trades", h.Trades.List).Methods("GET")
	api.HandleFunc("/trades/{id:[0-9]+}", h.Trades.Get).Methods("GET")
	api.HandleFunc("/trades/{id:[0-9]+}", h.Trades.Delete).Methods("DELETE")

	// Daily journal
	api.HandleFunc("/journal/dates", h.Journal.ListDates).Methods("GET")
	api.HandleFunc("/journal/{date}", h.Journal.Get).Methods("GET")
	api.HandleFunc("/journal/{date}", h.Journal.Upsert).Methods("PUT")
	api.HandleFunc("/journal/{date}", h.Journal.Delete).Methods("DELETE")
	api.HandleFunc("/journal/{id:[0-9]+}/trades", h.Journal.SetTrades).Methods("POST")

	// Discipline calendar
	api.HandleFunc("/calendar", h.Calendar.Range).Methods("GET")

	// Breach ledger
	api.HandleFunc("/breaches", h.Breaches.List).Methods("GET")
	api.HandleFunc("/breaches/{id:[0-9]+}/ack", h.Breaches.Acknowledge).Methods("POST")

	// Trading rules
	api.HandleFunc("/settings/trading-rules", h.Settings.GetRules).Methods("GET")
	api.HandleFunc("/settings/trading-rules", h.Settings.PutRules).Methods("PUT")

	// Accounts
	api.HandleFunc("/accounts", h.Accounts.List).Methods("GET")
	api.HandleFunc("/accounts", h.Accounts.Create).Methods("POST")
	api.HandleFunc("/accounts/{id:[0-9]+}", h.Accounts.Get).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}", h.Accounts.Update).Methods("PUT")
	api.HandleFunc("/accounts/{id:[0-9]+}", h.Accounts.Delete).Methods("DELETE")

	// Apply middleware
	r.Use(requestIDMiddleware())
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	if cfg.RateLimit.Enabled {
		r.Use(rateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "journal-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": handlers.RequestID(r.Context()),
				"duration":   time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
