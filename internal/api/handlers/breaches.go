package handlers

import (
	"net/http"

	"github.com/edgewise/journal/internal/breach"
	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/pkg/logger"
)

// BreachHandler handles breach ledger endpoints
type BreachHandler struct {
	repo   *breach.Repository
	logger *logger.Logger
}

// NewBreachHandler creates a new breach handler
func NewBreachHandler(repo *breach.Repository, log *logger.Logger) *BreachHandler {
	return &BreachHandler{repo: repo, logger: log}
}

// List handles GET /api/breaches with optional scope, acknowledged,
// start and end filters. Start/end compare against the period key,
// whose format differs per scope, so a period range requires a scope.
func (h *BreachHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter breach.ListFilter

	if raw := r.URL.Query().Get("scope"); raw != "" {
		scope := contracts.BreachScope(raw)
		if !scope.Valid() {
			respondError(w, http.StatusBadRequest, "Invalid scope (valid: trade, day, week, month)")
			return
		}
		filter.Scope = &scope
	}

	acknowledged, err := queryBool(r, "acknowledged")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid acknowledged flag")
		return
	}
	filter.Acknowledged = acknowledged
	filter.Start = r.URL.Query().Get("start")
	filter.End = r.URL.Query().Get("end")

	if (filter.Start != "" || filter.End != "") && filter.Scope == nil {
		respondError(w, http.StatusBadRequest, "scope is required when filtering by start/end")
		return
	}

	events, err := h.repo.List(r.Context(), UserID(r.Context()), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list breach events")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"breaches": events,
		"count":    len(events),
	})
}

// Acknowledge handles POST /api/breaches/{id}/ack. Idempotent: a
// second acknowledgment leaves the original timestamp in place.
func (h *BreachHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid breach ID")
		return
	}

	userID := UserID(r.Context())
	ev, err := h.repo.Acknowledge(r.Context(), userID, id, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ev)
}
