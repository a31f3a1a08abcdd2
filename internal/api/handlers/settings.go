package handlers

import (
	"net/http"

	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/internal/rules"
	"github.com/edgewise/journal/pkg/logger"
)

// SettingsHandler handles trading-rules settings endpoints
type SettingsHandler struct {
	repo   *rules.Repository
	logger *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(repo *rules.Repository, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{repo: repo, logger: log}
}

// GetRules handles GET /api/settings/trading-rules. A user who never
// saved rules gets the defaults, not a 404.
func (h *SettingsHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	tradingRules, err := h.repo.Get(r.Context(), UserID(r.Context()))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get trading rules")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tradingRules)
}

// rulesRequest is the save-trading-rules payload
type rulesRequest struct {
	MaxLossesRowDay           int    `json:"max_losses_row_day" validate:"min=0"`
	MaxLosingDaysStreakWeek   int    `json:"max_losing_days_streak_week" validate:"min=0"`
	MaxLosingWeeksStreakMonth int    `json:"max_losing_weeks_streak_month" validate:"min=0"`
	AlertsEnabled             bool   `json:"alerts_enabled"`
	EnforcementMode           string `json:"enforcement_mode" validate:"omitempty,oneof=off warn block"`
}

// PutRules handles PUT /api/settings/trading-rules
func (h *SettingsHandler) PutRules(w http.ResponseWriter, r *http.Request) {
	var req rulesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	saved, err := h.repo.Put(r.Context(), contracts.TradingRules{
		UserID:                    UserID(r.Context()),
		MaxLossesRowDay:           req.MaxLossesRowDay,
		MaxLosingDaysStreakWeek:   req.MaxLosingDaysStreakWeek,
		MaxLosingWeeksStreakMonth: req.MaxLosingWeeksStreakMonth,
		AlertsEnabled:             req.AlertsEnabled,
		EnforcementMode:           contracts.EnforcementMode(req.EnforcementMode),
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to save trading rules")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, saved)
}
