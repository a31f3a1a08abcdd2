package handlers

import (
	"net/http"

	"github.com/edgewise/journal/internal/account"
	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/pkg/logger"
)

// AccountHandler handles trading account endpoints
type AccountHandler struct {
	repo   *account.Repository
	logger *logger.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(repo *account.Repository, log *logger.Logger) *AccountHandler {
	return &AccountHandler{repo: repo, logger: log}
}

// accountRequest is the create/update account payload
type accountRequest struct {
	Name              string   `json:"name" validate:"required"`
	BrokerLabel       string   `json:"broker_label"`
	BaseCcy           string   `json:"base_ccy" validate:"omitempty,len=3"`
	Status            string   `json:"status" validate:"omitempty,oneof=active closed"`
	AccountMaxRiskPct *float64 `json:"account_max_risk_pct" validate:"omitempty,gte=0"`
}

// Create handles POST /api/accounts
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a := &contracts.Account{
		UserID:            UserID(r.Context()),
		Name:              req.Name,
		BrokerLabel:       req.BrokerLabel,
		BaseCcy:           req.BaseCcy,
		Status:            req.Status,
		AccountMaxRiskPct: req.AccountMaxRiskPct,
	}

	if err := h.repo.Create(r.Context(), a); err != nil {
		h.logger.WithError(err).Error("Failed to create account")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, a)
}

// List handles GET /api/accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.repo.List(r.Context(), UserID(r.Context()))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list accounts")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// Get handles GET /api/accounts/{id}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	a, err := h.repo.Get(r.Context(), UserID(r.Context()), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, a)
}

// Update handles PUT /api/accounts/{id}
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	var req accountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a := &contracts.Account{
		ID:                id,
		UserID:            UserID(r.Context()),
		Name:              req.Name,
		BrokerLabel:       req.BrokerLabel,
		BaseCcy:           req.BaseCcy,
		Status:            req.Status,
		AccountMaxRiskPct: req.AccountMaxRiskPct,
	}
	if a.Status == "" {
		a.Status = "active"
	}

	if err := h.repo.Update(r.Context(), a); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, a)
}

// Delete handles DELETE /api/accounts/{id}
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	if err := h.repo.Delete(r.Context(), UserID(r.Context()), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
