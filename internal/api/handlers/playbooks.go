package handlers

import (
	"net/http"

	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/internal/playbook"
	"github.com/edgewise/journal/pkg/logger"
)

// PlaybookHandler handles playbook template and response endpoints
type PlaybookHandler struct {
	service *playbook.Service
	repo    *playbook.Repository
	logger  *logger.Logger
}

// NewPlaybookHandler creates a new playbook handler
func NewPlaybookHandler(service *playbook.Service, repo *playbook.Repository, log *logger.Logger) *PlaybookHandler {
	return &PlaybookHandler{service: service, repo: repo, logger: log}
}

// templateRequest is the create/update template payload
type templateRequest struct {
	Name               string                    `json:"name" validate:"required"`
	Purpose            string                    `json:"purpose" validate:"omitempty,oneof=pre in post generic"`
	Schema             contracts.ChecklistSchema `json:"schema" validate:"required"`
	Active             *bool                     `json:"active"`
	GradeThresholds    contracts.GradeThresholds `json:"grade_thresholds"`
	RiskSchedule       contracts.RiskSchedule    `json:"risk_schedule"`
	TemplateMaxRiskPct *float64                  `json:"template_max_risk_pct"`
}

func (req *templateRequest) toTemplate(userID int64) *contracts.PlaybookTemplate {
	t := &contracts.PlaybookTemplate{
		UserID:             userID,
		Name:               req.Name,
		Purpose:            req.Purpose,
		Schema:             req.Schema,
		Active:             true,
		GradeThresholds:    req.GradeThresholds,
		RiskSchedule:       req.RiskSchedule,
		TemplateMaxRiskPct: req.TemplateMaxRiskPct,
	}
	if t.Purpose == "" {
		t.Purpose = "generic"
	}
	if req.Active != nil {
		t.Active = *req.Active
	}
	return t
}

// CreateTemplate handles POST /api/playbooks
func (h *PlaybookHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t := req.toTemplate(UserID(r.Context()))
	if err := t.Schema.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if t.GradeThresholds != nil {
		if err := t.GradeThresholds.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.service.CreateTemplate(r.Context(), t); err != nil {
		h.logger.WithError(err).Error("Failed to create playbook template")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

// ListTemplates handles GET /api/playbooks
func (h *PlaybookHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	templates, err := h.repo.ListTemplates(r.Context(), UserID(r.Context()), activeOnly)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list playbook templates")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	})
}

// GetTemplate handles GET /api/playbooks/{id}
func (h *PlaybookHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid template ID")
		return
	}

	t, err := h.repo.GetTemplate(r.Context(), UserID(r.Context()), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// UpdateTemplate handles PUT /api/playbooks/{id}. Every successful
// update bumps the template version.
func (h *PlaybookHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid template ID")
		return
	}

	var req templateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t := req.toTemplate(UserID(r.Context()))
	t.ID = id
	if err := t.Schema.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if t.GradeThresholds != nil {
		if err := t.GradeThresholds.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.service.UpdateTemplate(r.Context(), t); err != nil {
		h.logger.WithError(err).Error("Failed to update playbook template")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// DeleteTemplate handles DELETE /api/playbooks/{id}
func (h *PlaybookHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid template ID")
		return
	}

	if err := h.repo.DeleteTemplate(r.Context(), UserID(r.Context()), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// evaluateRequest is the dry-run evaluation payload
type evaluateRequest struct {
	TemplateVersion *int                   `json:"template_version"`
	Values          map[string]interface{} `json:"values" validate:"required"`
	IntendedRiskPct *float64               `json:"intended_risk_pct"`
	AccountID       *int64                 `json:"account_id"`
}

// Evaluate handles POST /api/playbooks/{id}/evaluate. Pure preview:
// nothing is persisted and no breach is recorded.
func (h *PlaybookHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid template ID")
		return
	}

	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	eval, err := h.service.Evaluate(r.Context(), UserID(r.Context()), playbook.EvaluateInput{
		TemplateID:      id,
		TemplateVersion: req.TemplateVersion,
		Values:          req.Values,
		IntendedRiskPct: req.IntendedRiskPct,
		AccountID:       req.AccountID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, eval)
}

// submitRequest is the persisted checklist submission payload
type submitRequest struct {
	TemplateID      int64                  `json:"template_id" validate:"required"`
	TemplateVersion *int                   `json:"template_version"`
	TradeID         *int64                 `json:"trade_id"`
	JournalID       *int64                 `json:"journal_id"`
	Values          map[string]interface{} `json:"values" validate:"required"`
	Comments        map[string]string      `json:"comments"`
	IntendedRiskPct *float64               `json:"intended_risk_pct"`
	AccountID       *int64                 `json:"account_id"`
}

// SubmitResponse handles POST /api/playbook-responses. A submission
// with an intended risk above the resolved cap is rejected with 403
// under block mode; the breach event is recorded regardless of mode.
func (h *PlaybookHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Submit(r.Context(), UserID(r.Context()), playbook.SubmitInput{
		TemplateID:      req.TemplateID,
		TemplateVersion: req.TemplateVersion,
		TradeID:         req.TradeID,
		JournalID:       req.JournalID,
		Values:          req.Values,
		Comments:        req.Comments,
		IntendedRiskPct: req.IntendedRiskPct,
		AccountID:       req.AccountID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	body := map[string]interface{}{
		"response":   result.Response,
		"evaluation": result.Evaluation,
	}
	if result.Warning != "" {
		body["warning"] = result.Warning
	}

	respondJSON(w, http.StatusOK, body)
}

// ListResponses handles GET /api/playbook-responses
func (h *PlaybookHandler) ListResponses(w http.ResponseWriter, r *http.Request) {
	tradeID, err := queryInt64(r, "trade_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid trade_id")
		return
	}
	journalID, err := queryInt64(r, "journal_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid journal_id")
		return
	}
	templateID, err := queryInt64(r, "template_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid template_id")
		return
	}

	responses, err := h.repo.ListResponses(r.Context(), UserID(r.Context()), playbook.ResponseFilter{
		TradeID:    tradeID,
		JournalID:  journalID,
		TemplateID: templateID,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list playbook responses")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"responses": responses,
		"count":     len(responses),
	})
}
