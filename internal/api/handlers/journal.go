package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/internal/journal"
	"github.com/edgewise/journal/pkg/logger"
)

// JournalHandler handles daily journal endpoints
type JournalHandler struct {
	repo   *journal.Repository
	logger *logger.Logger
}

// NewJournalHandler creates a new journal handler
func NewJournalHandler(repo *journal.Repository, log *logger.Logger) *JournalHandler {
	return &JournalHandler{repo: repo, logger: log}
}

// pathDate extracts and validates the {date} path variable
func pathDate(r *http.Request) (string, bool) {
	raw := mux.Vars(r)["date"]
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return "", false
	}
	return raw, true
}

// ListDates handles GET /api/journal/dates
func (h *JournalHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
			return
		}
	}

	dates, err := h.repo.ListDates(r.Context(), UserID(r.Context()), start, end)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list journal dates")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dates": dates,
		"count": len(dates),
	})
}

// Get handles GET /api/journal/{date}
func (h *JournalHandler) Get(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}
	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account_id")
		return
	}

	entry, err := h.repo.Get(r.Context(), UserID(r.Context()), date, accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// journalRequest is the upsert-journal payload
type journalRequest struct {
	AccountID *int64 `json:"account_id"`
	Title     string `json:"title"`
	NotesMD   string `json:"notes_md"`
	Reviewed  bool   `json:"reviewed"`
}

// Upsert handles PUT /api/journal/{date}. One entry per user, date and
// account; a repeat PUT overwrites in place.
func (h *JournalHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	var req journalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry := &contracts.JournalEntry{
		UserID:    UserID(r.Context()),
		AccountID: req.AccountID,
		Date:      date,
		Title:     req.Title,
		NotesMD:   req.NotesMD,
		Reviewed:  req.Reviewed,
	}

	if err := h.repo.Upsert(r.Context(), entry); err != nil {
		h.logger.WithError(err).Error("Failed to upsert journal entry")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// Delete handles DELETE /api/journal/{date}
func (h *JournalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}
	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account_id")
		return
	}

	if err := h.repo.Delete(r.Context(), UserID(r.Context()), date, accountID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "date": date})
}

// tradesRequest is the set-journal-trades payload. An empty list
// clears the entry's links.
type tradesRequest struct {
	TradeIDs []int64 `json:"trade_ids"`
}

// SetTrades handles POST /api/journal/{id}/trades, replacing the
// entry's trade links. Trades not owned by the caller are dropped.
func (h *JournalHandler) SetTrades(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid journal ID")
		return
	}

	var req tradesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	linked, err := h.repo.SetTrades(r.Context(), UserID(r.Context()), id, req.TradeIDs)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"journal_id": id,
		"trade_ids":  linked,
	})
}
