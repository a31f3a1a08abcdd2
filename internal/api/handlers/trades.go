package handlers

import (
	"net/http"
	"time"

	"github.com/edgewise/journal/internal/contracts"
	"github.com/edgewise/journal/internal/trade"
	"github.com/edgewise/journal/pkg/logger"
)

// TradeHandler handles trade endpoints
type TradeHandler struct {
	service *trade.Service
	repo    *trade.Repository
	logger  *logger.Logger
}

// NewTradeHandler creates a new trade handler
func NewTradeHandler(service *trade.Service, repo *trade.Repository, log *logger.Logger) *TradeHandler {
	return &TradeHandler{service: service, repo: repo, logger: log}
}

// tradeRequest is the record-trade payload
type tradeRequest struct {
	AccountID  *int64     `json:"account_id"`
	Symbol     string     `json:"symbol" validate:"required"`
	Side       string     `json:"side" validate:"required,oneof=Buy Sell"`
	QtyUnits   *float64   `json:"qty_units"`
	EntryPrice *float64   `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price"`
	OpenTime   time.Time  `json:"open_time_utc" validate:"required"`
	CloseTime  *time.Time `json:"close_time_utc"`
	GrossPnL   *float64   `json:"gross_pnl"`
	Fees       *float64   `json:"fees"`
	NetPnL     *float64   `json:"net_pnl"`
}

// Record handles POST /api/trades. Recording a closed losing trade
// runs the daily loss streak check; under block mode a violating trade
// is rejected with 403 and only the breach event persists.
func (h *TradeHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t := &contracts.Trade{
		UserID:     UserID(r.Context()),
		AccountID:  req.AccountID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		QtyUnits:   req.QtyUnits,
		EntryPrice: req.EntryPrice,
		ExitPrice:  req.ExitPrice,
		OpenTime:   req.OpenTime,
		CloseTime:  req.CloseTime,
		GrossPnL:   req.GrossPnL,
		Fees:       req.Fees,
		NetPnL:     req.NetPnL,
	}

	result, err := h.service.Record(r.Context(), t)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	body := map[string]interface{}{"trade": result.Trade}
	if result.Warning != "" {
		body["warning"] = result.Warning
	}

	respondJSON(w, http.StatusCreated, body)
}

// List handles GET /api/trades
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account_id")
		return
	}
	start, err := queryDate(r, "start", time.UTC)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid start date (expected YYYY-MM-DD)")
		return
	}
	end, err := queryDate(r, "end", time.UTC)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid end date (expected YYYY-MM-DD)")
		return
	}

	filter := trade.ListFilter{AccountID: accountID, Start: start}
	if end != nil {
		// end is inclusive at day granularity
		e := end.AddDate(0, 0, 1)
		filter.End = &e
	}

	trades, err := h.repo.List(r.Context(), UserID(r.Context()), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list trades")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// Get handles GET /api/trades/{id}
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid trade ID")
		return
	}

	t, err := h.repo.Get(r.Context(), UserID(r.Context()), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/trades/{id}
func (h *TradeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid trade ID")
		return
	}

	if err := h.repo.Delete(r.Context(), UserID(r.Context()), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
