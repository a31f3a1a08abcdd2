package handlers

import (
	"net/http"
	"time"

	"github.com/edgewise/journal/internal/calendar"
	"github.com/edgewise/journal/pkg/logger"
)

// CalendarHandler handles the discipline calendar endpoint
type CalendarHandler struct {
	service *calendar.Service
	logger  *logger.Logger
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(service *calendar.Service, log *logger.Logger) *CalendarHandler {
	return &CalendarHandler{service: service, logger: log}
}

// Range handles GET /api/calendar?start=YYYY-MM-DD&end=YYYY-MM-DD.
// An optional tz parameter (IANA name) picks the day-bucketing zone;
// the default is UTC, matching how enforcement buckets days.
func (h *CalendarHandler) Range(w http.ResponseWriter, r *http.Request) {
	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Unknown timezone: "+tz)
			return
		}
	}

	start, err := queryDate(r, "start", loc)
	if err != nil || start == nil {
		respondError(w, http.StatusBadRequest, "start is required (YYYY-MM-DD)")
		return
	}
	end, err := queryDate(r, "end", loc)
	if err != nil || end == nil {
		respondError(w, http.StatusBadRequest, "end is required (YYYY-MM-DD)")
		return
	}
	if end.Before(*start) {
		respondError(w, http.StatusBadRequest, "end must not precede start")
		return
	}

	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account_id")
		return
	}

	view, err := h.service.Range(r.Context(), UserID(r.Context()), accountID, *start, *end, loc)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build calendar range")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"days":    view.Days,
		"count":   len(view.Days),
		"summary": view.Summary,
	})
}
