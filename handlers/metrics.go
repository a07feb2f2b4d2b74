package handlers

import (
	"net/http"

	"creatorreach/internal/database"
	"creatorreach/models"
	"creatorreach/services/bot"
)

// MetricsHandler aggregates counters for the dashboard charts.
type MetricsHandler struct {
	store *database.Store
	bot   *bot.Service
}

// NewMetricsHandler creates a metrics handler.
func NewMetricsHandler(store *database.Store, botSvc *bot.Service) *MetricsHandler {
	return &MetricsHandler{store: store, bot: botSvc}
}

// MetricsResponse is the aggregate view across all sessions plus the live one.
type MetricsResponse struct {
	Totals   database.SessionTotals      `json:"totals"`
	Creators map[models.InviteStatus]int `json:"creators"`
	Current  bot.Status                  `json:"current"`
}

// Get returns aggregate metrics.
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	totals, err := h.store.Sessions.Totals()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	counts, err := h.store.Creators.StatusCounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	current, err := h.bot.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MetricsResponse{
		Totals:   totals,
		Creators: counts,
		Current:  current,
	})
}
