package handlers

import (
	"net/http"

	"creatorreach/models"
	"creatorreach/services/activity"
)

// ActivitiesHandler exposes the audit log to the dashboard.
type ActivitiesHandler struct {
	activities *activity.Service
}

// NewActivitiesHandler creates an activities handler.
func NewActivitiesHandler(activities *activity.Service) *ActivitiesHandler {
	return &ActivitiesHandler{activities: activities}
}

// Recent returns the newest activities, most recent first.
func (h *ActivitiesHandler) Recent(w http.ResponseWriter, r *http.Request) {
	activities, err := h.activities.Recent(queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}
