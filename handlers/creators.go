package handlers

import (
	"net/http"
	"strconv"

	"creatorreach/internal/database"
	"creatorreach/models"
)

// CreatorsHandler exposes the discovered-creator list to the dashboard.
type CreatorsHandler struct {
	store *database.Store
}

// NewCreatorsHandler creates a creators handler.
func NewCreatorsHandler(store *database.Store) *CreatorsHandler {
	return &CreatorsHandler{store: store}
}

// List returns the most recently touched creators.
func (h *CreatorsHandler) List(w http.ResponseWriter, r *http.Request) {
	creators, err := h.store.Creators.List(queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if creators == nil {
		creators = []models.Creator{}
	}
	writeJSON(w, http.StatusOK, creators)
}

// Invitable returns creators currently eligible for an invitation, using the
// configured cool-down window.
func (h *CreatorsHandler) Invitable(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.GetBotConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cooldown := models.DefaultBotConfig().Cooldown()
	if cfg != nil {
		cooldown = cfg.Cooldown()
	}

	creators, err := h.store.ListCreatorsForInvitation(queryLimit(r, 20), cooldown)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if creators == nil {
		creators = []models.Creator{}
	}
	writeJSON(w, http.StatusOK, creators)
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}
