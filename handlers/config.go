package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"creatorreach/internal/database"
	"creatorreach/models"
)

// ConfigHandler exposes the bot targeting configuration.
type ConfigHandler struct {
	store *database.Store
}

// NewConfigHandler creates a config handler.
func NewConfigHandler(store *database.Store) *ConfigHandler {
	return &ConfigHandler{store: store}
}

// Get returns the saved BotConfig, or 404 when none has been saved yet.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.GetBotConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "no configuration saved")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// Update merges the request body over the current configuration (or the
// defaults when none exists), validates, and saves. Fields absent from the
// body keep their current values.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	current, err := h.store.GetBotConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cfg := models.DefaultBotConfig()
	if current != nil {
		cfg = *current
	}

	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.store.SaveBotConfig(cfg)
	if err != nil {
		if errors.Is(err, models.ErrInvalidFollowerRange) || errors.Is(err, models.ErrInvalidDailyLimit) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, saved)
}
