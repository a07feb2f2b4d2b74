package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"creatorreach/services/bot"
	"creatorreach/services/tiktok"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeBotError maps orchestrator errors onto HTTP statuses: precondition and
// authentication failures are the caller's problem (400), anything else is
// unexpected (500). The dashboard renders the 400 text so the two classes must
// stay distinguishable.
func writeBotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bot.ErrAlreadyRunning),
		errors.Is(err, bot.ErrNotRunning),
		errors.Is(err, bot.ErrNotPaused),
		errors.Is(err, bot.ErrNoActiveSession),
		errors.Is(err, bot.ErrConfigMissing),
		errors.Is(err, bot.ErrNotInitialized),
		errors.Is(err, tiktok.ErrAuthFailed):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
