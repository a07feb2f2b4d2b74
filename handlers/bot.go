package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"creatorreach/services/bot"
	"creatorreach/services/tiktok"
)

// BotHandler exposes the session lifecycle to the dashboard.
type BotHandler struct {
	bot *bot.Service
}

// NewBotHandler creates a bot lifecycle handler.
func NewBotHandler(botSvc *bot.Service) *BotHandler {
	return &BotHandler{bot: botSvc}
}

// StartRequest carries the optional backend credentials: username/password for
// browser mode, access token for API mode.
type StartRequest struct {
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

// StopRequest carries the operator's stop reason.
type StopRequest struct {
	Reason string `json:"reason"`
}

// Start begins a new outreach session.
func (h *BotHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.bot.Start(tiktok.Credentials{
		Username:    req.Username,
		Password:    req.Password,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		writeBotError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Pause suspends the running session.
func (h *BotHandler) Pause(w http.ResponseWriter, r *http.Request) {
	session, err := h.bot.Pause()
	if err != nil {
		writeBotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Resume continues a paused session.
func (h *BotHandler) Resume(w http.ResponseWriter, r *http.Request) {
	session, err := h.bot.Resume()
	if err != nil {
		writeBotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Stop ends the active session with a reason.
func (h *BotHandler) Stop(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	session, err := h.bot.Stop(req.Reason)
	if err != nil {
		writeBotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// EmergencyStop tears everything down unconditionally. Always succeeds.
func (h *BotHandler) EmergencyStop(w http.ResponseWriter, r *http.Request) {
	h.bot.EmergencyStop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "emergency_stopped"})
}

// Status returns the current session snapshot and derived stats.
func (h *BotHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.bot.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}
