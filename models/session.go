package models

import "time"

// SessionStatus is the lifecycle state of an outreach session.
type SessionStatus string

const (
	SessionInitializing     SessionStatus = "initializing"
	SessionRunning          SessionStatus = "running"
	SessionPaused           SessionStatus = "paused"
	SessionStopped          SessionStatus = "stopped"
	SessionCompleted        SessionStatus = "completed"
	SessionError            SessionStatus = "error"
	SessionEmergencyStopped SessionStatus = "emergency_stopped"
)

// Session represents one run of the outreach loop, from start to a terminal state.
type Session struct {
	ID                string        `json:"id"`
	Status            SessionStatus `json:"status"`
	Mode              string        `json:"mode"` // "browser" or "api"
	StartedAt         time.Time     `json:"startedAt"`
	EndedAt           *time.Time    `json:"endedAt,omitempty"`
	InvitesSent       int           `json:"invitesSent"`
	SuccessfulInvites int           `json:"successfulInvites"`
	ErrorCount        int           `json:"errorCount"`
	ConfigSnapshot    string        `json:"configSnapshot,omitempty"` // JSON copy of the BotConfig at start
	StopReason        string        `json:"stopReason,omitempty"`
	PausedAt          *time.Time    `json:"pausedAt,omitempty"`
	ResumedAt         *time.Time    `json:"resumedAt,omitempty"`
}

// IsTerminal returns true once the session can never change state again.
func (s Session) IsTerminal() bool {
	switch s.Status {
	case SessionStopped, SessionCompleted, SessionError, SessionEmergencyStopped:
		return true
	}
	return false
}

// Uptime returns the elapsed run time of the session.
func (s Session) Uptime() time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// SuccessRate returns successful/sent as a percentage rounded to the nearest
// whole number, or 0 when nothing has been sent.
func (s Session) SuccessRate() int {
	if s.InvitesSent == 0 {
		return 0
	}
	return int(float64(s.SuccessfulInvites)/float64(s.InvitesSent)*100 + 0.5)
}
