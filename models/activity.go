package models

import "time"

// ActivityType tags an audit event. Free-form by design; these are the tags the
// core emits.
type ActivityType string

const (
	ActivityLoginSuccess     ActivityType = "login_success"
	ActivityLoginFailed      ActivityType = "login_failed"
	ActivitySessionStarted   ActivityType = "session_started"
	ActivitySessionPaused    ActivityType = "session_paused"
	ActivitySessionResumed   ActivityType = "session_resumed"
	ActivitySessionStopped   ActivityType = "session_stopped"
	ActivitySessionCompleted ActivityType = "session_completed"
	ActivityEmergencyStop    ActivityType = "emergency_stop"
	ActivityInviteSent       ActivityType = "invite_sent"
	ActivityInvitationFailed ActivityType = "invitation_failed"
	ActivitySystemError      ActivityType = "system_error"
)

// Activity is an immutable audit record. Rows are append-only; nothing ever
// mutates or deletes one.
type Activity struct {
	ID              string         `json:"id"`
	Type            ActivityType   `json:"type"`
	Description     string         `json:"description"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	SessionID       string         `json:"sessionId,omitempty"`
	CreatorUsername string         `json:"creatorUsername,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}
