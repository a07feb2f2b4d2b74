package models

import "time"

// InviteStatus tracks where a creator sits in the invitation funnel.
type InviteStatus string

const (
	InviteNotInvited InviteStatus = "not_invited"
	InvitePending    InviteStatus = "pending"
	InviteSent       InviteStatus = "sent"
	InviteAccepted   InviteStatus = "accepted"
	InviteDeclined   InviteStatus = "declined"
	InviteFailed     InviteStatus = "failed"
)

// Creator is a discovered platform account, candidate for or target of an invitation.
type Creator struct {
	ID             string       `json:"id"`
	Username       string       `json:"username"` // unique key
	DisplayName    string       `json:"displayName,omitempty"`
	Followers      int64        `json:"followers"`
	Category       string       `json:"category,omitempty"`
	InviteStatus   InviteStatus `json:"inviteStatus"`
	LastInvitedAt  *time.Time   `json:"lastInvitedAt,omitempty"`
	PlatformID     string       `json:"platformId,omitempty"`
	Verified       bool         `json:"verified,omitempty"`
	EngagementRate float64      `json:"engagementRate,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// InvitedWithin reports whether the creator was last invited inside the given window.
func (c Creator) InvitedWithin(window time.Duration, now time.Time) bool {
	if c.LastInvitedAt == nil {
		return false
	}
	return now.Sub(*c.LastInvitedAt) < window
}
