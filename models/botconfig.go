package models

import (
	"errors"
	"time"
)

// Outreach modes.
const (
	ModeBrowser = "browser"
	ModeAPI     = "api"
)

var (
	ErrInvalidFollowerRange = errors.New("maxFollowers must be greater than minFollowers")
	ErrInvalidDailyLimit    = errors.New("dailyInviteLimit must be positive")
)

// BotConfig is the singleton targeting and pacing configuration. Exactly one
// live row exists; updates replace fields in place rather than versioning.
type BotConfig struct {
	MinFollowers      int64     `json:"minFollowers"`
	MaxFollowers      int64     `json:"maxFollowers"`
	DailyInviteLimit  int       `json:"dailyInviteLimit"`
	ActionDelayMs     int       `json:"actionDelayMs"`     // base delay between invitations
	ActionJitterPct   float64   `json:"actionJitterPct"`   // 0.5 widens the delay to [0.5x, 1.5x]
	ErrorDelayMs      int       `json:"errorDelayMs"`      // delay after a failed invitation
	BatchErrorDelayMs int       `json:"batchErrorDelayMs"` // cool-down after a whole discovery pass fails
	EmptyBatchDelayMs int       `json:"emptyBatchDelayMs"` // backoff when discovery returns nothing
	CooldownHours     int       `json:"cooldownHours"`     // re-invite cool-down window
	Categories        []string  `json:"categories,omitempty"`
	InviteMessage     string    `json:"inviteMessage,omitempty"`
	Mode              string    `json:"mode"`
	Active            bool      `json:"active"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// DefaultBotConfig mirrors the conservative reference pacing: 30-90s between
// invitations, 10-20s after an error, 2-3min on an empty batch, 24h cool-down.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		MinFollowers:      1000,
		MaxFollowers:      1000000,
		DailyInviteLimit:  50,
		ActionDelayMs:     60000,
		ActionJitterPct:   0.5,
		ErrorDelayMs:      15000,
		BatchErrorDelayMs: 90000,
		EmptyBatchDelayMs: 150000,
		CooldownHours:     24,
		Mode:              ModeAPI,
		Active:            true,
	}
}

// Validate checks the invariants the rest of the system assumes.
func (c BotConfig) Validate() error {
	if c.MinFollowers > 0 && c.MaxFollowers > 0 && c.MaxFollowers <= c.MinFollowers {
		return ErrInvalidFollowerRange
	}
	if c.DailyInviteLimit <= 0 {
		return ErrInvalidDailyLimit
	}
	return nil
}

// ActionDelay returns the base inter-invitation delay as a duration.
func (c BotConfig) ActionDelay() time.Duration {
	return time.Duration(c.ActionDelayMs) * time.Millisecond
}

// ErrorDelay returns the post-failure delay as a duration.
func (c BotConfig) ErrorDelay() time.Duration {
	return time.Duration(c.ErrorDelayMs) * time.Millisecond
}

// BatchErrorDelay returns the cool-down after a failed discovery pass.
func (c BotConfig) BatchErrorDelay() time.Duration {
	return time.Duration(c.BatchErrorDelayMs) * time.Millisecond
}

// EmptyBatchDelay returns the empty-discovery backoff as a duration.
func (c BotConfig) EmptyBatchDelay() time.Duration {
	return time.Duration(c.EmptyBatchDelayMs) * time.Millisecond
}

// Cooldown returns the re-invite window as a duration.
func (c BotConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours) * time.Hour
}
