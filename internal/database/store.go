package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"creatorreach/models"
)

// Store bundles the repositories and the few multi-table operations that must
// be transactional.
type Store struct {
	db *DB

	Sessions   *SessionRepository
	Creators   *CreatorRepository
	Activities *ActivityRepository
	BotConfig  *ConfigRepository
}

// NewStore creates a store over an open database.
func NewStore(db *DB) *Store {
	conn := db.Connection()
	return &Store{
		db:         db,
		Sessions:   NewSessionRepository(conn),
		Creators:   NewCreatorRepository(conn),
		Activities: NewActivityRepository(conn),
		BotConfig:  NewConfigRepository(conn),
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// terminalStatusArgs are the states counter updates must not touch. An outcome
// landing after the session was forced terminal (emergency stop racing an
// in-flight invitation) is still audited, but the closed session's counters
// stay frozen.
func terminalStatusArgs() []any {
	return []any{models.SessionStopped, models.SessionCompleted, models.SessionError, models.SessionEmergencyStopped}
}

// RecordInviteOutcome records one invitation attempt in a single transaction:
// session counters, the creator's invitation status, and the audit activity
// all land together or not at all. invites_sent counts every attempt so the
// per-session limit holds across pause/resume; successful_invites counts
// successes and error_count failures. Counters only move while the session is
// non-terminal; the creator update and activity land regardless.
func (s *Store) RecordInviteOutcome(sessionID string, creator models.Creator, success bool, a models.Activity) (models.Activity, error) {
	prepareActivity(&a)
	a.SessionID = sessionID
	a.CreatorUsername = creator.Username

	meta, err := encodeMetadata(a.Metadata)
	if err != nil {
		return models.Activity{}, err
	}

	tx, err := s.db.Connection().Begin()
	if err != nil {
		return models.Activity{}, fmt.Errorf("begin invite outcome: %w", err)
	}
	defer tx.Rollback()

	counterSQL := `UPDATE sessions SET invites_sent = invites_sent + 1,
		successful_invites = successful_invites + 1
		WHERE id = ? AND status NOT IN (?, ?, ?, ?)`
	status := models.InviteSent
	if !success {
		counterSQL = `UPDATE sessions SET invites_sent = invites_sent + 1,
			error_count = error_count + 1
			WHERE id = ? AND status NOT IN (?, ?, ?, ?)`
		status = models.InviteFailed
	}
	if _, err := tx.Exec(counterSQL, append([]any{sessionID}, terminalStatusArgs()...)...); err != nil {
		return models.Activity{}, fmt.Errorf("update session counters: %w", err)
	}

	now := time.Now().UTC()
	if creator.ID == "" {
		creator.ID = uuid.NewString()
	}
	_, err = tx.Exec(`
		INSERT INTO creators (id, username, display_name, followers, category, invite_status,
			last_invited_at, platform_id, verified, engagement_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			display_name = excluded.display_name,
			followers = excluded.followers,
			category = excluded.category,
			invite_status = excluded.invite_status,
			last_invited_at = excluded.last_invited_at,
			platform_id = excluded.platform_id,
			verified = excluded.verified,
			engagement_rate = excluded.engagement_rate,
			updated_at = excluded.updated_at`,
		creator.ID, creator.Username, creator.DisplayName, creator.Followers, creator.Category,
		status, now, creator.PlatformID, creator.Verified, creator.EngagementRate, now, now)
	if err != nil {
		return models.Activity{}, fmt.Errorf("upsert creator: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO activities (id, type, description, metadata, session_id, creator_username, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Description, meta, a.SessionID, a.CreatorUsername, a.CreatedAt)
	if err != nil {
		return models.Activity{}, fmt.Errorf("insert outcome activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Activity{}, fmt.Errorf("commit invite outcome: %w", err)
	}

	return a, nil
}

// RecordSessionError increments a session's error counter and logs the
// activity in the same transaction. Like RecordInviteOutcome, the counter is
// frozen once the session is terminal; the activity still lands.
func (s *Store) RecordSessionError(sessionID string, a models.Activity) (models.Activity, error) {
	prepareActivity(&a)
	a.SessionID = sessionID
	if a.Type == "" {
		a.Type = models.ActivitySystemError
	}

	meta, err := encodeMetadata(a.Metadata)
	if err != nil {
		return models.Activity{}, err
	}

	tx, err := s.db.Connection().Begin()
	if err != nil {
		return models.Activity{}, fmt.Errorf("begin session error: %w", err)
	}
	defer tx.Rollback()

	errorSQL := `UPDATE sessions SET error_count = error_count + 1
		WHERE id = ? AND status NOT IN (?, ?, ?, ?)`
	if _, err := tx.Exec(errorSQL, append([]any{sessionID}, terminalStatusArgs()...)...); err != nil {
		return models.Activity{}, fmt.Errorf("update error counter: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO activities (id, type, description, metadata, session_id, creator_username, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Description, meta, a.SessionID, a.CreatorUsername, a.CreatedAt)
	if err != nil {
		return models.Activity{}, fmt.Errorf("insert error activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Activity{}, fmt.Errorf("commit session error: %w", err)
	}

	return a, nil
}
