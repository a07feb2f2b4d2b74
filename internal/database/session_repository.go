package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"creatorreach/models"
)

// SessionRepository persists outreach sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// SessionUpdate describes a partial session update. Nil fields are left
// untouched. Counters are excluded on purpose; they only change through the
// transactional outcome recording on Store.
type SessionUpdate struct {
	Status     *models.SessionStatus
	EndedAt    *time.Time
	StopReason *string
	PausedAt   *time.Time
	ResumedAt  *time.Time
}

const sessionColumns = `id, status, mode, started_at, ended_at, invites_sent,
	successful_invites, error_count, config_snapshot, stop_reason, paused_at, resumed_at`

// Create inserts a new session in the initializing state.
func (r *SessionRepository) Create(mode, configSnapshot string) (models.Session, error) {
	session := models.Session{
		ID:             uuid.NewString(),
		Status:         models.SessionInitializing,
		Mode:           mode,
		StartedAt:      time.Now().UTC(),
		ConfigSnapshot: configSnapshot,
	}

	_, err := r.db.Exec(`
		INSERT INTO sessions (id, status, mode, started_at, config_snapshot)
		VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.Status, session.Mode, session.StartedAt, session.ConfigSnapshot)
	if err != nil {
		return models.Session{}, fmt.Errorf("insert session: %w", err)
	}

	return session, nil
}

// Update applies a partial update and returns the updated session, or nil if
// no session with the given id exists.
func (r *SessionRepository) Update(id string, upd SessionUpdate) (*models.Session, error) {
	var sets []string
	var args []any

	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.EndedAt != nil {
		sets = append(sets, "ended_at = ?")
		args = append(args, upd.EndedAt.UTC())
	}
	if upd.StopReason != nil {
		sets = append(sets, "stop_reason = ?")
		args = append(args, *upd.StopReason)
	}
	if upd.PausedAt != nil {
		sets = append(sets, "paused_at = ?")
		args = append(args, upd.PausedAt.UTC())
	}
	if upd.ResumedAt != nil {
		sets = append(sets, "resumed_at = ?")
		args = append(args, upd.ResumedAt.UTC())
	}

	if len(sets) > 0 {
		args = append(args, id)
		_, err := r.db.Exec("UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
	}

	return r.GetByID(id)
}

// GetByID returns the session with the given id, or nil when not found.
func (r *SessionRepository) GetByID(id string) (*models.Session, error) {
	row := r.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	return scanSession(row)
}

// GetActive returns the most recent non-terminal session, or nil when every
// session has reached a terminal state.
func (r *SessionRepository) GetActive() (*models.Session, error) {
	row := r.db.QueryRow(`
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE status IN (?, ?, ?)
		ORDER BY started_at DESC
		LIMIT 1`,
		models.SessionInitializing, models.SessionRunning, models.SessionPaused)
	return scanSession(row)
}

// GetLatest returns the most recently started session regardless of state.
func (r *SessionRepository) GetLatest() (*models.Session, error) {
	row := r.db.QueryRow("SELECT " + sessionColumns + " FROM sessions ORDER BY started_at DESC LIMIT 1")
	return scanSession(row)
}

// SessionTotals aggregates counters across all sessions for the metrics endpoint.
type SessionTotals struct {
	Sessions          int `json:"sessions"`
	InvitesSent       int `json:"invitesSent"`
	SuccessfulInvites int `json:"successfulInvites"`
	Errors            int `json:"errors"`
}

// Totals sums counters over every recorded session.
func (r *SessionRepository) Totals() (SessionTotals, error) {
	var t SessionTotals
	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(invites_sent), 0),
		       COALESCE(SUM(successful_invites), 0),
		       COALESCE(SUM(error_count), 0)
		FROM sessions`).Scan(&t.Sessions, &t.InvitesSent, &t.SuccessfulInvites, &t.Errors)
	if err != nil {
		return SessionTotals{}, fmt.Errorf("session totals: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var endedAt, pausedAt, resumedAt sql.NullTime
	var snapshot, stopReason sql.NullString

	err := row.Scan(&s.ID, &s.Status, &s.Mode, &s.StartedAt, &endedAt, &s.InvitesSent,
		&s.SuccessfulInvites, &s.ErrorCount, &snapshot, &stopReason, &pausedAt, &resumedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	if pausedAt.Valid {
		t := pausedAt.Time
		s.PausedAt = &t
	}
	if resumedAt.Valid {
		t := resumedAt.Time
		s.ResumedAt = &t
	}
	s.ConfigSnapshot = snapshot.String
	s.StopReason = stopReason.String

	return &s, nil
}
