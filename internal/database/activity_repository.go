package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"creatorreach/models"
)

// ActivityRepository persists the append-only audit log. There are no update
// or delete operations on purpose.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates an activity repository.
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Insert appends an activity. ID and CreatedAt are filled in when empty.
func (r *ActivityRepository) Insert(a models.Activity) (models.Activity, error) {
	prepareActivity(&a)

	meta, err := encodeMetadata(a.Metadata)
	if err != nil {
		return models.Activity{}, err
	}

	_, err = r.db.Exec(`
		INSERT INTO activities (id, type, description, metadata, session_id, creator_username, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Description, meta, a.SessionID, a.CreatorUsername, a.CreatedAt)
	if err != nil {
		return models.Activity{}, fmt.Errorf("insert activity: %w", err)
	}

	return a, nil
}

// Recent returns the newest activities, most recent first.
func (r *ActivityRepository) Recent(limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, type, description, metadata, session_id, creator_username, created_at
		FROM activities
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		var meta string
		if err := rows.Scan(&a.ID, &a.Type, &a.Description, &meta, &a.SessionID,
			&a.CreatorUsername, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode activity metadata: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// CountForSession returns how many activities of the given type were logged
// for a session.
func (r *ActivityRepository) CountForSession(sessionID string, typ models.ActivityType) (int, error) {
	var n int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM activities WHERE session_id = ? AND type = ?`,
		sessionID, typ).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return n, nil
}

func prepareActivity(a *models.Activity) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
}

func encodeMetadata(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode activity metadata: %w", err)
	}
	return string(data), nil
}
