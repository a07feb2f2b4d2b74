package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"creatorreach/models"
)

// CreatorRepository persists discovered creators.
type CreatorRepository struct {
	db *sql.DB
}

// NewCreatorRepository creates a creator repository.
func NewCreatorRepository(db *sql.DB) *CreatorRepository {
	return &CreatorRepository{db: db}
}

// CreatorUpdate describes a partial creator update. Nil fields are left untouched.
type CreatorUpdate struct {
	DisplayName    *string
	Followers      *int64
	Category       *string
	InviteStatus   *models.InviteStatus
	LastInvitedAt  *time.Time
	PlatformID     *string
	Verified       *bool
	EngagementRate *float64
}

const creatorColumns = `id, username, display_name, followers, category, invite_status,
	last_invited_at, platform_id, verified, engagement_rate, created_at, updated_at`

// Create inserts a newly discovered creator. The username must be unique.
func (r *CreatorRepository) Create(c models.Creator) (models.Creator, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.InviteStatus == "" {
		c.InviteStatus = models.InviteNotInvited
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO creators (id, username, display_name, followers, category, invite_status,
			last_invited_at, platform_id, verified, engagement_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Username, c.DisplayName, c.Followers, c.Category, c.InviteStatus,
		nullableTime(c.LastInvitedAt), c.PlatformID, c.Verified, c.EngagementRate,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return models.Creator{}, fmt.Errorf("insert creator: %w", err)
	}

	return c, nil
}

// Update applies a partial update by username and returns the updated creator,
// or nil when the username is unknown.
func (r *CreatorRepository) Update(username string, upd CreatorUpdate) (*models.Creator, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *upd.DisplayName)
	}
	if upd.Followers != nil {
		sets = append(sets, "followers = ?")
		args = append(args, *upd.Followers)
	}
	if upd.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *upd.Category)
	}
	if upd.InviteStatus != nil {
		sets = append(sets, "invite_status = ?")
		args = append(args, *upd.InviteStatus)
	}
	if upd.LastInvitedAt != nil {
		sets = append(sets, "last_invited_at = ?")
		args = append(args, upd.LastInvitedAt.UTC())
	}
	if upd.PlatformID != nil {
		sets = append(sets, "platform_id = ?")
		args = append(args, *upd.PlatformID)
	}
	if upd.Verified != nil {
		sets = append(sets, "verified = ?")
		args = append(args, *upd.Verified)
	}
	if upd.EngagementRate != nil {
		sets = append(sets, "engagement_rate = ?")
		args = append(args, *upd.EngagementRate)
	}

	args = append(args, username)
	_, err := r.db.Exec("UPDATE creators SET "+strings.Join(sets, ", ")+" WHERE username = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update creator: %w", err)
	}

	return r.GetByUsername(username)
}

// GetByUsername returns the creator with the given username, or nil when not found.
func (r *CreatorRepository) GetByUsername(username string) (*models.Creator, error) {
	row := r.db.QueryRow("SELECT "+creatorColumns+" FROM creators WHERE username = ?", username)
	return scanCreator(row)
}

// List returns creators ordered by most recently updated.
func (r *CreatorRepository) List(limit int) ([]models.Creator, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query("SELECT "+creatorColumns+" FROM creators ORDER BY updated_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list creators: %w", err)
	}
	defer rows.Close()
	return collectCreators(rows)
}

// ListForInvitation returns creators that are candidates for an invitation:
// never accepted, and either never invited or invited before the cool-down cutoff.
func (r *CreatorRepository) ListForInvitation(limit int, cooldown time.Duration) ([]models.Creator, error) {
	if limit <= 0 {
		limit = 20
	}
	cutoff := time.Now().UTC().Add(-cooldown)

	rows, err := r.db.Query(`
		SELECT `+creatorColumns+`
		FROM creators
		WHERE invite_status != ?
		  AND (last_invited_at IS NULL OR last_invited_at < ?)
		ORDER BY followers DESC
		LIMIT ?`,
		models.InviteAccepted, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list invitable creators: %w", err)
	}
	defer rows.Close()
	return collectCreators(rows)
}

// StatusCounts returns the number of creators per invitation status.
func (r *CreatorRepository) StatusCounts() (map[models.InviteStatus]int, error) {
	rows, err := r.db.Query("SELECT invite_status, COUNT(*) FROM creators GROUP BY invite_status")
	if err != nil {
		return nil, fmt.Errorf("creator status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.InviteStatus]int)
	for rows.Next() {
		var status models.InviteStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func collectCreators(rows *sql.Rows) ([]models.Creator, error) {
	var creators []models.Creator
	for rows.Next() {
		c, err := scanCreator(rows)
		if err != nil {
			return nil, err
		}
		creators = append(creators, *c)
	}
	return creators, rows.Err()
}

func scanCreator(row rowScanner) (*models.Creator, error) {
	var c models.Creator
	var lastInvited sql.NullTime

	err := row.Scan(&c.ID, &c.Username, &c.DisplayName, &c.Followers, &c.Category,
		&c.InviteStatus, &lastInvited, &c.PlatformID, &c.Verified, &c.EngagementRate,
		&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan creator: %w", err)
	}

	if lastInvited.Valid {
		t := lastInvited.Time
		c.LastInvitedAt = &t
	}

	return &c, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
