package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"creatorreach/models"
)

// ConfigRepository persists the singleton BotConfig row.
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository creates a config repository.
func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get returns the persisted BotConfig, or nil when none has been saved yet.
func (r *ConfigRepository) Get() (*models.BotConfig, error) {
	var data string
	var updatedAt time.Time
	err := r.db.QueryRow("SELECT data, updated_at FROM bot_config WHERE id = 1").Scan(&data, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bot config: %w", err)
	}

	var cfg models.BotConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode bot config: %w", err)
	}
	cfg.UpdatedAt = updatedAt

	return &cfg, nil
}

// Save validates and replaces the BotConfig.
func (r *ConfigRepository) Save(cfg models.BotConfig) (models.BotConfig, error) {
	if err := cfg.Validate(); err != nil {
		return models.BotConfig{}, err
	}

	cfg.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cfg)
	if err != nil {
		return models.BotConfig{}, fmt.Errorf("encode bot config: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO bot_config (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), cfg.UpdatedAt)
	if err != nil {
		return models.BotConfig{}, fmt.Errorf("save bot config: %w", err)
	}

	return cfg, nil
}
