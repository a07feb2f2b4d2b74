package database

import (
	"time"

	"creatorreach/models"
)

// Flat operation surface consumed by the bot service. These delegate to the
// repositories so callers that only need the operations can depend on a small
// interface instead of the repository structs.

func (s *Store) CreateSession(mode, configSnapshot string) (models.Session, error) {
	return s.Sessions.Create(mode, configSnapshot)
}

func (s *Store) UpdateSession(id string, upd SessionUpdate) (*models.Session, error) {
	return s.Sessions.Update(id, upd)
}

func (s *Store) GetSession(id string) (*models.Session, error) {
	return s.Sessions.GetByID(id)
}

func (s *Store) GetActiveSession() (*models.Session, error) {
	return s.Sessions.GetActive()
}

func (s *Store) GetBotConfig() (*models.BotConfig, error) {
	return s.BotConfig.Get()
}

func (s *Store) SaveBotConfig(cfg models.BotConfig) (models.BotConfig, error) {
	return s.BotConfig.Save(cfg)
}

func (s *Store) GetCreatorByUsername(username string) (*models.Creator, error) {
	return s.Creators.GetByUsername(username)
}

func (s *Store) ListCreatorsForInvitation(limit int, cooldown time.Duration) ([]models.Creator, error) {
	return s.Creators.ListForInvitation(limit, cooldown)
}
