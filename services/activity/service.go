package activity

import (
	"encoding/json"
	"log"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"creatorreach/internal/database"
	"creatorreach/models"
)

// Service is the append-only activity recorder. Every event becomes a database
// row plus one JSON line in a size-rotated journal file for operators who want
// to tail the bot without querying the database.
type Service struct {
	repo *database.ActivityRepository

	mu      sync.Mutex
	journal *lumberjack.Logger
}

// NewService creates an activity service. journalPath may be empty to disable
// the on-disk journal.
func NewService(repo *database.ActivityRepository, journalPath string) *Service {
	svc := &Service{repo: repo}
	if journalPath != "" {
		svc.journal = &lumberjack.Logger{
			Filename:   journalPath,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	return svc
}

// Record appends an activity to the database and the journal.
func (s *Service) Record(a models.Activity) (models.Activity, error) {
	inserted, err := s.repo.Insert(a)
	if err != nil {
		return models.Activity{}, err
	}
	s.Journal(inserted)
	return inserted, nil
}

// Journal writes the journal line for an activity that is already persisted,
// e.g. one inserted inside a store transaction. Best effort: journal failures
// are logged, never propagated.
func (s *Service) Journal(a models.Activity) {
	if s.journal == nil {
		return
	}

	line, err := json.Marshal(a)
	if err != nil {
		log.Printf("[activity] encode journal line: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.journal.Write(append(line, '\n')); err != nil {
		log.Printf("[activity] write journal: %v", err)
	}
}

// Recent returns the newest activities, most recent first.
func (s *Service) Recent(limit int) ([]models.Activity, error) {
	return s.repo.Recent(limit)
}

// Close flushes and closes the journal file.
func (s *Service) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}
