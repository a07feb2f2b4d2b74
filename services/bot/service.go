package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"creatorreach/internal/database"
	"creatorreach/models"
	"creatorreach/services/tiktok"
)

// Precondition errors. Surfaced synchronously to the caller and mapped to 400
// by the route layer; they never mutate session state.
var (
	ErrNotInitialized  = errors.New("orchestrator not initialized")
	ErrAlreadyRunning  = errors.New("a session is already active")
	ErrNotRunning      = errors.New("no running session")
	ErrNotPaused       = errors.New("session is not paused")
	ErrNoActiveSession = errors.New("no active session")
	ErrConfigMissing   = errors.New("no bot configuration saved")
)

// Store is the persistence surface the orchestrator and loop consume.
// *database.Store satisfies it.
type Store interface {
	CreateSession(mode, configSnapshot string) (models.Session, error)
	UpdateSession(id string, upd database.SessionUpdate) (*models.Session, error)
	GetSession(id string) (*models.Session, error)
	GetActiveSession() (*models.Session, error)
	GetBotConfig() (*models.BotConfig, error)
	GetCreatorByUsername(username string) (*models.Creator, error)
	ListCreatorsForInvitation(limit int, cooldown time.Duration) ([]models.Creator, error)
	RecordInviteOutcome(sessionID string, creator models.Creator, success bool, a models.Activity) (models.Activity, error)
	RecordSessionError(sessionID string, a models.Activity) (models.Activity, error)
}

// ActivityLog records audit events. *activity.Service satisfies it.
type ActivityLog interface {
	Record(a models.Activity) (models.Activity, error)
	Journal(a models.Activity)
}

// BackendFactory builds the outreach backend for a mode ("browser" or "api").
type BackendFactory func(mode string) (tiktok.Backend, error)

// Service is the session orchestrator: it owns the lifecycle of the single
// active outreach session and the backend instance serving it, and spawns the
// invitation loop while the session is running.
type Service struct {
	store      Store
	activities ActivityLog
	newBackend BackendFactory

	mu          sync.Mutex
	initialized bool
	current     *models.Session
	backend     tiktok.Backend

	// sessionCtx lives for the whole session and is cancelled only by
	// emergency stop; runCancel only interrupts the loop's sleeps so pause
	// and stop take effect at the next candidate boundary without aborting
	// an in-flight invitation.
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	runCancel     context.CancelFunc
	loopWG        *sync.WaitGroup
}

// NewService creates an orchestrator. Initialize must be called before Start.
func NewService(store Store, activities ActivityLog, newBackend BackendFactory) *Service {
	return &Service{
		store:      store,
		activities: activities,
		newBackend: newBackend,
	}
}

// Initialize arms the orchestrator. Sessions left non-terminal by a previous
// process are forced to error so the single-active-session invariant holds
// from a clean slate.
func (s *Service) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orphan, err := s.store.GetActiveSession()
	if err != nil {
		return fmt.Errorf("check for orphaned session: %w", err)
	}
	if orphan != nil {
		status := models.SessionError
		now := time.Now().UTC()
		reason := "orphaned at startup"
		if _, err := s.store.UpdateSession(orphan.ID, database.SessionUpdate{
			Status:     &status,
			EndedAt:    &now,
			StopReason: &reason,
		}); err != nil {
			return fmt.Errorf("close orphaned session: %w", err)
		}
		log.Printf("[bot] closed orphaned session %s", orphan.ID)
	}

	s.initialized = true
	return nil
}

// Start begins a new outreach session. It returns once the session is
// recorded as running; the invitation loop runs in the background.
func (s *Service) Start(creds tiktok.Credentials) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return models.Session{}, ErrNotInitialized
	}
	if s.current != nil && !s.current.IsTerminal() {
		return models.Session{}, ErrAlreadyRunning
	}
	if active, err := s.store.GetActiveSession(); err != nil {
		return models.Session{}, fmt.Errorf("check active session: %w", err)
	} else if active != nil {
		return models.Session{}, ErrAlreadyRunning
	}

	cfg, err := s.store.GetBotConfig()
	if err != nil {
		return models.Session{}, fmt.Errorf("load bot config: %w", err)
	}
	if cfg == nil {
		return models.Session{}, ErrConfigMissing
	}

	snapshot, err := json.Marshal(cfg)
	if err != nil {
		return models.Session{}, fmt.Errorf("snapshot config: %w", err)
	}

	session, err := s.store.CreateSession(cfg.Mode, string(snapshot))
	if err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}

	backend, err := s.newBackend(cfg.Mode)
	if err != nil {
		s.failSessionLocked(session.ID, fmt.Sprintf("backend init: %v", err))
		return models.Session{}, fmt.Errorf("create %s backend: %w", cfg.Mode, err)
	}

	sessionCtx, sessionCancel := context.WithCancel(context.Background())

	if creds != (tiktok.Credentials{}) {
		if err := backend.Authenticate(sessionCtx, creds); err != nil {
			sessionCancel()
			_ = backend.Teardown()
			s.failSessionLocked(session.ID, fmt.Sprintf("authentication: %v", err))
			s.recordActivity(models.Activity{
				Type:        models.ActivityLoginFailed,
				Description: "platform login failed",
				Metadata:    map[string]any{"mode": cfg.Mode, "error": err.Error()},
				SessionID:   session.ID,
			})
			return models.Session{}, err
		}
		s.recordActivity(models.Activity{
			Type:        models.ActivityLoginSuccess,
			Description: "platform login succeeded",
			Metadata:    map[string]any{"mode": cfg.Mode},
			SessionID:   session.ID,
		})
	}

	running := models.SessionRunning
	updated, err := s.store.UpdateSession(session.ID, database.SessionUpdate{Status: &running})
	if err != nil || updated == nil {
		sessionCancel()
		_ = backend.Teardown()
		return models.Session{}, fmt.Errorf("mark session running: %w", err)
	}

	runCtx, runCancel := context.WithCancel(sessionCtx)
	s.current = updated
	s.backend = backend
	s.sessionCtx = sessionCtx
	s.sessionCancel = sessionCancel
	s.runCancel = runCancel
	s.loopWG = &sync.WaitGroup{}

	s.loopWG.Add(1)
	go s.runLoop(sessionCtx, runCtx, updated.ID, s.loopWG)

	s.recordActivity(models.Activity{
		Type:        models.ActivitySessionStarted,
		Description: "outreach session started",
		Metadata:    map[string]any{"mode": cfg.Mode},
		SessionID:   updated.ID,
	})
	log.Printf("[bot] session %s started (mode=%s)", updated.ID, cfg.Mode)

	return *updated, nil
}

// Pause suspends the loop at its next candidate boundary. An in-flight
// invitation is allowed to finish.
func (s *Service) Pause() (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.Status != models.SessionRunning {
		return models.Session{}, ErrNotRunning
	}

	paused := models.SessionPaused
	now := time.Now().UTC()
	updated, err := s.store.UpdateSession(s.current.ID, database.SessionUpdate{
		Status:   &paused,
		PausedAt: &now,
	})
	if err != nil || updated == nil {
		return models.Session{}, fmt.Errorf("pause session: %w", err)
	}

	// Wake the loop out of any pacing sleep so it observes the pause promptly.
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}

	s.current = updated
	s.recordActivity(models.Activity{
		Type:        models.ActivitySessionPaused,
		Description: "outreach session paused",
		SessionID:   updated.ID,
	})
	log.Printf("[bot] session %s paused", updated.ID)

	return *updated, nil
}

// Resume re-schedules the loop for a paused session.
func (s *Service) Resume() (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.Status != models.SessionPaused {
		return models.Session{}, ErrNotPaused
	}

	running := models.SessionRunning
	now := time.Now().UTC()
	updated, err := s.store.UpdateSession(s.current.ID, database.SessionUpdate{
		Status:    &running,
		ResumedAt: &now,
	})
	if err != nil || updated == nil {
		return models.Session{}, fmt.Errorf("resume session: %w", err)
	}

	if s.sessionCtx == nil {
		s.sessionCtx, s.sessionCancel = context.WithCancel(context.Background())
	}
	runCtx, runCancel := context.WithCancel(s.sessionCtx)
	s.runCancel = runCancel
	s.current = updated

	s.loopWG.Add(1)
	go s.runLoop(s.sessionCtx, runCtx, updated.ID, s.loopWG)

	s.recordActivity(models.Activity{
		Type:        models.ActivitySessionResumed,
		Description: "outreach session resumed",
		SessionID:   updated.ID,
	})
	log.Printf("[bot] session %s resumed", updated.ID)

	return *updated, nil
}

// Stop asks the loop to finish its current unit of work and records the
// session as stopped with the given reason.
func (s *Service) Stop(reason string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.IsTerminal() {
		return models.Session{}, ErrNoActiveSession
	}

	stopped := models.SessionStopped
	now := time.Now().UTC()
	updated, err := s.store.UpdateSession(s.current.ID, database.SessionUpdate{
		Status:     &stopped,
		EndedAt:    &now,
		StopReason: &reason,
	})
	if err != nil || updated == nil {
		return models.Session{}, fmt.Errorf("stop session: %w", err)
	}

	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	s.releaseBackendWhenDone()

	s.current = updated
	s.recordActivity(models.Activity{
		Type:        models.ActivitySessionStopped,
		Description: "outreach session stopped",
		Metadata: map[string]any{
			"reason":            reason,
			"invitesSent":       updated.InvitesSent,
			"successfulInvites": updated.SuccessfulInvites,
			"durationSeconds":   int(updated.Uptime().Seconds()),
		},
		SessionID: updated.ID,
	})
	log.Printf("[bot] session %s stopped: %s", updated.ID, reason)

	return *updated, nil
}

// EmergencyStop unconditionally tears everything down: backend resources are
// released regardless of state, any live session is forced to
// emergency_stopped, and the orchestrator requires Initialize before the next
// Start. Idempotent; never fails for having nothing to stop.
func (s *Service) EmergencyStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	if s.sessionCancel != nil {
		s.sessionCancel()
		s.sessionCancel = nil
	}
	s.sessionCtx = nil
	s.loopWG = nil
	if s.backend != nil {
		if err := s.backend.Teardown(); err != nil {
			log.Printf("[bot] backend teardown: %v", err)
		}
		s.backend = nil
	}

	if s.current != nil && !s.current.IsTerminal() {
		status := models.SessionEmergencyStopped
		now := time.Now().UTC()
		reason := "emergency stop"
		updated, err := s.store.UpdateSession(s.current.ID, database.SessionUpdate{
			Status:     &status,
			EndedAt:    &now,
			StopReason: &reason,
		})
		if err != nil {
			log.Printf("[bot] record emergency stop: %v", err)
		} else if updated != nil {
			s.current = updated
		}
		s.recordActivity(models.Activity{
			Type:        models.ActivityEmergencyStop,
			Description: "emergency stop executed",
			SessionID:   s.current.ID,
		})
	}

	s.current = nil
	s.initialized = false
	log.Printf("[bot] emergency stop complete")
}

// Stats are the derived numbers the dashboard renders next to the session.
type Stats struct {
	InvitesSent       int    `json:"invitesSent"`
	SuccessfulInvites int    `json:"successfulInvites"`
	ErrorCount        int    `json:"errorCount"`
	Uptime            string `json:"uptime"`
	SuccessRate       int    `json:"successRate"`
}

// Status is the snapshot returned to the dashboard.
type Status struct {
	Status  string          `json:"status"`
	Running bool            `json:"running"`
	Session *models.Session `json:"session,omitempty"`
	Stats   Stats           `json:"stats"`
}

// Status reports the current session (with counters re-read from the store so
// loop progress is visible) and derived stats.
func (s *Service) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Status{Status: "idle"}, nil
	}

	session, err := s.store.GetSession(s.current.ID)
	if err != nil {
		return Status{}, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return Status{Status: "idle"}, nil
	}
	s.current = session

	return Status{
		Status:  string(session.Status),
		Running: session.Status == models.SessionRunning,
		Session: session,
		Stats: Stats{
			InvitesSent:       session.InvitesSent,
			SuccessfulInvites: session.SuccessfulInvites,
			ErrorCount:        session.ErrorCount,
			Uptime:            fmt.Sprintf("%dm", int(session.Uptime().Minutes())),
			SuccessRate:       session.SuccessRate(),
		},
	}, nil
}

// failSessionLocked marks a session as errored with a reason. Caller holds s.mu.
func (s *Service) failSessionLocked(id, reason string) {
	status := models.SessionError
	now := time.Now().UTC()
	if _, err := s.store.UpdateSession(id, database.SessionUpdate{
		Status:     &status,
		EndedAt:    &now,
		StopReason: &reason,
	}); err != nil {
		log.Printf("[bot] mark session %s errored: %v", id, err)
	}
}

// releaseBackendWhenDone tears down the backend once this session's loop
// goroutine has exited, so an in-flight invitation is not yanked out from
// under it. Caller holds s.mu.
func (s *Service) releaseBackendWhenDone() {
	backend := s.backend
	wg := s.loopWG
	s.backend = nil
	if backend == nil {
		return
	}
	go func() {
		if wg != nil {
			wg.Wait()
		}
		if err := backend.Teardown(); err != nil {
			log.Printf("[bot] backend teardown: %v", err)
		}
	}()
}

func (s *Service) recordActivity(a models.Activity) {
	if _, err := s.activities.Record(a); err != nil {
		log.Printf("[bot] record activity %s: %v", a.Type, err)
	}
}
