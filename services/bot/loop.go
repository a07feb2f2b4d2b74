package bot

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"

	"creatorreach/internal/database"
	"creatorreach/models"
	"creatorreach/services/targeting"
	"creatorreach/services/tiktok"
)

const (
	// discoveryBatchSize is how many candidates one discovery pass asks for.
	discoveryBatchSize = 20

	// loopJitter spreads the error and empty-batch delays so repeated
	// failures do not hit the platform on a fixed cadence.
	loopJitter = 0.25
)

// runLoop is the invitation loop for one session. It re-reads session status
// from the store before every candidate, so pause and stop take effect at the
// next boundary, and it re-reads the bot config at every batch boundary, so
// configuration changes apply without a restart.
//
// Errors from a single discovery or invitation call never escape an
// iteration: they become an activity plus a counter increment, followed by a
// cool-down sleep. sessionCtx bounds the backend calls themselves; runCtx is
// this run's handle: once it is cancelled the loop exits at the next
// suspension point, so a resumed session never has two loops inviting at once.
func (s *Service) runLoop(sessionCtx, runCtx context.Context, sessionID string, wg *sync.WaitGroup) {
	defer wg.Done()

	backend := s.currentBackend()
	if backend == nil {
		log.Printf("[loop] session %s has no backend, exiting", sessionID)
		return
	}

	for {
		if runCtx.Err() != nil {
			return
		}

		session, ok := s.loopSession(sessionID)
		if !ok {
			return
		}

		cfg, err := s.store.GetBotConfig()
		if err != nil || cfg == nil {
			s.recordLoopError(sessionID, "config", fmt.Errorf("load bot config: %w", err))
			if !sleepJittered(runCtx, time.Minute, loopJitter) {
				return
			}
			continue
		}

		if session.InvitesSent >= cfg.DailyInviteLimit {
			s.completeSession(sessionID)
			return
		}

		criteria := targeting.CriteriaFromConfig(*cfg)

		creators, err := s.discover(sessionCtx, backend, *cfg)
		if err != nil {
			s.recordLoopError(sessionID, "discovery", err)
			if !sleepJittered(runCtx, cfg.BatchErrorDelay(), loopJitter) {
				return
			}
			continue
		}
		if len(creators) == 0 {
			// Remote discovery can come back empty while the store still
			// holds candidates from earlier passes.
			creators, err = s.store.ListCreatorsForInvitation(discoveryBatchSize, criteria.Cooldown)
			if err != nil {
				s.recordLoopError(sessionID, "discovery", fmt.Errorf("stored candidates: %w", err))
				creators = nil
			}
		}
		if len(creators) == 0 {
			if !sleepJittered(runCtx, cfg.EmptyBatchDelay(), loopJitter) {
				return
			}
			continue
		}

		for _, candidate := range creators {
			if runCtx.Err() != nil {
				return
			}

			session, ok := s.loopSession(sessionID)
			if !ok {
				return
			}
			if session.InvitesSent >= cfg.DailyInviteLimit {
				s.completeSession(sessionID)
				return
			}

			creator := s.mergeHistory(candidate)
			if !targeting.IsEligible(creator, criteria, time.Now().UTC()) {
				continue
			}

			if err := s.invite(sessionCtx, backend, creator, cfg.InviteMessage); err != nil {
				s.recordInviteOutcome(sessionID, creator, false, models.Activity{
					Type:        models.ActivityInvitationFailed,
					Description: fmt.Sprintf("invitation to @%s failed", creator.Username),
					Metadata:    map[string]any{"error": err.Error()},
				})
				if !sleepJittered(runCtx, cfg.ErrorDelay(), loopJitter) {
					return
				}
				continue
			}

			s.recordInviteOutcome(sessionID, creator, true, models.Activity{
				Type:        models.ActivityInviteSent,
				Description: fmt.Sprintf("invitation sent to @%s", creator.Username),
				Metadata: map[string]any{
					"followers": creator.Followers,
					"category":  creator.Category,
				},
			})
			if !sleepJittered(runCtx, cfg.ActionDelay(), cfg.ActionJitterPct) {
				return
			}
		}
	}
}

// loopSession returns the session when it is still running. Any other state
// means the orchestrator has already taken over, so the loop just exits.
func (s *Service) loopSession(sessionID string) (models.Session, bool) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		log.Printf("[loop] load session %s: %v", sessionID, err)
		return models.Session{}, false
	}
	if session == nil || session.Status != models.SessionRunning {
		return models.Session{}, false
	}
	return *session, true
}

func (s *Service) currentBackend() tiktok.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend
}

// discover asks the backend for a candidate batch, containing panics so a
// misbehaving driver cannot kill the session.
func (s *Service) discover(ctx context.Context, backend tiktok.Backend, cfg models.BotConfig) ([]models.Creator, error) {
	var creators []models.Creator
	var err error
	if r := panics.Try(func() {
		creators, err = backend.DiscoverCreators(ctx, tiktok.DiscoveryCriteria{
			MinFollowers: cfg.MinFollowers,
			MaxFollowers: cfg.MaxFollowers,
			Categories:   cfg.Categories,
			Limit:        discoveryBatchSize,
		})
	}); r != nil {
		return nil, fmt.Errorf("discovery panicked: %w", r.AsError())
	}
	return creators, err
}

// invite sends one invitation, containing panics like discover.
func (s *Service) invite(ctx context.Context, backend tiktok.Backend, creator models.Creator, message string) error {
	var err error
	if r := panics.Try(func() {
		err = backend.SendInvitation(ctx, creator, message)
	}); r != nil {
		return fmt.Errorf("invitation panicked: %w", r.AsError())
	}
	return err
}

// mergeHistory overlays what the store already knows about a discovered
// creator (prior invitation status, cool-down timestamps) onto the fresh
// platform data, so the filter sees full history.
func (s *Service) mergeHistory(candidate models.Creator) models.Creator {
	known, err := s.store.GetCreatorByUsername(candidate.Username)
	if err != nil {
		log.Printf("[loop] lookup creator %s: %v", candidate.Username, err)
		return candidate
	}
	if known == nil {
		return candidate
	}

	candidate.ID = known.ID
	candidate.InviteStatus = known.InviteStatus
	candidate.LastInvitedAt = known.LastInvitedAt
	if candidate.PlatformID == "" {
		candidate.PlatformID = known.PlatformID
	}
	return candidate
}

// recordInviteOutcome persists counters + creator status + activity in one
// transaction, then journals the activity.
func (s *Service) recordInviteOutcome(sessionID string, creator models.Creator, success bool, a models.Activity) {
	recorded, err := s.store.RecordInviteOutcome(sessionID, creator, success, a)
	if err != nil {
		log.Printf("[loop] record invite outcome for %s: %v", creator.Username, err)
		return
	}
	s.activities.Journal(recorded)
}

// recordLoopError logs a transient failure: error counter + system_error
// activity tagged with the stage that caused it. The session stays running.
func (s *Service) recordLoopError(sessionID, stage string, err error) {
	log.Printf("[loop] %s error in session %s: %v", stage, sessionID, err)
	recorded, rerr := s.store.RecordSessionError(sessionID, models.Activity{
		Type:        models.ActivitySystemError,
		Description: fmt.Sprintf("%s failed", stage),
		Metadata:    map[string]any{"stage": stage, "error": err.Error()},
	})
	if rerr != nil {
		log.Printf("[loop] record %s error: %v", stage, rerr)
		return
	}
	s.activities.Journal(recorded)
}

// completeSession marks the session completed after the invite limit was
// reached naturally, releasing the backend once the loop winds down.
func (s *Service) completeSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.store.GetSession(sessionID)
	if err != nil || session == nil || session.IsTerminal() {
		return
	}

	completed := models.SessionCompleted
	now := time.Now().UTC()
	updated, err := s.store.UpdateSession(sessionID, database.SessionUpdate{
		Status:  &completed,
		EndedAt: &now,
	})
	if err != nil || updated == nil {
		log.Printf("[loop] mark session %s completed: %v", sessionID, err)
		return
	}

	if s.current != nil && s.current.ID == sessionID {
		s.current = updated
	}
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	s.releaseBackendWhenDone()

	s.recordActivity(models.Activity{
		Type:        models.ActivitySessionCompleted,
		Description: "invite limit reached, session completed",
		Metadata: map[string]any{
			"invitesSent":       updated.InvitesSent,
			"successfulInvites": updated.SuccessfulInvites,
		},
		SessionID: updated.ID,
	})
	log.Printf("[bot] session %s completed (%d invites sent)", updated.ID, updated.InvitesSent)
}

// sleepJittered sleeps around base, spread by pct in both directions, waking
// early when ctx is cancelled. Returns false on early wake-up.
func sleepJittered(ctx context.Context, base time.Duration, pct float64) bool {
	if ctx.Err() != nil {
		return false
	}
	if base <= 0 {
		return true
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}

	min := time.Duration(float64(base) * (1 - pct))
	max := time.Duration(float64(base) * (1 + pct))
	wait := min
	if max > min {
		wait = min + time.Duration(rand.Int63n(int64(max-min)))
	}

	select {
	case <-time.After(wait):
		return true
	case <-ctx.Done():
		return false
	}
}
