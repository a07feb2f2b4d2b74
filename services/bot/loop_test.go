package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"creatorreach/internal/database"
	"creatorreach/models"
	"creatorreach/services/tiktok"
)

// fastConfig removes the pacing so loop tests finish quickly.
func fastConfig(limit int) models.BotConfig {
	cfg := models.DefaultBotConfig()
	cfg.DailyInviteLimit = limit
	cfg.ActionDelayMs = 1
	cfg.ActionJitterPct = 0
	cfg.ErrorDelayMs = 1
	cfg.BatchErrorDelayMs = 1
	cfg.EmptyBatchDelayMs = 1
	return cfg
}

func eligibleCreator(username string) models.Creator {
	return models.Creator{Username: username, Followers: 5000}
}

func (tb *testBot) waitForStatus(t *testing.T, sessionID string, want models.SessionStatus) *models.Session {
	t.Helper()
	var session *models.Session
	waitFor(t, 5*time.Second, func() bool {
		var err error
		session, err = tb.store.GetSession(sessionID)
		return err == nil && session != nil && session.Status == want
	}, fmt.Sprintf("session status %s", want))
	return session
}

func TestLoop_CompletesAtInviteLimit(t *testing.T) {
	tb := setupTestBot(t)
	tb.saveConfig(t, fastConfig(3))
	tb.initialize(t)
	tb.backend.discovery = []models.Creator{
		eligibleCreator("a"), eligibleCreator("b"), eligibleCreator("c"),
		eligibleCreator("d"), eligibleCreator("e"),
	}

	started, err := tb.svc.Start(tiktok.Credentials{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	session := tb.waitForStatus(t, started.ID, models.SessionCompleted)
	if session.InvitesSent != 3 || session.SuccessfulInvites != 3 || session.ErrorCount != 0 {
		t.Fatalf("unexpected counters: sent=%d ok=%d err=%d",
			session.InvitesSent, session.SuccessfulInvites, session.ErrorCount)
	}
	if session.EndedAt == nil {
		t.Fatal("expected EndedAt on completion")
	}
	if tb.backend.inviteCount() != 3 {
		t.Fatalf("expected exactly 3 backend invitations, got %d", tb.backend.inviteCount())
	}

	// Counters and the audit log tell the same story.
	sent, err := tb.store.Activities.CountForSession(started.ID, models.ActivityInviteSent)
	if err != nil {
		t.Fatalf("count invite_sent: %v", err)
	}
	if sent != session.SuccessfulInvites {
		t.Fatalf("invite_sent activities (%d) disagree with counter (%d)", sent, session.SuccessfulInvites)
	}
	completedN, err := tb.store.Activities.CountForSession(started.ID, models.ActivitySessionCompleted)
	if err != nil {
		t.Fatalf("count session_completed: %v", err)
	}
	if completedN != 1 {
		t.Fatalf("expected 1 session_completed activity, got %d", completedN)
	}

	waitFor(t, 2*time.Second, func() bool { return tb.backend.teardownCount() == 1 }, "backend teardown")
}

func TestLoop_RecordsFailures(t *testing.T) {
	tb := setupTestBot(t)
	tb.saveConfig(t, fastConfig(2))
	tb.initialize(t)
	tb.backend.discovery = []models.Creator{eligibleCreator("good"), eligibleCreator("bad")}
	tb.backend.inviteErr = func(username string) error {
		if username == "bad" {
			return errors.New("captcha wall")
		}
		return nil
	}

	started, err := tb.svc.Start(tiktok.Credentials{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Both attempts count toward the limit, so the session completes at 2.
	session := tb.waitForStatus(t, started.ID, models.SessionCompleted)
	if session.InvitesSent != 2 || session.SuccessfulInvites != 1 || session.ErrorCount != 1 {
		t.Fatalf("unexpected counters: sent=%d ok=%d err=%d",
			session.InvitesSent, session.SuccessfulInvites, session.ErrorCount)
	}

	failed, err := tb.store.Activities.CountForSession(started.ID, models.ActivityInvitationFailed)
	if err != nil {
		t.Fatalf("count invitation_failed: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected 1 invitation_failed activity, got %d", failed)
	}

	badCreator, err := tb.store.GetCreatorByUsername("bad")
	if err != nil || badCreator == nil {
		t.Fatalf("load creator: %v", err)
	}
	if badCreator.InviteStatus != models.InviteFailed {
		t.Fatalf("expected creator marked failed, got %s", badCreator.InviteStatus)
	}
	if badCreator.LastInvitedAt == nil {
		t.Fatal("failed attempts start the cool-down window too")
	}
}

func TestLoop_SkipsIneligibleCreators(t *testing.T) {
	tb := setupTestBot(t)
	tb.saveConfig(t, fastConfig(1))
	tb.initialize(t)

	// One below the follower floor, one already accepted in the store, one fine.
	if _, err := tb.store.Creators.Create(models.Creator{
		Username:     "partner",
		Followers:    5000,
		InviteStatus: models.InviteAccepted,
	}); err != nil {
		t.Fatalf("seed creator: %v", err)
	}
	tb.backend.discovery = []models.Creator{
		{Username: "tiny", Followers: 10},
		eligibleCreator("partner"),
		eligibleCreator("fresh"),
	}

	started, err := tb.svc.Start(tiktok.Credentials{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	tb.waitForStatus(t, started.ID, models.SessionCompleted)
	if got := tb.backend.inviteCount(); got != 1 {
		t.Fatalf("expected 1 invitation, got %d", got)
	}
	tb.backend.mu.Lock()
	invited := tb.backend.invited[0]
	tb.backend.mu.Unlock()
	if invited != "fresh" {
		t.Fatalf("expected fresh invited, got %s", invited)
	}
}

func TestLoop_FallsBackToStoredCandidates(t *testing.T) {
	tb := setupTestBot(t)
	tb.saveConfig(t, fastConfig(1))
	tb.initialize(t)

	// Remote discovery comes back empty, but an earlier pass left a candidate.
	if _, err := tb.store.Creators.Create(eligibleCreator("leftover")); err != nil {
		t.Fatalf("seed creator: %v", err)
	}

	started, err := tb.svc.Start(tiktok.Credentials{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	tb.waitForStatus(t, started.ID, models.SessionCompleted)
	tb.backend.mu.Lock()
	invited := append([]string(nil), tb.backend.invited...)
	tb.backend.mu.Unlock()
	if len(invited) != 1 || invited[0] != "leftover" {
		t.Fatalf("expected stored candidate invited, got %v", invited)
	}
}

func TestLoop_DiscoveryErrorKeepsSessionAlive(t *testing.T) {
	tb := setupTestBot(t)
	tb.saveConfig(t, fastConfig(5))
	tb.initialize(t)
	tb.backend.discErr = errors.New("marketplace down")

	started, err := tb.svc.Start(tiktok.Credentials{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		session, err := tb.store.GetSession(started.ID)
		return err == nil && session != nil && session.ErrorCount >= 2
	}, "discovery errors recorded")

	session, err := tb.store.GetSession(started.ID)
	if err != nil || session == nil {
		t.Fatalf("load session: %v", err)
	}
	if session.Status != models.SessionRunning {
		t.Fatalf("discovery errors must not kill the session, got %s", session.Status)
	}
	if session.InvitesSent != 0 {
		t.Fatalf("expected no invitations, got %d", session.InvitesSent)
	}
}

func TestLoop_PauseHaltsInvitations(t *testing.T) {
	tb := setupTestBot(t)
	cfg := fastConfig(50)
	cfg.ActionDelayMs = 30000 // park the loop after each invitation
	tb.saveConfig(t, cfg)
	tb.initialize(t)
	tb.backend.discovery = []models.Creator{
		eligibleCreator("a"), eligibleCreator("b"), eligibleCreator("c"),
	}

	started, err := tb.svc.Start(tiktok.Credentials{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return tb.backend.inviteCount() == 1 }, "first invitation")

	if _, err := tb.svc.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// The loop wakes from the pacing sleep, observes the pause, and exits
	// without another invitation.
	time.Sleep(300 * time.Millisecond)
	if got := tb.backend.inviteCount(); got != 1 {
		t.Fatalf("invitations continued through pause: %d", got)
	}

	if _, err := tb.svc.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return tb.backend.inviteCount() >= 2 }, "invitations after resume")

	// The attempt counter survived the pause.
	session, err := tb.store.GetSession(started.ID)
	if err != nil || session == nil {
		t.Fatalf("load session: %v", err)
	}
	if session.InvitesSent < 2 {
		t.Fatalf("expected counter to carry across pause, got %d", session.InvitesSent)
	}
}

func TestRunLoop_ExitsWhenRunHandleCancelled(t *testing.T) {
	tb := setupTestBot(t)
	tb.saveConfig(t, fastConfig(5))
	tb.backend.discovery = []models.Creator{
		eligibleCreator("a"), eligibleCreator("b"), eligibleCreator("c"),
		eligibleCreator("d"), eligibleCreator("e"),
	}

	session, err := tb.store.CreateSession(models.ModeAPI, "{}")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	running := models.SessionRunning
	if _, err := tb.store.UpdateSession(session.ID, database.SessionUpdate{Status: &running}); err != nil {
		t.Fatalf("mark session running: %v", err)
	}

	// A dead run handle must stop the loop even though the store still says
	// running — otherwise a stale goroutine left over from a pause could keep
	// inviting alongside the one spawned by resume.
	tb.svc.mu.Lock()
	tb.svc.backend = tb.backend
	tb.svc.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	cancel()

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go tb.svc.runLoop(context.Background(), runCtx, session.ID, wg)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop kept running on a cancelled run handle")
	}

	if got := tb.backend.inviteCount(); got != 0 {
		t.Fatalf("expected no invitations after cancellation, got %d", got)
	}
	got, err := tb.store.GetSession(session.ID)
	if err != nil || got == nil {
		t.Fatalf("load session: %v", err)
	}
	if got.InvitesSent != 0 {
		t.Fatalf("cancelled loop must not record attempts, got %d", got.InvitesSent)
	}
}

func TestSleepJittered_CancelWakes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	startedAt := time.Now()
	if sleepJittered(ctx, 10*time.Second, 0) {
		t.Fatal("expected early wake-up on cancellation")
	}
	if elapsed := time.Since(startedAt); elapsed > 2*time.Second {
		t.Fatalf("sleep did not wake promptly: %s", elapsed)
	}
}

func TestSleepJittered_ZeroBase(t *testing.T) {
	if !sleepJittered(context.Background(), 0, 0.5) {
		t.Fatal("zero base must return immediately")
	}
}
