package database

import (
	"testing"
	"time"

	"creatorreach/models"
)

func TestSessionRepository_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)

	session, err := store.CreateSession(models.ModeAPI, `{"dailyInviteLimit":50}`)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected generated session id")
	}
	if session.Status != models.SessionInitializing {
		t.Fatalf("expected initializing, got %s", session.Status)
	}

	got, err := store.GetSession(session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got == nil {
		t.Fatal("expected session to exist")
	}
	if got.Mode != models.ModeAPI || got.ConfigSnapshot != `{"dailyInviteLimit":50}` {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestSessionRepository_GetMissing(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.GetSession("nope")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for unknown session id")
	}
}

func TestSessionRepository_PartialUpdate(t *testing.T) {
	store := setupTestStore(t)

	session, err := store.CreateSession(models.ModeBrowser, "{}")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	running := models.SessionRunning
	updated, err := store.UpdateSession(session.ID, SessionUpdate{Status: &running})
	if err != nil {
		t.Fatalf("update session: %v", err)
	}
	if updated.Status != models.SessionRunning {
		t.Fatalf("expected running, got %s", updated.Status)
	}
	if updated.EndedAt != nil || updated.StopReason != "" {
		t.Fatal("untouched fields must stay untouched")
	}

	stopped := models.SessionStopped
	now := time.Now().UTC()
	reason := "manual"
	updated, err = store.UpdateSession(session.ID, SessionUpdate{
		Status:     &stopped,
		EndedAt:    &now,
		StopReason: &reason,
	})
	if err != nil {
		t.Fatalf("update session: %v", err)
	}
	if updated.Status != models.SessionStopped || updated.EndedAt == nil || updated.StopReason != "manual" {
		t.Fatalf("unexpected session after stop: %+v", updated)
	}
}

func TestSessionRepository_GetActive(t *testing.T) {
	store := setupTestStore(t)

	active, err := store.GetActiveSession()
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active != nil {
		t.Fatal("expected no active session in empty database")
	}

	first, _ := store.CreateSession(models.ModeAPI, "{}")
	stopped := models.SessionStopped
	if _, err := store.UpdateSession(first.ID, SessionUpdate{Status: &stopped}); err != nil {
		t.Fatalf("stop first session: %v", err)
	}

	active, err = store.GetActiveSession()
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active != nil {
		t.Fatal("terminal sessions must not count as active")
	}

	second, _ := store.CreateSession(models.ModeAPI, "{}")
	running := models.SessionRunning
	if _, err := store.UpdateSession(second.ID, SessionUpdate{Status: &running}); err != nil {
		t.Fatalf("start second session: %v", err)
	}

	active, err = store.GetActiveSession()
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active == nil || active.ID != second.ID {
		t.Fatalf("expected session %s active, got %+v", second.ID, active)
	}
}
