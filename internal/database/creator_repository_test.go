package database

import (
	"testing"
	"time"

	"creatorreach/models"
)

func TestCreatorRepository_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)

	created, err := store.Creators.Create(models.Creator{
		Username:  "alice",
		Followers: 5000,
		Category:  "Beauty",
	})
	if err != nil {
		t.Fatalf("create creator: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated creator id")
	}
	if created.InviteStatus != models.InviteNotInvited {
		t.Fatalf("expected default status not_invited, got %s", created.InviteStatus)
	}

	got, err := store.GetCreatorByUsername("alice")
	if err != nil {
		t.Fatalf("get creator: %v", err)
	}
	if got == nil || got.Followers != 5000 || got.Category != "Beauty" {
		t.Fatalf("unexpected creator: %+v", got)
	}

	missing, err := store.GetCreatorByUsername("nobody")
	if err != nil {
		t.Fatalf("get missing creator: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown username")
	}
}

func TestCreatorRepository_DuplicateUsername(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.Creators.Create(models.Creator{Username: "alice"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := store.Creators.Create(models.Creator{Username: "alice"}); err == nil {
		t.Fatal("expected unique constraint violation on duplicate username")
	}
}

func TestCreatorRepository_PartialUpdate(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.Creators.Create(models.Creator{Username: "bob", Followers: 100}); err != nil {
		t.Fatalf("create creator: %v", err)
	}

	status := models.InviteSent
	now := time.Now().UTC()
	updated, err := store.Creators.Update("bob", CreatorUpdate{
		InviteStatus:  &status,
		LastInvitedAt: &now,
	})
	if err != nil {
		t.Fatalf("update creator: %v", err)
	}
	if updated.InviteStatus != models.InviteSent || updated.LastInvitedAt == nil {
		t.Fatalf("unexpected creator after update: %+v", updated)
	}
	if updated.Followers != 100 {
		t.Fatal("untouched fields must stay untouched")
	}
}

func TestCreatorRepository_ListForInvitation(t *testing.T) {
	store := setupTestStore(t)

	now := time.Now().UTC()
	recent := now.Add(-1 * time.Hour)
	old := now.Add(-48 * time.Hour)

	seed := []models.Creator{
		{Username: "fresh", Followers: 1000},
		{Username: "cooling", Followers: 2000, InviteStatus: models.InviteSent, LastInvitedAt: &recent},
		{Username: "cooled", Followers: 3000, InviteStatus: models.InviteFailed, LastInvitedAt: &old},
		{Username: "accepted", Followers: 9000, InviteStatus: models.InviteAccepted, LastInvitedAt: &old},
	}
	for _, c := range seed {
		if _, err := store.Creators.Create(c); err != nil {
			t.Fatalf("seed %s: %v", c.Username, err)
		}
	}

	got, err := store.ListCreatorsForInvitation(10, 24*time.Hour)
	if err != nil {
		t.Fatalf("list for invitation: %v", err)
	}

	// "cooled" outranks "fresh" on follower count; "cooling" is inside the
	// window and "accepted" is out for good.
	want := []string{"cooled", "fresh"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %+v", len(want), len(got), got)
	}
	for i, username := range want {
		if got[i].Username != username {
			t.Fatalf("position %d: expected %s, got %s", i, username, got[i].Username)
		}
	}
}

func TestCreatorRepository_StatusCounts(t *testing.T) {
	store := setupTestStore(t)

	seed := []models.Creator{
		{Username: "a"},
		{Username: "b", InviteStatus: models.InviteSent},
		{Username: "c", InviteStatus: models.InviteSent},
		{Username: "d", InviteStatus: models.InviteAccepted},
	}
	for _, c := range seed {
		if _, err := store.Creators.Create(c); err != nil {
			t.Fatalf("seed %s: %v", c.Username, err)
		}
	}

	counts, err := store.Creators.StatusCounts()
	if err != nil {
		t.Fatalf("status counts: %v", err)
	}
	if counts[models.InviteNotInvited] != 1 || counts[models.InviteSent] != 2 || counts[models.InviteAccepted] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
