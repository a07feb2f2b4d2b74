package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"creatorreach/models"
)

func TestConfigGet_NotFoundBeforeSave(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/config", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestConfigUpdate_MergesOverDefaults(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/config", map[string]any{
		"dailyInviteLimit": 25,
		"categories":       []string{"Beauty"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var cfg models.BotConfig
	if err := json.NewDecoder(rec.Body).Decode(&cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.DailyInviteLimit != 25 {
		t.Fatalf("expected limit 25, got %d", cfg.DailyInviteLimit)
	}
	// Fields not in the body come from the defaults.
	if cfg.MinFollowers != models.DefaultBotConfig().MinFollowers {
		t.Fatalf("expected default min followers, got %d", cfg.MinFollowers)
	}
	if cfg.UpdatedAt.IsZero() {
		t.Fatal("expected UpdatedAt stamped")
	}
}

func TestConfigUpdate_MergesOverExisting(t *testing.T) {
	ts := setupTestServer(t)

	cfg := models.DefaultBotConfig()
	cfg.InviteMessage = "join our program"
	cfg.DailyInviteLimit = 40
	if _, err := ts.store.SaveBotConfig(cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	rec := ts.do(t, http.MethodPut, "/api/config", map[string]any{"dailyInviteLimit": 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	saved, err := ts.store.GetBotConfig()
	if err != nil || saved == nil {
		t.Fatalf("load config: %v", err)
	}
	if saved.DailyInviteLimit != 10 {
		t.Fatalf("expected limit 10, got %d", saved.DailyInviteLimit)
	}
	if saved.InviteMessage != "join our program" {
		t.Fatalf("untouched field lost: %q", saved.InviteMessage)
	}
}

func TestConfigUpdate_RejectsInvalid(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/config", map[string]any{
		"minFollowers": 5000,
		"maxFollowers": 100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPut, "/api/config", map[string]any{"dailyInviteLimit": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero limit, got %d", rec.Code)
	}
}

func TestCreatorsAndActivities_EmptyLists(t *testing.T) {
	ts := setupTestServer(t)
	ts.saveIdleConfig(t)

	for _, path := range []string{"/api/creators", "/api/creators/invitable", "/api/activities"} {
		rec := ts.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		if body := rec.Body.String(); body != "[]\n" {
			t.Fatalf("%s: expected empty JSON array, got %q", path, body)
		}
	}
}

func TestCreatorsInvitable_RespectsCooldown(t *testing.T) {
	ts := setupTestServer(t)
	ts.saveIdleConfig(t)

	now := time.Now().UTC()
	recent := now.Add(-time.Hour)
	seed := []models.Creator{
		{Username: "ready", Followers: 5000},
		{Username: "cooling", Followers: 8000, InviteStatus: models.InviteSent, LastInvitedAt: &recent},
	}
	for _, c := range seed {
		if _, err := ts.store.Creators.Create(c); err != nil {
			t.Fatalf("seed %s: %v", c.Username, err)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/creators/invitable", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var creators []models.Creator
	if err := json.NewDecoder(rec.Body).Decode(&creators); err != nil {
		t.Fatalf("decode creators: %v", err)
	}
	if len(creators) != 1 || creators[0].Username != "ready" {
		t.Fatalf("expected only 'ready' invitable, got %+v", creators)
	}
}

func TestMetrics(t *testing.T) {
	ts := setupTestServer(t)
	ts.saveIdleConfig(t)

	session, err := ts.store.CreateSession(models.ModeAPI, "{}")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := ts.store.RecordInviteOutcome(session.ID, models.Creator{Username: "alice"}, true,
		models.Activity{Type: models.ActivityInviteSent}); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	rec := ts.do(t, http.MethodGet, "/api/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp MetricsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if resp.Totals.Sessions != 1 || resp.Totals.InvitesSent != 1 || resp.Totals.SuccessfulInvites != 1 {
		t.Fatalf("unexpected totals: %+v", resp.Totals)
	}
	if resp.Creators[models.InviteSent] != 1 {
		t.Fatalf("unexpected creator counts: %v", resp.Creators)
	}
	if resp.Current.Status != "idle" {
		t.Fatalf("expected idle current status, got %q", resp.Current.Status)
	}
}
