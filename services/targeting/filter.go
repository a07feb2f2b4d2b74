package targeting

import (
	"strings"
	"time"

	"creatorreach/models"
)

// Criteria is the targeting slice of the bot configuration: who is worth
// inviting, and how long to leave a previously invited creator alone.
type Criteria struct {
	MinFollowers int64
	MaxFollowers int64
	Categories   []string
	Cooldown     time.Duration
}

// CriteriaFromConfig extracts targeting criteria from a BotConfig.
func CriteriaFromConfig(cfg models.BotConfig) Criteria {
	return Criteria{
		MinFollowers: cfg.MinFollowers,
		MaxFollowers: cfg.MaxFollowers,
		Categories:   cfg.Categories,
		Cooldown:     cfg.Cooldown(),
	}
}

// IsEligible decides whether a creator should receive an invitation right now.
// Pure function: the caller supplies the clock so boundary behavior is exact
// and testable.
//
// A creator is rejected when:
//   - they already accepted an earlier invitation,
//   - they were invited within the cool-down window,
//   - their follower count falls outside the configured range,
//   - a category list is configured and theirs is not on it.
func IsEligible(c models.Creator, criteria Criteria, now time.Time) bool {
	if c.InviteStatus == models.InviteAccepted {
		return false
	}
	if criteria.Cooldown > 0 && c.InvitedWithin(criteria.Cooldown, now) {
		return false
	}
	if criteria.MinFollowers > 0 && c.Followers < criteria.MinFollowers {
		return false
	}
	if criteria.MaxFollowers > 0 && c.Followers > criteria.MaxFollowers {
		return false
	}
	if !matchesCategory(c.Category, criteria.Categories) {
		return false
	}
	return true
}

// Filter returns the creators from the batch that pass IsEligible, preserving
// discovery order.
func Filter(creators []models.Creator, criteria Criteria, now time.Time) []models.Creator {
	var eligible []models.Creator
	for _, c := range creators {
		if IsEligible(c, criteria, now) {
			eligible = append(eligible, c)
		}
	}
	return eligible
}

// matchesCategory reports whether the creator's category is targeted. An empty
// category list accepts every category.
func matchesCategory(category string, targets []string) bool {
	if len(targets) == 0 {
		return true
	}
	for _, t := range targets {
		if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(category)) {
			return true
		}
	}
	return false
}
