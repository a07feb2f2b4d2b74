package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"creatorreach/config"
	"creatorreach/models"
)

// Seller-site selectors. These track the affiliate marketplace UI and are the
// part of this driver most likely to need maintenance.
const (
	selLoginEmail    = `input[name="email"]`
	selLoginPassword = `input[type="password"]`
	selLoginSubmit   = `button[type="submit"]`
	selDashboardNav  = `div[data-testid="seller-dashboard-nav"]`
	selCreatorCards  = `div[data-testid="creator-card"]`
	selInviteButton  = `button[data-testid="invite-creator"]`
	selInviteMessage = `textarea[data-testid="invite-message"]`
	selInviteSend    = `button[data-testid="invite-send"]`
	selInviteToast   = `div[data-testid="invite-success-toast"]`
)

// extractCreatorsJS scrapes the visible creator cards into a JSON-friendly shape.
const extractCreatorsJS = `
Array.from(document.querySelectorAll('div[data-testid="creator-card"]')).map(card => ({
	username: card.getAttribute('data-username') || '',
	nickname: (card.querySelector('.creator-name') || {}).textContent || '',
	followers: parseInt(card.getAttribute('data-followers') || '0', 10),
	category: card.getAttribute('data-category') || '',
	verified: card.getAttribute('data-verified') === 'true'
}))`

// BrowserDriver drives the seller web UI through a headless Chrome instance.
// The browser process is started lazily on first use and owned until Teardown.
type BrowserDriver struct {
	settings config.BrowserSettings
	timeout  time.Duration

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	authenticated bool
}

// NewBrowserDriver creates a browser backend from settings. No browser is
// launched until Authenticate or the first operation.
func NewBrowserDriver(cfg config.BrowserSettings) *BrowserDriver {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &BrowserDriver{settings: cfg, timeout: timeout}
}

// start launches the browser if it is not already running. Caller holds d.mu.
func (d *BrowserDriver) startLocked() error {
	if d.browserCtx != nil {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.settings.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Launch now so a missing Chrome binary surfaces here, not mid-session.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("launch browser: %w", err)
	}

	d.allocCancel = allocCancel
	d.browserCtx = browserCtx
	d.browserCancel = browserCancel
	return nil
}

// run executes browser actions with the per-operation timeout.
func (d *BrowserDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.mu.Lock()
	if err := d.startLocked(); err != nil {
		d.mu.Unlock()
		return err
	}
	browserCtx := d.browserCtx
	d.mu.Unlock()

	opCtx, cancel := context.WithTimeout(browserCtx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(opCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Authenticate logs into the seller site with the supplied credentials and
// waits for the dashboard to render.
func (d *BrowserDriver) Authenticate(ctx context.Context, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("%w: username and password required", ErrAuthFailed)
	}

	err := d.run(ctx,
		chromedp.Navigate(d.settings.SellerURL+"/account/login"),
		chromedp.WaitVisible(selLoginEmail, chromedp.ByQuery),
		chromedp.SendKeys(selLoginEmail, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(selLoginPassword, creds.Password, chromedp.ByQuery),
		chromedp.Click(selLoginSubmit, chromedp.ByQuery),
		chromedp.WaitVisible(selDashboardNav, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	d.mu.Lock()
	d.authenticated = true
	d.mu.Unlock()
	log.Printf("[browser] logged in as %s", creds.Username)
	return nil
}

func (d *BrowserDriver) isAuthenticated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.authenticated
}

// DiscoverCreators opens the marketplace search with the criteria encoded in
// the URL and scrapes the rendered creator cards.
func (d *BrowserDriver) DiscoverCreators(ctx context.Context, criteria DiscoveryCriteria) ([]models.Creator, error) {
	if !d.isAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	searchURL := fmt.Sprintf("%s/affiliate/creators?follower_min=%d&follower_max=%d",
		d.settings.SellerURL, criteria.MinFollowers, criteria.MaxFollowers)
	if len(criteria.Categories) > 0 {
		searchURL += "&categories=" + strings.Join(criteria.Categories, ",")
	}

	var raw json.RawMessage
	err := d.run(ctx,
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible(selCreatorCards, chromedp.ByQuery),
		chromedp.Evaluate(extractCreatorsJS, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("discover creators: %w", err)
	}

	var rows []struct {
		Username  string `json:"username"`
		Nickname  string `json:"nickname"`
		Followers int64  `json:"followers"`
		Category  string `json:"category"`
		Verified  bool   `json:"verified"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parse creator cards: %w", err)
	}

	limit := criteria.Limit
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}

	creators := make([]models.Creator, 0, limit)
	for _, row := range rows[:limit] {
		if row.Username == "" {
			continue
		}
		creators = append(creators, models.Creator{
			Username:     row.Username,
			DisplayName:  row.Nickname,
			Followers:    row.Followers,
			Category:     row.Category,
			InviteStatus: models.InviteNotInvited,
			Verified:     row.Verified,
		})
	}
	return creators, nil
}

// SendInvitation opens the creator's profile, fills the invite dialog, and
// waits for the success toast.
func (d *BrowserDriver) SendInvitation(ctx context.Context, creator models.Creator, message string) error {
	if !d.isAuthenticated() {
		return ErrNotAuthenticated
	}

	err := d.run(ctx,
		chromedp.Navigate(d.settings.SellerURL+"/affiliate/creators/"+creator.Username),
		chromedp.WaitVisible(selInviteButton, chromedp.ByQuery),
		chromedp.Click(selInviteButton, chromedp.ByQuery),
		chromedp.WaitVisible(selInviteMessage, chromedp.ByQuery),
		chromedp.SendKeys(selInviteMessage, message, chromedp.ByQuery),
		chromedp.Click(selInviteSend, chromedp.ByQuery),
		chromedp.WaitVisible(selInviteToast, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("send invitation to %s: %w", creator.Username, err)
	}
	return nil
}

// Teardown kills the browser process. Safe to call repeatedly; an in-flight
// operation fails with a cancellation error the caller logs.
func (d *BrowserDriver) Teardown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCancel != nil {
		d.browserCancel()
		d.browserCancel = nil
	}
	if d.allocCancel != nil {
		d.allocCancel()
		d.allocCancel = nil
	}
	d.browserCtx = nil
	d.authenticated = false
	return nil
}
