package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"creatorreach/config"
	"creatorreach/models"
)

const (
	creatorSearchPath = "/open_api/v1.3/affiliate/creator/search/"
	creatorInvitePath = "/open_api/v1.3/affiliate/collaboration/invite/"
	tokenInfoPath     = "/open_api/v1.3/oauth2/token/info/"
)

// APIClient is the Business API backend. One instance serves one session; the
// orchestrator tears it down when the session ends.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter

	mu          sync.Mutex
	accessToken string
}

// NewAPIClient creates an API backend from settings.
func NewAPIClient(cfg config.APISettings) *APIClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	c := &APIClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
	if cfg.AccessToken != "" {
		c.accessToken = cfg.AccessToken
	}
	return c
}

// SetAccessToken installs a token obtained out of band, e.g. from the
// dashboard's OAuth flow, before Start.
func (c *APIClient) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *APIClient) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// Authenticate validates the access token against the token info endpoint.
// Credentials may carry a fresh token; otherwise the previously set one is used.
func (c *APIClient) Authenticate(ctx context.Context, creds Credentials) error {
	if creds.AccessToken != "" {
		c.SetAccessToken(creds.AccessToken)
	}
	if c.token() == "" {
		return fmt.Errorf("%w: no access token", ErrAuthFailed)
	}

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, tokenInfoPath, nil, &resp); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if resp.Code != 0 {
		return fmt.Errorf("%w: %s", ErrAuthFailed, resp.Message)
	}
	return nil
}

type creatorSearchRequest struct {
	FollowerMin int64    `json:"follower_count_min,omitempty"`
	FollowerMax int64    `json:"follower_count_max,omitempty"`
	Categories  []string `json:"content_categories,omitempty"`
	PageSize    int      `json:"page_size"`
}

type creatorSearchResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Creators []struct {
			CreatorID      string  `json:"creator_id"`
			Username       string  `json:"username"`
			Nickname       string  `json:"nickname"`
			FollowerCount  int64   `json:"follower_count"`
			Category       string  `json:"category"`
			Verified       bool    `json:"is_verified"`
			EngagementRate float64 `json:"engagement_rate"`
		} `json:"creators"`
	} `json:"data"`
}

// DiscoverCreators searches the creator marketplace with the given criteria.
func (c *APIClient) DiscoverCreators(ctx context.Context, criteria DiscoveryCriteria) ([]models.Creator, error) {
	if c.token() == "" {
		return nil, ErrNotAuthenticated
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = 20
	}
	req := creatorSearchRequest{
		FollowerMin: criteria.MinFollowers,
		FollowerMax: criteria.MaxFollowers,
		Categories:  criteria.Categories,
		PageSize:    limit,
	}

	var resp creatorSearchResponse
	if err := c.do(ctx, http.MethodPost, creatorSearchPath, req, &resp); err != nil {
		return nil, fmt.Errorf("creator search: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("creator search: api code %d: %s", resp.Code, resp.Message)
	}

	creators := make([]models.Creator, 0, len(resp.Data.Creators))
	for _, raw := range resp.Data.Creators {
		creators = append(creators, models.Creator{
			Username:       raw.Username,
			DisplayName:    raw.Nickname,
			Followers:      raw.FollowerCount,
			Category:       raw.Category,
			InviteStatus:   models.InviteNotInvited,
			PlatformID:     raw.CreatorID,
			Verified:       raw.Verified,
			EngagementRate: raw.EngagementRate,
		})
	}
	return creators, nil
}

// SendInvitation sends a collaboration invite to one creator.
func (c *APIClient) SendInvitation(ctx context.Context, creator models.Creator, message string) error {
	if c.token() == "" {
		return ErrNotAuthenticated
	}

	req := map[string]string{
		"creator_id": creator.PlatformID,
		"username":   creator.Username,
		"message":    message,
	}
	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, creatorInvitePath, req, &resp); err != nil {
		return fmt.Errorf("send invitation: %w", err)
	}
	if resp.Code != 0 {
		return fmt.Errorf("send invitation: api code %d: %s", resp.Code, resp.Message)
	}
	return nil
}

// Teardown drops idle connections. Safe to call any number of times.
func (c *APIClient) Teardown() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// apiStatusError carries the HTTP status so retries can tell rate limiting and
// server hiccups apart from hard failures.
type apiStatusError struct {
	status int
	path   string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.path, e.status)
}

func retryableStatus(err error) bool {
	if e, ok := err.(*apiStatusError); ok {
		return e.status == http.StatusTooManyRequests || e.status >= 500
	}
	return false
}

// do performs one JSON request with pacing and bounded retries on 429/5xx.
func (c *APIClient) do(ctx context.Context, method, path string, payload, out any) error {
	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			return c.doOnce(ctx, method, path, payload, out)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(retryableStatus),
		retry.LastErrorOnly(true),
	)
}

func (c *APIClient) doOnce(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Access-Token", c.token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &apiStatusError{status: resp.StatusCode, path: path}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}
