package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// Settings holds process-level configuration: where to listen, where data
// lives, and how to reach the platform. Targeting configuration (follower
// ranges, limits, pacing) lives in the store as BotConfig, not here.
type Settings struct {
	ListenAddr     string   `json:"listenAddr" env:"CREATORREACH_LISTEN_ADDR"`
	DataDir        string   `json:"dataDir" env:"CREATORREACH_DATA_DIR"`
	DashboardToken string   `json:"dashboardToken" env:"CREATORREACH_DASHBOARD_TOKEN"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty" env:"CREATORREACH_ALLOWED_ORIGINS"`

	// Dashboard API rate limiting (per client IP).
	RateLimitPerMinute int `json:"rateLimitPerMinute" env:"CREATORREACH_RATE_LIMIT_PER_MINUTE"`
	RateLimitBurst     int `json:"rateLimitBurst" env:"CREATORREACH_RATE_LIMIT_BURST"`

	Browser BrowserSettings `json:"browser"`
	API     APISettings     `json:"api"`
}

// BrowserSettings configures the headless-browser backend.
type BrowserSettings struct {
	SellerURL      string `json:"sellerUrl" env:"CREATORREACH_SELLER_URL"`
	Headless       bool   `json:"headless" env:"CREATORREACH_HEADLESS"`
	TimeoutSeconds int    `json:"timeoutSeconds" env:"CREATORREACH_BROWSER_TIMEOUT_SECONDS"`
}

// APISettings configures the Business API backend.
type APISettings struct {
	BaseURL           string `json:"baseUrl" env:"CREATORREACH_API_BASE_URL"`
	AccessToken       string `json:"accessToken,omitempty" env:"CREATORREACH_API_ACCESS_TOKEN"`
	TimeoutSeconds    int    `json:"timeoutSeconds" env:"CREATORREACH_API_TIMEOUT_SECONDS"`
	RequestsPerMinute int    `json:"requestsPerMinute" env:"CREATORREACH_API_REQUESTS_PER_MINUTE"`
}

// DefaultSettings returns the settings used when no settings file exists yet.
func DefaultSettings() Settings {
	return Settings{
		ListenAddr:         ":8090",
		DataDir:            "./data",
		RateLimitPerMinute: 120,
		RateLimitBurst:     30,
		Browser: BrowserSettings{
			SellerURL:      "https://seller.tiktok.com",
			Headless:       true,
			TimeoutSeconds: 45,
		},
		API: APISettings{
			BaseURL:           "https://business-api.tiktok.com",
			TimeoutSeconds:    30,
			RequestsPerMinute: 30,
		},
	}
}

// Manager loads and persists the settings file, with environment variables
// taking precedence over file contents on every Load.
type Manager struct {
	mu   sync.RWMutex
	path string
}

// NewManager creates a settings manager for the given file path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads settings from disk, falling back to defaults when the file does
// not exist, then applies environment overrides.
func (m *Manager) Load() (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	settings := DefaultSettings()

	data, err := os.ReadFile(m.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			return Settings{}, fmt.Errorf("parse settings: %w", err)
		}
	}

	if err := env.Parse(&settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings env: %w", err)
	}

	return settings, nil
}

// Save writes settings to disk atomically.
func (m *Manager) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings temp file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
