package tiktok

import (
	"context"
	"errors"

	"creatorreach/models"
)

var (
	ErrAuthFailed       = errors.New("platform authentication failed")
	ErrNotAuthenticated = errors.New("backend not authenticated")
)

// Credentials carries whichever secret the selected backend needs: username
// and password for the seller-site browser login, or a bearer access token for
// the Business API. Token exchange itself happens elsewhere; the backend only
// consumes the result.
type Credentials struct {
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

// DiscoveryCriteria narrows creator discovery on the platform side.
type DiscoveryCriteria struct {
	MinFollowers int64
	MaxFollowers int64
	Categories   []string
	Limit        int
}

// Backend is the capability set both outreach mechanisms implement. The
// orchestrator picks an implementation at session start and never branches on
// which one it got.
//
// Teardown must be safe to call repeatedly and must release any held external
// resource without returning an error for "nothing to release".
type Backend interface {
	Authenticate(ctx context.Context, creds Credentials) error
	DiscoverCreators(ctx context.Context, criteria DiscoveryCriteria) ([]models.Creator, error)
	SendInvitation(ctx context.Context, creator models.Creator, message string) error
	Teardown() error
}
