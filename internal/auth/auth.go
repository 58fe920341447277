package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/browser"
)

// Grant selects how the initial token is obtained
type Grant string

const (
	// GrantAuthorizationCode asks the user for consent in a browser
	GrantAuthorizationCode Grant = "authorization_code"
	// GrantPassword uses the configured username and password
	GrantPassword Grant = "password"
)

// ParseGrant validates a grant name. An empty name selects the
// authorization-code grant.
func ParseGrant(s string) (Grant, error) {
	switch Grant(s) {
	case "", GrantAuthorizationCode:
		return GrantAuthorizationCode, nil
	case GrantPassword:
		return GrantPassword, nil
	}
	return "", fmt.Errorf("unknown grant %q (want %s or %s)", s, GrantAuthorizationCode, GrantPassword)
}

// BrowserOpener opens a URL for the user
type BrowserOpener interface {
	OpenURL(url string) error
}

// defaultBrowserOpener implements BrowserOpener using the browser package
type defaultBrowserOpener struct{}

func (d *defaultBrowserOpener) OpenURL(url string) error {
	return browser.OpenURL(url)
}

// LoginConfig controls how Login obtains the first token
type LoginConfig struct {
	Grant Grant
	// AuthTimeout bounds the wait for the consent callback. Zero waits
	// until the context is cancelled.
	AuthTimeout time.Duration
}

// Manager obtains and refreshes tokens for a single account
type Manager struct {
	oauth   *OAuthClient
	browser BrowserOpener
	config  *LoginConfig
}

// NewManager creates a manager that opens the system browser for consent
func NewManager(oauth *OAuthClient, config *LoginConfig) *Manager {
	return NewManagerWithBrowser(oauth, &defaultBrowserOpener{}, config)
}

// NewManagerWithBrowser creates a manager with a custom browser opener
func NewManagerWithBrowser(oauth *OAuthClient, opener BrowserOpener, config *LoginConfig) *Manager {
	if config == nil {
		config = &LoginConfig{Grant: GrantAuthorizationCode}
	}
	if opener == nil {
		opener = &defaultBrowserOpener{}
	}
	return &Manager{
		oauth:   oauth,
		browser: opener,
		config:  config,
	}
}

// Login obtains the first token with the configured grant
func (m *Manager) Login(ctx context.Context) (Token, error) {
	switch m.config.Grant {
	case GrantPassword:
		return m.oauth.PasswordLogin(ctx)
	case "", GrantAuthorizationCode:
		return m.Authorize(ctx)
	default:
		return Token{}, fmt.Errorf("unsupported grant %q", m.config.Grant)
	}
}

// Refresh exchanges current for a new token
func (m *Manager) Refresh(ctx context.Context, current Token) (Token, error) {
	return m.oauth.RefreshToken(ctx, current)
}
