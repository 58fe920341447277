package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/fastertools/atmo/internal/errs"
	"github.com/fastertools/atmo/internal/gateway"
)

const (
	// DefaultBaseURL is the provider's API and OAuth host
	DefaultBaseURL = "https://api.netatmo.com"
	// DefaultRedirectPort is the loopback port the callback listener binds
	DefaultRedirectPort = 8000
	// CallbackPath is the single route served by the callback listener
	CallbackPath = "/api/authorization_response"
	// DefaultTimeout bounds each token exchange
	DefaultTimeout = time.Second
)

// DefaultScopes are the read scopes for weather stations and home coaches
var DefaultScopes = []string{"read_station", "read_homecoach"}

// Config holds the account credentials and provider endpoints
type Config struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	// State is the anti-forgery value round-tripped through the consent
	// redirect. The caller must make it unique per run.
	State        string
	BaseURL      string
	RedirectPort int
	Scopes       []string
}

func (c Config) baseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimSuffix(c.BaseURL, "/")
}

func (c Config) port() int {
	if c.RedirectPort == 0 {
		return DefaultRedirectPort
	}
	return c.RedirectPort
}

func (c Config) scopes() []string {
	if len(c.Scopes) == 0 {
		return DefaultScopes
	}
	return c.Scopes
}

// RedirectURL is the loopback URL the provider redirects the browser to
func (c Config) RedirectURL() string {
	return fmt.Sprintf("http://localhost:%d%s", c.port(), CallbackPath)
}

// ListenAddr is the address the callback listener binds
func (c Config) ListenAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.port())
}

// OAuth2 describes the provider as an oauth2.Config
func (c Config) OAuth2() (*oauth2.Config, error) {
	base, err := url.Parse(c.baseURL())
	if err != nil {
		return nil, errs.New(errs.InvalidConfig, "parse base url", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, errs.New(errs.InvalidConfig, "parse base url",
			fmt.Errorf("%q is not an absolute http(s) URL", c.baseURL()))
	}
	if c.ClientID == "" {
		return nil, errs.New(errs.InvalidConfig, "oauth2 config", fmt.Errorf("client_id is required"))
	}
	if p := c.port(); p < 1 || p > 65535 {
		return nil, errs.New(errs.InvalidConfig, "oauth2 config", fmt.Errorf("redirect port %d out of range", p))
	}

	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base.JoinPath("oauth2", "authorize").String(),
			TokenURL:  base.JoinPath("oauth2", "token").String(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: c.RedirectURL(),
		Scopes:      c.scopes(),
	}, nil
}

// OAuthClient performs the token endpoint exchanges
type OAuthClient struct {
	gateway *gateway.Gateway
	config  Config
	timeout time.Duration
}

// NewOAuthClient creates a token endpoint client. A zero timeout uses
// DefaultTimeout.
func NewOAuthClient(gw *gateway.Gateway, config Config, timeout time.Duration) *OAuthClient {
	if gw == nil {
		gw = gateway.New(nil)
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &OAuthClient{
		gateway: gw,
		config:  config,
		timeout: timeout,
	}
}

// Config returns the client's configuration
func (c *OAuthClient) Config() Config {
	return c.config
}

// ExchangeCode trades an authorization code for a token
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (Token, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {c.config.RedirectURL()},
		"scope":         {strings.Join(c.config.scopes(), " ")},
	}

	tok, err := c.requestToken(ctx, data)
	if err != nil {
		return Token{}, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

// RefreshToken exchanges current's refresh token for a new token.
// current is left untouched.
func (c *OAuthClient) RefreshToken(ctx context.Context, current Token) (Token, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {current.RefreshToken()},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
	}

	tok, err := c.requestToken(ctx, data)
	if err != nil {
		return Token{}, fmt.Errorf("failed to refresh token: %w", err)
	}
	return tok, nil
}

// PasswordLogin obtains a token with the resource owner password grant
func (c *OAuthClient) PasswordLogin(ctx context.Context) (Token, error) {
	data := url.Values{
		"grant_type":    {"password"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"username":      {c.config.Username},
		"password":      {c.config.Password},
		"scope":         {strings.Join(c.config.scopes(), " ")},
	}

	tok, err := c.requestToken(ctx, data)
	if err != nil {
		return Token{}, fmt.Errorf("password login failed: %w", err)
	}
	return tok, nil
}

// requestToken posts a form to the token endpoint and decodes the reply
func (c *OAuthClient) requestToken(ctx context.Context, data url.Values) (Token, error) {
	oc, err := c.config.OAuth2()
	if err != nil {
		return Token{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", oc.Endpoint.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return Token{}, errs.New(errs.InvalidConfig, "build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.gateway.Send(req, c.timeout)
	if err != nil {
		return Token{}, err
	}

	var raw RawTokenReply
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return Token{}, errs.New(errs.Decode, gateway.Op(req), fmt.Errorf("failed to parse token response: %w", err))
	}
	if raw.AccessToken == "" {
		return Token{}, errs.New(errs.Decode, gateway.Op(req), fmt.Errorf("token response has no access_token"))
	}

	return DecodeToken(raw)
}
