package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/fastertools/atmo/internal/errs"
	"github.com/fastertools/atmo/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_OAuth2(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantErr  bool
		wantAuth string
	}{
		{
			name:     "defaults",
			config:   Config{ClientID: "id"},
			wantAuth: "https://api.netatmo.com/oauth2/authorize",
		},
		{
			name:     "custom base with trailing slash",
			config:   Config{ClientID: "id", BaseURL: "http://127.0.0.1:9999/"},
			wantAuth: "http://127.0.0.1:9999/oauth2/authorize",
		},
		{
			name:    "relative base",
			config:  Config{ClientID: "id", BaseURL: "api.netatmo.com"},
			wantErr: true,
		},
		{
			name:    "unparseable base",
			config:  Config{ClientID: "id", BaseURL: "http://[::1"},
			wantErr: true,
		},
		{
			name:    "missing client id",
			config:  Config{},
			wantErr: true,
		},
		{
			name:    "port out of range",
			config:  Config{ClientID: "id", RedirectPort: 70000},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oc, err := tt.config.OAuth2()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsKind(err, errs.InvalidConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAuth, oc.Endpoint.AuthURL)
			assert.Equal(t, DefaultScopes, oc.Scopes)
			assert.Equal(t, "http://localhost:8000/api/authorization_response", oc.RedirectURL)
		})
	}
}

func TestOAuthClient_RefreshToken(t *testing.T) {
	provider, server := newFakeProvider(t, RawTokenReply{
		AccessToken:  "A2",
		RefreshToken: "R2",
		ExpiresIn:    10800,
	})

	client := NewOAuthClient(gateway.New(server.Client()), testConfig(server.URL, 0), time.Second)

	current, err := DecodeToken(RawTokenReply{AccessToken: "A1", RefreshToken: "R1", ExpiresIn: 0})
	require.NoError(t, err)

	next, err := client.RefreshToken(context.Background(), current)
	require.NoError(t, err)

	assert.Equal(t, "A2", next.AccessToken())
	assert.Equal(t, "R2", next.RefreshToken())
	assert.True(t, next.ExpiresAt().After(time.Now().Add(10700*time.Second)))

	// the old token is untouched
	assert.Equal(t, "A1", current.AccessToken())
	assert.Equal(t, "R1", current.RefreshToken())

	forms := provider.Forms()
	require.Len(t, forms, 1)
	assert.Equal(t, "refresh_token", forms[0].Get("grant_type"))
	assert.Equal(t, "R1", forms[0].Get("refresh_token"))
	assert.Equal(t, "test-client", forms[0].Get("client_id"))
	assert.Equal(t, "test-secret", forms[0].Get("client_secret"))
}

func TestOAuthClient_ScopeInReplyIsIgnored(t *testing.T) {
	replies := map[string]map[string]any{
		"space delimited string": {
			"access_token": "A", "refresh_token": "R", "expires_in": 10800,
			"scope": "read_station read_homecoach",
		},
		"list": {
			"access_token": "A", "refresh_token": "R", "expires_in": 10800,
			"scope": []string{"read_station", "read_homecoach"},
		},
	}

	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			_, server := newFakeProvider(t, reply)
			client := NewOAuthClient(gateway.New(server.Client()), testConfig(server.URL, 0), time.Second)

			refreshed, err := client.RefreshToken(context.Background(), Token{refreshToken: "R0"})
			require.NoError(t, err)
			assert.Equal(t, "A", refreshed.AccessToken())

			exchanged, err := client.ExchangeCode(context.Background(), "code")
			require.NoError(t, err)
			assert.Equal(t, "R", exchanged.RefreshToken())
		})
	}
}

func TestOAuthClient_RefreshToken_Rejected(t *testing.T) {
	provider, server := newFakeProvider(t, map[string]string{"error": "invalid_grant"})
	provider.status = http.StatusBadRequest

	client := NewOAuthClient(gateway.New(server.Client()), testConfig(server.URL, 0), time.Second)

	_, err := client.RefreshToken(context.Background(), Token{refreshToken: "stale"})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.RequestFailed))
	assert.Contains(t, err.Error(), "failed to refresh token")
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestOAuthClient_PasswordLogin(t *testing.T) {
	provider, server := newFakeProvider(t, RawTokenReply{
		AccessToken:  "A",
		RefreshToken: "R",
		ExpiresIn:    60,
	})

	client := NewOAuthClient(gateway.New(server.Client()), testConfig(server.URL, 0), 0)

	tok, err := client.PasswordLogin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", tok.AccessToken())

	forms := provider.Forms()
	require.Len(t, forms, 1)
	assert.Equal(t, "password", forms[0].Get("grant_type"))
	assert.Equal(t, "user@example.com", forms[0].Get("username"))
	assert.Equal(t, "hunter2", forms[0].Get("password"))
	assert.Equal(t, "read_station read_homecoach", forms[0].Get("scope"))
}

func TestOAuthClient_ExchangeCode_Form(t *testing.T) {
	provider, server := newFakeProvider(t, RawTokenReply{AccessToken: "A", RefreshToken: "R", ExpiresIn: 60})

	client := NewOAuthClient(gateway.New(server.Client()), testConfig(server.URL, 8123), time.Second)

	_, err := client.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)

	forms := provider.Forms()
	require.Len(t, forms, 1)
	assert.Equal(t, "authorization_code", forms[0].Get("grant_type"))
	assert.Equal(t, "the-code", forms[0].Get("code"))
	assert.Equal(t, "http://localhost:8123/api/authorization_response", forms[0].Get("redirect_uri"))
	assert.Equal(t, "test-secret", forms[0].Get("client_secret"))
}

func TestOAuthClient_TokenReplyErrors(t *testing.T) {
	tests := []struct {
		name     string
		reply    any
		wantKind errs.Kind
	}{
		{
			name:     "negative lifetime",
			reply:    RawTokenReply{AccessToken: "A", ExpiresIn: -1},
			wantKind: errs.InvalidTokenLifetime,
		},
		{
			name:     "wrong shape",
			reply:    []string{"not", "an", "object"},
			wantKind: errs.Decode,
		},
		{
			name:     "missing access token",
			reply:    map[string]int{"expires_in": 60},
			wantKind: errs.Decode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, server := newFakeProvider(t, tt.reply)
			client := NewOAuthClient(gateway.New(server.Client()), testConfig(server.URL, 0), time.Second)

			_, err := client.PasswordLogin(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, errs.KindOf(err))
		})
	}
}

func TestParseGrant(t *testing.T) {
	g, err := ParseGrant("")
	require.NoError(t, err)
	assert.Equal(t, GrantAuthorizationCode, g)

	g, err = ParseGrant("password")
	require.NoError(t, err)
	assert.Equal(t, GrantPassword, g)

	_, err = ParseGrant("client_credentials")
	assert.Error(t, err)
}

func TestManager_LoginPassword_SkipsBrowser(t *testing.T) {
	_, server := newFakeProvider(t, RawTokenReply{AccessToken: "A", ExpiresIn: 60})
	opener := &MockBrowserOpener{}

	client := NewOAuthClient(gateway.New(server.Client()), testConfig(server.URL, 0), time.Second)
	manager := NewManagerWithBrowser(client, opener, &LoginConfig{Grant: GrantPassword})

	tok, err := manager.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", tok.AccessToken())
	assert.Empty(t, opener.Calls())
}
