package cli

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fastertools/atmo/internal/api"
	"github.com/fastertools/atmo/internal/auth"
	"github.com/fastertools/atmo/internal/config"
	"github.com/fastertools/atmo/internal/gateway"
)

// newSecretStore is swapped out in tests
var newSecretStore = func() config.SecretStore {
	return bestEffortStore{config.NewKeyringStore()}
}

// flagKeys maps command flags onto configuration keys
var flagKeys = map[string]string{
	"interval":     "poll_interval",
	"timeout":      "request_timeout",
	"grant":        "grant",
	"auth-timeout": "auth_timeout",
	"port":         "redirect_port",
}

// loadConfig reads the config file, ATMO_* variables, the keyring, and any
// flags of cmd that override configuration keys
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return nil, err
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind --%s: %w", flag, err)
			}
		}
	}
	if path := v.ConfigFileUsed(); path != "" {
		Debug("Using config file: %s", path)
	}
	return config.Load(v, newSecretStore())
}

func addAccountFlags(cmd *cobra.Command) {
	cmd.Flags().String("grant", "", "grant used to sign in (authorization_code or password)")
	cmd.Flags().Duration("timeout", config.DefaultRequestTimeout, "timeout for each HTTP request")
	cmd.Flags().Duration("auth-timeout", 0, "give up waiting for browser consent after this long (0 waits forever)")
	cmd.Flags().Int("port", auth.DefaultRedirectPort, "loopback port receiving the authorization redirect")
	cmd.Flags().Bool("no-browser", false, "print the consent URL instead of opening a browser")
}

// account bundles the clients for one configured account
type account struct {
	config *config.Config
	grant  auth.Grant
	oauth  *auth.OAuthClient
	tokens *auth.Manager
	api    *api.Client
}

// newAccount validates cfg and builds the token manager and data client.
// With noBrowser set the consent URL is written to w.
func newAccount(cfg *config.Config, noBrowser bool, w io.Writer) (*account, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grant, err := auth.ParseGrant(cfg.Grant)
	if err != nil {
		return nil, err
	}

	gw := gateway.New(&http.Client{})
	oauth := auth.NewOAuthClient(gw, cfg.AuthConfig(), cfg.RequestTimeout)

	var opener auth.BrowserOpener
	if noBrowser {
		opener = printOpener{w: w}
	}
	tokens := auth.NewManagerWithBrowser(oauth, opener, &auth.LoginConfig{
		Grant:       grant,
		AuthTimeout: cfg.AuthTimeout,
	})

	client, err := api.NewClient(gw, cfg.APIBaseURL, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	return &account{
		config: cfg,
		grant:  grant,
		oauth:  oauth,
		tokens: tokens,
		api:    client,
	}, nil
}
