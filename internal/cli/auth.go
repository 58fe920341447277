package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fastertools/atmo/internal/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  `Sign in to the weather API and inspect the authorization request.`,
	}

	// Add subcommands
	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthURLCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var showToken bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login and print the issued token",
		Long: `Run the configured grant once and report the issued token.

With the authorization_code grant a browser opens on the consent page and
atmo waits on the loopback redirect address for the authorization code.
The token is not stored; use "atmo watch" to poll.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			noBrowser, _ := cmd.Flags().GetBool("no-browser")
			acct, err := newAccount(cfg, noBrowser, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if !showToken {
				Info("Logging in with the %s grant", acct.grant)
			}

			var sp *consentSpinner
			if acct.grant == auth.GrantAuthorizationCode && !noBrowser {
				sp = newConsentSpinner(cmd.ErrOrStderr())
				sp.sp.Start()
			}
			token, err := acct.tokens.Login(commandContext(cmd))
			if sp != nil {
				sp.sp.Stop()
			}
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			// If --show-token is used, just output the token and nothing else
			if showToken {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), token.AccessToken())
				return nil
			}

			Success("Successfully logged in")
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "   Token: %s\n", color.CyanString(token.String()))
			duration := time.Until(token.ExpiresAt())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "   Access token valid for %dh %dm\n",
				int(duration.Hours()),
				int(duration.Minutes())%60)
			return nil
		},
	}

	addAccountFlags(cmd)
	cmd.Flags().BoolVar(&showToken, "show-token", false, "print only the raw access token")

	return cmd
}

func newAuthURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the consent URL",
		Long: `Print the consent page URL for the configured account without
starting the redirect listener.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.ArbitraryButUniqueString == "" {
				Debug("no arbitrary_but_unique_string configured, using a one-off state value")
			}

			consent, err := auth.ConsentURL(cfg.AuthConfig())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), consent)
			return nil
		},
	}

	cmd.Flags().Int("port", auth.DefaultRedirectPort, "loopback port receiving the authorization redirect")

	return cmd
}
