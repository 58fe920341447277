package cli

import (
	"github.com/spf13/cobra"

	"github.com/fastertools/atmo/internal/auth"
	"github.com/fastertools/atmo/internal/config"
	"github.com/fastertools/atmo/internal/polling"
)

func newWatchCmd() *cobra.Command {
	var output string
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll station and home-coach data",
		Long: `Sign in once, then read the weather-station and home-coach data every
interval until interrupted. Expired access tokens are refreshed before the
next read. A failed read is reported and the next cycle runs as usual.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ParseOutputFormat(output)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			noBrowser, _ := cmd.Flags().GetBool("no-browser")
			acct, err := newAccount(cfg, noBrowser, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var sp *consentSpinner
			if acct.grant == auth.GrantAuthorizationCode && !noBrowser {
				sp = newConsentSpinner(cmd.ErrOrStderr())
			}

			opts := polling.Options{
				Interval: cfg.PollInterval,
				OnState: func(s polling.State) {
					Debug("state: %s", s)
					if sp != nil {
						sp.OnState(s)
					}
				},
			}
			if once {
				opts.MaxCycles = 1
			}

			sink := newConsoleSink(cmd.OutOrStdout(), format)
			m := polling.NewManager(acct.tokens, acct.api, sink, consoleReporter{}, opts)

			if !once && format == OutputFormatTable {
				Info("Polling every %s, press Ctrl-C to stop", cfg.PollInterval)
			}
			if err := m.Run(commandContext(cmd)); err != nil {
				return err
			}
			Debug("stopped after %s", m.State())
			return nil
		},
	}

	addAccountFlags(cmd)
	cmd.Flags().Duration("interval", config.DefaultPollInterval, "time between poll cycles")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table or json)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")

	return cmd
}
