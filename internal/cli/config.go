package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/fastertools/atmo/internal/auth"
	"github.com/fastertools/atmo/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the account configuration",
		Long:  `Create, locate, and display the atmo configuration file.`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigPathCmd(),
		newConfigShowCmd(),
	)

	return cmd
}

// configPath returns --config or the default location
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.Path()
}

func newConfigInitCmd() *cobra.Command {
	var useKeyring bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration interactively",
		Long: `Prompt for the application credentials and write the configuration file.

With --keyring the client secret and password are stored in the system
keyring instead of the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}

			if _, err := os.Stat(path); err == nil && !force {
				overwrite := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("%s already exists. Overwrite?", path),
					Default: false,
				}
				if err := survey.AskOne(prompt, &overwrite); err != nil {
					return err
				}
				if !overwrite {
					Info("Configuration left unchanged")
					return nil
				}
			}

			cfg, err := promptConfig()
			if err != nil {
				return err
			}

			if useKeyring {
				if err := storeSecrets(config.NewKeyringStore(), cfg); err != nil {
					return err
				}
				Success("Secrets stored in the system keyring")
			}

			if err := cfg.Save(path); err != nil {
				return err
			}
			Success("Configuration written to %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "store secrets in the system keyring")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration without asking")

	return cmd
}

func promptConfig() (*config.Config, error) {
	cfg := &config.Config{
		APIBaseURL:     auth.DefaultBaseURL,
		RedirectPort:   auth.DefaultRedirectPort,
		Scopes:         auth.DefaultScopes,
		PollInterval:   config.DefaultPollInterval,
		RequestTimeout: config.DefaultRequestTimeout,
	}

	questions := []*survey.Question{
		{
			Name:     "ClientID",
			Prompt:   &survey.Input{Message: "Client ID:"},
			Validate: survey.Required,
		},
		{
			Name:     "ClientSecret",
			Prompt:   &survey.Password{Message: "Client secret:"},
			Validate: survey.Required,
		},
		{
			Name: "Grant",
			Prompt: &survey.Select{
				Message: "Sign in with:",
				Options: []string{string(auth.GrantAuthorizationCode), string(auth.GrantPassword)},
				Default: string(auth.GrantAuthorizationCode),
			},
		},
	}
	if err := survey.Ask(questions, cfg); err != nil {
		return nil, err
	}

	if cfg.Grant == string(auth.GrantPassword) {
		credentials := []*survey.Question{
			{
				Name:     "Username",
				Prompt:   &survey.Input{Message: "Username:"},
				Validate: survey.Required,
			},
			{
				Name:     "Password",
				Prompt:   &survey.Password{Message: "Password:"},
				Validate: survey.Required,
			},
		}
		if err := survey.Ask(credentials, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, cfg.Validate()
}

// storeSecrets moves the secrets of cfg into store
func storeSecrets(store config.SecretStore, cfg *config.Config) error {
	for key, field := range map[string]*string{
		config.KeyClientSecret: &cfg.ClientSecret,
		config.KeyPassword:     &cfg.Password,
	} {
		if *field == "" {
			if err := store.Delete(key); err != nil {
				return err
			}
			continue
		}
		if err := store.Set(key, *field); err != nil {
			return err
		}
		*field = ""
	}
	return nil
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the configuration after applying defaults, ATMO_* environment
variables, and keyring secrets. Secrets are masked.`,
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

			dw := NewDataWriter(cmd.OutOrStdout(), format)
			if err := dw.WriteKeyValue("Configuration", cfg.Masked()); err != nil {
				return err
			}

			if format == OutputFormatTable {
				if err := cfg.Validate(); err != nil {
					Warn("%s", strings.TrimPrefix(err.Error(), "invalid configuration: "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table or json)")

	return cmd
}
