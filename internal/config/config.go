// Package config loads and saves the poller's account configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fastertools/atmo/internal/auth"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. ATMO_CLIENT_ID
	EnvPrefix = "ATMO"

	DefaultPollInterval   = 60 * time.Second
	DefaultRequestTimeout = time.Second
)

// Config is the account and polling configuration
type Config struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`

	// ArbitraryButUniqueString is the OAuth state value. Left empty, a
	// fresh one is generated for every run.
	ArbitraryButUniqueString string `mapstructure:"arbitrary_but_unique_string"`

	APIBaseURL     string        `mapstructure:"api_base_url"`
	RedirectPort   int           `mapstructure:"redirect_port"`
	Scopes         []string      `mapstructure:"scopes"`
	Grant          string        `mapstructure:"grant"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AuthTimeout    time.Duration `mapstructure:"auth_timeout"`
}

// fileConfig is the on-disk YAML layout
type fileConfig struct {
	ClientID                 string   `yaml:"client_id"`
	ClientSecret             string   `yaml:"client_secret,omitempty"`
	Username                 string   `yaml:"username,omitempty"`
	Password                 string   `yaml:"password,omitempty"`
	ArbitraryButUniqueString string   `yaml:"arbitrary_but_unique_string,omitempty"`
	APIBaseURL               string   `yaml:"api_base_url,omitempty"`
	RedirectPort             int      `yaml:"redirect_port,omitempty"`
	Scopes                   []string `yaml:"scopes,omitempty"`
	Grant                    string   `yaml:"grant,omitempty"`
	PollInterval             string   `yaml:"poll_interval,omitempty"`
	RequestTimeout           string   `yaml:"request_timeout,omitempty"`
	AuthTimeout              string   `yaml:"auth_timeout,omitempty"`
}

// Path returns the default config file location
func Path() (string, error) {
	var configDir string

	// Check XDG_CONFIG_HOME first for testing and Linux compatibility
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		configDir = xdgConfig
	} else {
		var err error
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to get config directory: %w", err)
		}
	}

	return filepath.Join(configDir, "atmo", "config.yaml"), nil
}

// SetDefaults registers every key on v so environment overrides apply
func SetDefaults(v *viper.Viper) {
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("arbitrary_but_unique_string", "")
	v.SetDefault("api_base_url", auth.DefaultBaseURL)
	v.SetDefault("redirect_port", auth.DefaultRedirectPort)
	v.SetDefault("scopes", auth.DefaultScopes)
	v.SetDefault("grant", string(auth.GrantAuthorizationCode))
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("auth_timeout", time.Duration(0))
}

// NewViper returns a viper reading path (or the default location) and
// ATMO_* environment variables
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Load decodes v and fills empty secrets from store. store may be nil.
func Load(v *viper.Viper, store SecretStore) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if store != nil {
		if err := cfg.resolveSecrets(store); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *Config) resolveSecrets(store SecretStore) error {
	for key, field := range map[string]*string{
		KeyClientSecret: &c.ClientSecret,
		KeyPassword:     &c.Password,
	} {
		if *field != "" {
			continue
		}
		value, err := store.Get(key)
		if err != nil {
			if errors.Is(err, ErrSecretNotFound) {
				continue
			}
			return fmt.Errorf("failed to load %s from keyring: %w", key, err)
		}
		*field = value
	}
	return nil
}

// Validate checks the configuration is usable for the selected grant
func (c *Config) Validate() error {
	var problems []string

	if c.ClientID == "" {
		problems = append(problems, "client_id is required")
	}
	if c.ClientSecret == "" {
		problems = append(problems, "client_secret is required")
	}

	grant, err := auth.ParseGrant(c.Grant)
	if err != nil {
		problems = append(problems, err.Error())
	}
	if grant == auth.GrantPassword && (c.Username == "" || c.Password == "") {
		problems = append(problems, "username and password are required for the password grant")
	}

	if c.PollInterval <= 0 {
		problems = append(problems, "poll_interval must be positive")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "request_timeout must be positive")
	} else if c.PollInterval > 0 && c.RequestTimeout >= c.PollInterval {
		problems = append(problems, "request_timeout must be shorter than poll_interval")
	}
	if c.AuthTimeout < 0 {
		problems = append(problems, "auth_timeout cannot be negative")
	}
	if c.RedirectPort < 0 || c.RedirectPort > 65535 {
		problems = append(problems, fmt.Sprintf("redirect_port %d out of range", c.RedirectPort))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RunState returns the configured state value, or a fresh random one
func (c *Config) RunState() string {
	if c.ArbitraryButUniqueString != "" {
		return c.ArbitraryButUniqueString
	}
	return uuid.NewString()
}

// AuthConfig converts to the auth package's configuration. The state value
// is fixed at call time.
func (c *Config) AuthConfig() auth.Config {
	return auth.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Username:     c.Username,
		Password:     c.Password,
		State:        c.RunState(),
		BaseURL:      c.APIBaseURL,
		RedirectPort: c.RedirectPort,
		Scopes:       c.Scopes,
	}
}

// Save writes the configuration as YAML to path, atomically
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	fc := fileConfig{
		ClientID:                 c.ClientID,
		ClientSecret:             c.ClientSecret,
		Username:                 c.Username,
		Password:                 c.Password,
		ArbitraryButUniqueString: c.ArbitraryButUniqueString,
		APIBaseURL:               c.APIBaseURL,
		RedirectPort:             c.RedirectPort,
		Scopes:                   c.Scopes,
		Grant:                    c.Grant,
		PollInterval:             durationString(c.PollInterval),
		RequestTimeout:           durationString(c.RequestTimeout),
		AuthTimeout:              durationString(c.AuthTimeout),
	}

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically by writing to temp file then renaming
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

func durationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// Masked returns the configuration for display with secrets hidden
func (c *Config) Masked() map[string]interface{} {
	return map[string]interface{}{
		"client_id":                   c.ClientID,
		"client_secret":               mask(c.ClientSecret),
		"username":                    c.Username,
		"password":                    mask(c.Password),
		"arbitrary_but_unique_string": mask(c.ArbitraryButUniqueString),
		"api_base_url":                c.APIBaseURL,
		"redirect_port":               c.RedirectPort,
		"scopes":                      strings.Join(c.Scopes, " "),
		"grant":                       c.Grant,
		"poll_interval":               c.PollInterval.String(),
		"request_timeout":             c.RequestTimeout.String(),
		"auth_timeout":                c.AuthTimeout.String(),
	}
}

func mask(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "********"
}
