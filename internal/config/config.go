// Package config handles resolving configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every environment variable read by [Load].
const Prefix = "CFGRAM_"

// MinSecretLen is the minimum number of bytes accepted for the token signing
// secret.
const MinSecretLen = 16

// Config is the process-wide configuration. It is resolved once at startup and
// treated as immutable afterwards.
type Config struct {
	// AppSecret signs and verifies bearer tokens.
	AppSecret  string        `env:"APP_SECRET,unset"`
	WebAddress string        `env:"WEB_ADDRESS"`
	DBFilepath string        `env:"DB_FILEPATH"`
	LogLevel   slog.Level    `env:"LOG_LEVEL"`
	DevMode    bool          `env:"DEV_MODE"`
	// TokenTTL adds an expiry to issued tokens when non-zero.
	TokenTTL time.Duration `env:"TOKEN_TTL"`
	// ClientURL is where OAuth flows redirect the browser once complete.
	ClientURL string `env:"CLIENT_URL"`
	// APIURL is the public base URL of this server, used to build OAuth
	// redirect URIs.
	APIURL string `env:"API_URL"`

	Google OAuthProvider `envPrefix:"GOOGLE_"`
}

// OAuthProvider holds the client registration for an external identity
// provider. A provider without a ClientID is disabled.
type OAuthProvider struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET,unset"`
	AuthURL      string   `env:"AUTH_URL"`
	TokenURL     string   `env:"TOKEN_URL"`
	UserInfoURL  string   `env:"USERINFO_URL"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

// Enabled reports whether the provider has been configured.
func (p OAuthProvider) Enabled() bool {
	return p.ClientID != ""
}

// Default returns a version of the config with all default values populated.
// Note that this configuration is _not_ valid, as the user must set the app
// secret and client URL.
func Default() *Config {
	return &Config{
		WebAddress: "localhost:3000",
		DBFilepath: filepath.Join(xdg.DataHome, "cfgram", "db.sqlite"),
		LogLevel:   slog.LevelInfo,
		APIURL:     "http://localhost:3000",
		Google: OAuthProvider{
			AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:    "https://oauth2.googleapis.com/token",
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
			Scopes:      []string{"openid", "email", "profile"},
		},
	}
}

// Load reads the configuration from the process environment, merges it with
// defaults, and validates it for completeness.
func Load() (*Config, error) {
	return load(env.Options{Prefix: Prefix})
}

// LoadFrom behaves like [Load] but reads from environ instead of the process
// environment. Keys must include [Prefix].
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Prefix: Prefix, Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := Default()
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for completeness.
func (c *Config) Validate() error {
	var errs []error
	if len(c.AppSecret) < MinSecretLen {
		errs = append(errs, fmt.Errorf("%sAPP_SECRET must be at least %d bytes", Prefix, MinSecretLen))
	}
	if c.DBFilepath == "" {
		errs = append(errs, fmt.Errorf("%sDB_FILEPATH must be set", Prefix))
	}
	if err := validateURL("CLIENT_URL", c.ClientURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("API_URL", c.APIURL); err != nil {
		errs = append(errs, err)
	}
	if c.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("%sTOKEN_TTL must not be negative", Prefix))
	}
	if c.Google.Enabled() && c.Google.ClientSecret == "" {
		errs = append(errs, fmt.Errorf("%sGOOGLE_CLIENT_SECRET must be set with %[1]sGOOGLE_CLIENT_ID", Prefix))
	}
	return errors.Join(errs...)
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s%s must be set", Prefix, name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s%s is invalid: %w", Prefix, name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s%s must be an http(s) URL", Prefix, name)
	}
	return nil
}

// LogValue satisfies [slog.LogValuer], redacting secrets.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("web_address", c.WebAddress),
		slog.String("db_filepath", c.DBFilepath),
		slog.String("log_level", c.LogLevel.String()),
		slog.Bool("dev_mode", c.DevMode),
		slog.Duration("token_ttl", c.TokenTTL),
		slog.String("client_url", c.ClientURL),
		slog.String("api_url", c.APIURL),
		slog.Bool("google_enabled", c.Google.Enabled()),
	)
}
