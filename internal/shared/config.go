package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Spotify SpotifyConfig `toml:"spotify"`
	Relay   RelayConfig   `toml:"relay"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `toml:"host" env:"SPOTRELAY_HOST"`
	Port            int           `toml:"port" env:"SPOTRELAY_PORT"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	MaxBodyBytes    int64         `toml:"max_body_bytes"`
	RateLimitRPS    float64       `toml:"rate_limit_rps" env:"SPOTRELAY_RATE_LIMIT_RPS"` // 0 disables inbound limiting
	RateLimitBurst  int           `toml:"rate_limit_burst"`
}

// SpotifyConfig contains Spotify endpoints and the credentials used by the token refresher.
//
// Request handlers never read the credential fields; the bearer token comes from the client.
type SpotifyConfig struct {
	APIBaseURL   string        `toml:"api_base_url"`
	AuthURL      string        `toml:"auth_url"`
	TokenURL     string        `toml:"token_url"`
	ClientID     string        `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string        `toml:"client_secret" env:"CLIENT_SECRET"`
	RefreshToken string        `toml:"refresh_token" env:"REFRESH_TOKEN"`
	RedirectURI  string        `toml:"redirect_uri"`
	Timeout      time.Duration `toml:"timeout"`
}

// RelayConfig tunes the create-playlist orchestration.
type RelayConfig struct {
	PlaylistDescription  string `toml:"playlist_description"`
	RollbackOrphans      bool   `toml:"rollback_orphans" env:"SPOTRELAY_ROLLBACK_ORPHANS"`
	RedactUpstreamErrors bool   `toml:"redact_upstream_errors" env:"SPOTRELAY_REDACT_UPSTREAM_ERRORS"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" env:"SPOTRELAY_LOG_LEVEL"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HasRefreshCredentials reports whether the refresh grant can be attempted.
func (s SpotifyConfig) HasRefreshCredentials() bool {
	return s.ClientID != "" && s.ClientSecret != "" && s.RefreshToken != ""
}

// LoadConfig reads a TOML configuration file on top of [DefaultConfig].
//
// Keys absent from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Load builds the runtime configuration: defaults, then the file at path (if it exists), then environment overrides.
// The result is validated.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overrides config values with any environment variables that are set.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// the refresh credential has historically been exported in lowercase
	if config.Spotify.RefreshToken == "" {
		config.Spotify.RefreshToken = os.Getenv("refresh_token")
	}

	return nil
}

// Validate checks that the configuration can be used to start the relay.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be positive"))
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit_rps must not be negative"))
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit_burst must be positive when rate limiting is enabled"))
	}

	for name, raw := range map[string]string{
		"spotify.api_base_url": c.Spotify.APIBaseURL,
		"spotify.auth_url":     c.Spotify.AuthURL,
		"spotify.token_url":    c.Spotify.TokenURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s %q is not an absolute URL", name, raw))
		}
	}

	if c.Spotify.Timeout < 0 {
		errs = append(errs, fmt.Errorf("spotify.timeout must not be negative"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
