package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "ANLIK_ELEMAN"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = "sqlite"
	defaultDatabaseDSN        = "anlik-eleman.db"
	defaultLogLevel           = "info"
	defaultLogEncoding        = "json"
	defaultTokenTTLMinutes    = 60
	defaultRefreshTTLHours    = 720
	defaultRateLimitPerMinute = 30
	defaultPlatformURL        = "http://127.0.0.1:8080"
	defaultSessionFile        = "~/.anlik-eleman/session.json"
	defaultLocale             = "tr"
)

// AppConfig captures runtime configuration for both the platform server and the CLI client.
type AppConfig struct {
	HTTPAddress        string
	DatabaseDriver     string
	DatabaseDSN        string
	LogLevel           string
	LogEncoding        string
	SigningSecret      string
	AnonKey            string
	TokenTTL           time.Duration
	RefreshTTL         time.Duration
	AutoConfirm        bool
	DisableSignup      bool
	RateLimitPerMinute int
	PlatformURL        string
	SessionFile        string
	Locale             string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.encoding", defaultLogEncoding)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("auth.refresh_ttl_hours", defaultRefreshTTLHours)
	configViper.SetDefault("auth.autoconfirm", false)
	configViper.SetDefault("auth.disable_signup", false)
	configViper.SetDefault("auth.rate_limit_per_minute", defaultRateLimitPerMinute)
	configViper.SetDefault("platform.url", defaultPlatformURL)
	configViper.SetDefault("client.session_file", defaultSessionFile)
	configViper.SetDefault("app.locale", defaultLocale)
}

// Load parses runtime configuration from viper. Role-specific checks are done by
// ValidateServer and ValidateClient.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        strings.TrimSpace(configViper.GetString("http.address")),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:        strings.TrimSpace(configViper.GetString("database.dsn")),
		LogLevel:           configViper.GetString("log.level"),
		LogEncoding:        strings.ToLower(strings.TrimSpace(configViper.GetString("log.encoding"))),
		SigningSecret:      configViper.GetString("auth.signing_secret"),
		AnonKey:            strings.TrimSpace(configViper.GetString("auth.anon_key")),
		TokenTTL:           time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		RefreshTTL:         time.Duration(configViper.GetInt("auth.refresh_ttl_hours")) * time.Hour,
		AutoConfirm:        configViper.GetBool("auth.autoconfirm"),
		DisableSignup:      configViper.GetBool("auth.disable_signup"),
		RateLimitPerMinute: configViper.GetInt("auth.rate_limit_per_minute"),
		PlatformURL:        strings.TrimSpace(configViper.GetString("platform.url")),
		SessionFile:        expandHome(strings.TrimSpace(configViper.GetString("client.session_file"))),
		Locale:             strings.TrimSpace(configViper.GetString("app.locale")),
	}

	if cfg.TokenTTL <= 0 {
		return AppConfig{}, fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if cfg.RefreshTTL <= 0 {
		return AppConfig{}, fmt.Errorf("auth.refresh_ttl_hours must be positive")
	}
	switch cfg.LogEncoding {
	case "json", "console":
	default:
		return AppConfig{}, fmt.Errorf("log.encoding must be json or console, got %q", cfg.LogEncoding)
	}
	if cfg.RateLimitPerMinute < 0 {
		return AppConfig{}, fmt.Errorf("auth.rate_limit_per_minute must not be negative")
	}

	return cfg, nil
}

// ValidateServer checks the settings the platform server needs.
func (c AppConfig) ValidateServer() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if c.AnonKey == "" {
		return fmt.Errorf("auth.anon_key is required")
	}
	if c.HTTPAddress == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	return nil
}

// ValidateClient checks the settings the CLI client needs.
func (c AppConfig) ValidateClient() error {
	if c.PlatformURL == "" {
		return fmt.Errorf("platform.url is required")
	}
	if c.AnonKey == "" {
		return fmt.Errorf("auth.anon_key is required")
	}
	if c.SessionFile == "" {
		return fmt.Errorf("client.session_file is required")
	}
	return nil
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
