// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Server  ServerConfig
	Discogs DiscogsConfig
	Cache   CacheConfig
	Session SessionConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `validate:"required,oneof=debug info warn error"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `validate:"required,numeric"`
	CORSOrigin   string        // Allowed browser origin (default: http://localhost:5173)
	PublicURL    string        // Externally reachable base URL, used for OAuth callbacks
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 30s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// DiscogsConfig holds upstream Discogs API configuration.
type DiscogsConfig struct {
	// Token is the personal access token used for demo mode.
	Token string
	// DemoUsername is the fixed service account browsed in demo mode.
	DemoUsername string
	// ConsumerKey and ConsumerSecret identify the app for OAuth linking.
	ConsumerKey    string
	ConsumerSecret string
	// UserAgent sent on every upstream request, required by Discogs.
	UserAgent string `validate:"required"`
	// RequestTimeout bounds a single upstream call (default: 15s).
	RequestTimeout time.Duration
	// PageDelay paces sequential page fetches during full materialization
	// (default: 250ms, Discogs allows 60 requests/minute).
	PageDelay time.Duration
}

// CacheConfig holds collection cache configuration.
type CacheConfig struct {
	// TTL is how long a materialized collection stays valid (default: 15m).
	TTL time.Duration `validate:"gt=0"`
	// SweepInterval is how often expired entries are swept (default: 30m).
	SweepInterval time.Duration `validate:"gt=0"`
}

// SessionConfig holds visitor session configuration.
type SessionConfig struct {
	// Key is the 32-byte hex-encoded PASETO key sealing session cookies.
	// Generated at startup when empty (sessions then reset on restart,
	// which is fine for an in-memory store).
	Key string
	// TTL is how long a linked session stays valid (default: 720h).
	TTL time.Duration `validate:"gt=0"`
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	corsOrigin := flag.String("cors-origin", "", "Allowed browser origin")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	discogsToken := flag.String("discogs-token", "", "Discogs personal access token (demo mode)")
	demoUsername := flag.String("discogs-demo-username", "", "Discogs account browsed in demo mode")
	userAgent := flag.String("discogs-user-agent", "", "User-Agent for Discogs requests")

	cacheTTL := flag.String("cache-ttl", "", "Collection cache TTL (default: 15m)")
	sweepInterval := flag.String("cache-sweep-interval", "", "Cache sweep interval (default: 30m)")
	sessionTTL := flag.String("session-ttl", "", "Session lifetime (default: 720h)")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:       getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigin: getConfigValue(*corsOrigin, "CORS_ORIGIN", "http://localhost:5173"),
			PublicURL:  getConfigValue("", "PUBLIC_URL", ""),
		},
		Discogs: DiscogsConfig{
			Token:          getConfigValue(*discogsToken, "DISCOGS_TOKEN", ""),
			DemoUsername:   getConfigValue(*demoUsername, "DISCOGS_DEMO_USERNAME", ""),
			ConsumerKey:    getConfigValue("", "DISCOGS_CONSUMER_KEY", ""),
			ConsumerSecret: getConfigValue("", "DISCOGS_CONSUMER_SECRET", ""),
			UserAgent:      getConfigValue(*userAgent, "DISCOGS_USER_AGENT", "Vinylroom/1.0"),
		},
		Session: SessionConfig{
			Key: getConfigValue("", "SESSION_KEY", ""),
		},
	}

	durations := []struct {
		dst        *time.Duration
		flagValue  string
		envKey     string
		defaultVal string
	}{
		{&cfg.Server.ReadTimeout, "", "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "", "SERVER_WRITE_TIMEOUT", "30s"},
		{&cfg.Server.IdleTimeout, "", "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Discogs.RequestTimeout, "", "DISCOGS_REQUEST_TIMEOUT", "15s"},
		{&cfg.Discogs.PageDelay, "", "DISCOGS_PAGE_DELAY", "250ms"},
		{&cfg.Cache.TTL, *cacheTTL, "CACHE_TTL", "15m"},
		{&cfg.Cache.SweepInterval, *sweepInterval, "CACHE_SWEEP_INTERVAL", "30m"},
		{&cfg.Session.TTL, *sessionTTL, "SESSION_TTL", "720h"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.defaultVal)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = "http://localhost:" + cfg.Server.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	// Demo mode needs the app token and a demo account; linking needs the
	// consumer pair. Either side may be absent, but not both.
	demoOK := c.Discogs.Token != "" && c.Discogs.DemoUsername != ""
	oauthOK := c.Discogs.ConsumerKey != "" && c.Discogs.ConsumerSecret != ""
	if !demoOK && !oauthOK {
		return fmt.Errorf("discogs credentials missing: set DISCOGS_TOKEN + DISCOGS_DEMO_USERNAME for demo mode, or DISCOGS_CONSUMER_KEY + DISCOGS_CONSUMER_SECRET for account linking")
	}

	return nil
}

// DemoEnabled reports whether demo mode is configured.
func (c *Config) DemoEnabled() bool {
	return c.Discogs.Token != "" && c.Discogs.DemoUsername != ""
}

// LinkingEnabled reports whether OAuth account linking is configured.
func (c *Config) LinkingEnabled() bool {
	return c.Discogs.ConsumerKey != "" && c.Discogs.ConsumerSecret != ""
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}
