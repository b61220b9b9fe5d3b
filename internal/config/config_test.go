package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Server: ServerConfig{
			Port:         "8080",
			CORSOrigin:   "http://localhost:5173",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Discogs: DiscogsConfig{
			Token:          "abc123",
			DemoUsername:   "demo.account",
			UserAgent:      "Vinylroom/1.0",
			RequestTimeout: 15 * time.Second,
			PageDelay:      250 * time.Millisecond,
		},
		Cache: CacheConfig{
			TTL:           15 * time.Minute,
			SweepInterval: 30 * time.Minute,
		},
		Session: SessionConfig{TTL: 720 * time.Hour},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_InvalidEnvironment(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "testing"
	assert.Error(t, cfg.Validate())
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logger.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = "not-a-port"
	assert.Error(t, cfg.Validate())
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Discogs.Token = ""
	cfg.Discogs.DemoUsername = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discogs credentials missing")
}

func TestValidate_OAuthOnlyIsEnough(t *testing.T) {
	cfg := validConfig()
	cfg.Discogs.Token = ""
	cfg.Discogs.DemoUsername = ""
	cfg.Discogs.ConsumerKey = "key"
	cfg.Discogs.ConsumerSecret = "secret"
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.DemoEnabled())
	assert.True(t, cfg.LinkingEnabled())
}

func TestValidate_ZeroCacheTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.TTL = 0
	assert.Error(t, cfg.Validate())
}

func TestGetConfigValue(t *testing.T) {
	tests := []struct {
		name      string
		flagValue string
		envKey    string
		envValue  string
		defValue  string
		expected  string
	}{
		{"flag takes precedence", "from-flag", "TEST_KEY", "from-env", "default", "from-flag"},
		{"env when no flag", "", "TEST_KEY", "from-env", "default", "from-env"},
		{"default when nothing set", "", "TEST_KEY", "", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.envKey, tt.envValue)
			}
			got := getConfigValue(tt.flagValue, tt.envKey, tt.defValue)
			assert.Equal(t, tt.expected, got)
		})
	}
}
