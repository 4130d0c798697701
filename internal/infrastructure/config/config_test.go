package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		t.Setenv(key, value)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8001", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, 20*time.Second, cfg.Driver.NavigationTimeout)
	assert.Equal(t, 2*time.Second, cfg.Driver.ElementWait)
	assert.Equal(t, 100*time.Millisecond, cfg.Driver.PollInterval)
	assert.True(t, cfg.Driver.EnableScripts)
	assert.True(t, cfg.Driver.EagerStart)
	assert.Empty(t, cfg.Driver.ProxyURL)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Metrics.Enabled)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8001", cfg.Addr())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	setEnv(t, map[string]string{
		"PORT":                   "9000",
		"HOST":                   "127.0.0.1",
		"SANDBOX_NAV_TIMEOUT":    "45s",
		"SANDBOX_ELEMENT_WAIT":   "500ms",
		"SANDBOX_ENABLE_SCRIPTS": "false",
		"SANDBOX_PROXY_URL":      "http://proxy:3128",
		"SANDBOX_EAGER_START":    "false",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"LOG_FILE":               "/var/log/sandbox.log",
		"CORS_ORIGINS":           "http://localhost:3000,https://agent.example",
		"RATE_LIMIT_RPS":         "500",
		"RATE_LIMIT_ENABLED":     "false",
		"RATE_LIMIT_SCOPE":       "global",
		"METRICS_ENABLED":        "false",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 45*time.Second, cfg.Driver.NavigationTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Driver.ElementWait)
	assert.False(t, cfg.Driver.EnableScripts)
	assert.Equal(t, "http://proxy:3128", cfg.Driver.ProxyURL)
	assert.False(t, cfg.Driver.EagerStart)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "/var/log/sandbox.log", cfg.Logging.File)
	assert.Equal(t, []string{"http://localhost:3000", "https://agent.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, RateLimitGlobal, cfg.RateLimit.Scope)
	assert.False(t, cfg.Metrics.Enabled)

	// untouched values keep their defaults
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.Equal(t, 60*time.Second, cfg.Driver.MaxWait)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{
			name: "unparseable duration",
			vars: map[string]string{"SANDBOX_NAV_TIMEOUT": "soon"},
		},
		{
			name: "zero navigation timeout",
			vars: map[string]string{"SANDBOX_NAV_TIMEOUT": "0s"},
		},
		{
			name: "max wait below element wait",
			vars: map[string]string{"SANDBOX_MAX_WAIT": "1s", "SANDBOX_ELEMENT_WAIT": "5s"},
		},
		{
			name: "non-positive page limit",
			vars: map[string]string{"SANDBOX_MAX_PAGE_BYTES": "0"},
		},
		{
			name: "unknown rate limit scope",
			vars: map[string]string{"RATE_LIMIT_SCOPE": "galaxy"},
		},
		{
			name: "malformed cors origin",
			vars: map[string]string{"CORS_ORIGINS": "localhost:3000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.vars)

			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault falls back instead of failing
			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantPort string
		wantHost string
	}{
		{name: "default values", wantPort: "8001", wantHost: "0.0.0.0"},
		{name: "custom port", port: "9000", wantPort: "9000", wantHost: "0.0.0.0"},
		{name: "custom host", host: "localhost", wantPort: "8001", wantHost: "localhost"},
		{name: "custom port and host", port: "3000", host: "127.0.0.1", wantPort: "3000", wantHost: "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("PORT")
			os.Unsetenv("HOST")
			if tt.port != "" {
				t.Setenv("PORT", tt.port)
			}
			if tt.host != "" {
				t.Setenv("HOST", tt.host)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
		})
	}
}
