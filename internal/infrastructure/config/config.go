package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all sandbox server configuration.
type Config struct {
	Server    ServerConfig
	Driver    DriverConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8001"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	// CORSOrigins lists the browser origins allowed to call the API; "*" allows any
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// DriverConfig holds headless browser configuration.
type DriverConfig struct {
	UserAgent         string        `envconfig:"SANDBOX_USER_AGENT" default:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) JarvisSandbox/1.0 Safari/537.36"`
	NavigationTimeout time.Duration `envconfig:"SANDBOX_NAV_TIMEOUT" default:"20s"`
	ElementWait       time.Duration `envconfig:"SANDBOX_ELEMENT_WAIT" default:"2s"`
	PollInterval      time.Duration `envconfig:"SANDBOX_POLL_INTERVAL" default:"100ms"`
	MaxWait           time.Duration `envconfig:"SANDBOX_MAX_WAIT" default:"60s"`
	MaxPageBytes      int64         `envconfig:"SANDBOX_MAX_PAGE_BYTES" default:"10485760"`
	EnableScripts     bool          `envconfig:"SANDBOX_ENABLE_SCRIPTS" default:"true"`
	ScriptTimeout     time.Duration `envconfig:"SANDBOX_SCRIPT_TIMEOUT" default:"5s"`
	ProxyURL          string        `envconfig:"SANDBOX_PROXY_URL"`
	EagerStart        bool          `envconfig:"SANDBOX_EAGER_START" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	// File receives a copy of every log line when set
	File        string `envconfig:"LOG_FILE"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int    `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int    `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool   `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	// Scope is "client" (one bucket per IP) or "global" (one bucket for the process)
	Scope             string `envconfig:"RATE_LIMIT_SCOPE" default:"client"`
}

// Rate limit scopes
const (
	RateLimitPerClient = "client"
	RateLimitGlobal    = "global"
)

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values the driver cannot work with.
func (c *Config) Validate() error {
	if c.Driver.NavigationTimeout <= 0 {
		return fmt.Errorf("SANDBOX_NAV_TIMEOUT must be positive")
	}
	if c.Driver.PollInterval <= 0 {
		return fmt.Errorf("SANDBOX_POLL_INTERVAL must be positive")
	}
	if c.Driver.MaxWait < c.Driver.ElementWait {
		return fmt.Errorf("SANDBOX_MAX_WAIT must not be shorter than SANDBOX_ELEMENT_WAIT")
	}
	if c.Driver.MaxPageBytes <= 0 {
		return fmt.Errorf("SANDBOX_MAX_PAGE_BYTES must be positive")
	}
	if c.RateLimit.Scope != RateLimitPerClient && c.RateLimit.Scope != RateLimitGlobal {
		return fmt.Errorf("RATE_LIMIT_SCOPE must be %q or %q", RateLimitPerClient, RateLimitGlobal)
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("CORS_ORIGINS entry %q must be * or an http(s) origin", origin)
		}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8001",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Driver: DefaultDriver(),
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
			Scope:             RateLimitPerClient,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultDriver returns the default headless browser configuration.
func DefaultDriver() DriverConfig {
	return DriverConfig{
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) JarvisSandbox/1.0 Safari/537.36",
		NavigationTimeout: 20 * time.Second,
		ElementWait:       2 * time.Second,
		PollInterval:      100 * time.Millisecond,
		MaxWait:           60 * time.Second,
		MaxPageBytes:      10 * 1024 * 1024,
		EnableScripts:     true,
		ScriptTimeout:     5 * time.Second,
		EagerStart:        true,
	}
}
