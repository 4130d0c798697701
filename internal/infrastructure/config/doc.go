// Package config provides 12-factor configuration management for the sandbox server.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags in cmd/server override environment variables.
//
// Configuration Sections:
//   - Server: HTTP listener (port, host, shutdown timeout)
//   - Driver: Headless browser behavior (timeouts, waits, scripts, proxy)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Metrics: Prometheus exposition
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Sandbox listening on %s\n", cfg.Addr())
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - SANDBOX_USER_AGENT, SANDBOX_NAV_TIMEOUT, SANDBOX_ELEMENT_WAIT, SANDBOX_POLL_INTERVAL,
//     SANDBOX_MAX_WAIT, SANDBOX_MAX_PAGE_BYTES, SANDBOX_ENABLE_SCRIPTS, SANDBOX_SCRIPT_TIMEOUT,
//     SANDBOX_PROXY_URL, SANDBOX_EAGER_START
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - METRICS_ENABLED
package config
