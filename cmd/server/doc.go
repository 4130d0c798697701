// Package main runs the Jarvis browser sandbox server.
//
// The server owns one headless browser session and exposes it over HTTP/JSON
// to the host agent: navigation, clicks, form input, text extraction, waits,
// script evaluation, health and reset.
//
// Configuration:
//   - Environment variables (PORT, SANDBOX_*, LOG_LEVEL, RATE_LIMIT_*)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8001
//
//	# Development mode (colored logs, debug level)
//	./server -dev -log-level debug
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
