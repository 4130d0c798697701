/*
Package monitoring provides Prometheus metrics for the sandbox server.

# Overview

Metrics live in a private registry owned by the server, so several servers can
coexist in one process (tests) without duplicate registration.

Tracked:
  - HTTP requests (count, latency, response size) per route template
  - Driver operations by outcome: "ok" or the error kind returned to the caller
  - Driver starts by reason (startup, lazy, reset) and result
  - Driver activity gauge and page loads by status class
  - Go runtime and process collectors, uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "click")
	// ... perform operation ...
	timer.Stop("ElementNotFound")
*/
package monitoring
