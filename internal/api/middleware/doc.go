// Package middleware provides the HTTP middleware of the sandbox server.
//
// Middleware stack, outermost first:
//   - RequestID: propagates X-Request-ID or assigns a req_<ulid>
//   - Recovery: panics become a SandboxError payload
//   - Logger: one zap line per request
//   - CORS: cross-origin access for browser-based hosts
//   - RateLimit: per-IP token bucket; health and metrics are exempt
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Recovery(logger), middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
