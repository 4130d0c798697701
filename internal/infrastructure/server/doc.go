// Package server assembles the sandbox HTTP server: one browser session,
// the middleware chain and the endpoint routes, served with gzip compression
// and graceful shutdown.
package server
