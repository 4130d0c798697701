// Package sandbox owns the single browser session of the server process.
//
// Every driver-touching operation runs under one mutex, so overlapping requests
// observe each other's effects in order. Waits poll without holding the lock
// between attempts; reset takes the lock, so it starts only after in-flight
// operations finish.
//
// Driver lifecycle:
//
//	New ──Start──▶ active ──Reset──▶ active (new session id)
//	 │                │
//	 └─OpenPage──▶ active (lazy)   panic ──▶ inactive, degraded until the next start
//
// Errors leaving the package are *protocol.Error values; request problems also
// match ErrBadRequest.
package sandbox
