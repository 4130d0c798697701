// Package http exposes the sandbox session over HTTP/JSON.
//
// Successful calls answer 200 with the operation's payload. Failures answer
// with {ok:false, error_kind, message}; the status follows the error kind, and
// request problems answer 400. /health always answers 200.
package http
