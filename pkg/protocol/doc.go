// Package protocol defines the HTTP/JSON contract between the sandbox server
// and its clients.
//
// Both sides share:
//   - Request and response bodies for every endpoint
//   - The error taxonomy (ErrorKind) and the structured error payload
//   - The mapping between error kinds and HTTP status codes
//
// Error Handling:
//
//	err := c.Click(ctx, "#submit")
//	if errors.Is(err, protocol.ErrElementNotFound) {
//		// selector matched nothing within the element wait
//	}
//
// Every *Error matches the sentinel of the same kind through errors.Is,
// regardless of its message.
package protocol
