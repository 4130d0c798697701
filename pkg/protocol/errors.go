package protocol

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a sandbox failure
type ErrorKind string

const (
	KindDriverUnavailable      ErrorKind = "DriverUnavailable"
	KindNavigationError        ErrorKind = "NavigationError"
	KindElementNotFound        ErrorKind = "ElementNotFound"
	KindElementNotInteractable ErrorKind = "ElementNotInteractable"
	KindSandboxUnreachable     ErrorKind = "SandboxUnreachable"
	KindSandboxError           ErrorKind = "SandboxError"
	KindScriptError            ErrorKind = "ScriptError"
)

// Sentinels for errors.Is comparisons
var (
	ErrDriverUnavailable      = &Error{Kind: KindDriverUnavailable}
	ErrNavigation             = &Error{Kind: KindNavigationError}
	ErrElementNotFound        = &Error{Kind: KindElementNotFound}
	ErrElementNotInteractable = &Error{Kind: KindElementNotInteractable}
	ErrSandboxUnreachable     = &Error{Kind: KindSandboxUnreachable}
	ErrSandbox                = &Error{Kind: KindSandboxError}
	ErrScript                 = &Error{Kind: KindScriptError}
)

var knownKinds = map[ErrorKind]bool{
	KindDriverUnavailable:      true,
	KindNavigationError:        true,
	KindElementNotFound:        true,
	KindElementNotInteractable: true,
	KindSandboxUnreachable:     true,
	KindSandboxError:           true,
	KindScriptError:            true,
}

// Known reports whether k is part of the taxonomy
func (k ErrorKind) Known() bool {
	return knownKinds[k]
}

// Error is a classified sandbox failure
type Error struct {
	Kind    ErrorKind
	Message string
}

// Errorf builds an *Error with a formatted message
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Payload converts the error to its wire form
func (e *Error) Payload() ErrorResponse {
	return ErrorResponse{OK: false, ErrorKind: e.Kind, Message: e.Message}
}

// KindOf returns the kind of err, or KindSandboxError for unclassified errors
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindSandboxError
}

// AsError classifies err, wrapping unknown errors as SandboxError
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Kind: KindSandboxError, Message: err.Error()}
}

// HTTPStatus returns the status code used for a kind on the wire
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindElementNotFound:
		return http.StatusNotFound
	case KindElementNotInteractable:
		return http.StatusConflict
	case KindNavigationError:
		return http.StatusBadGateway
	case KindDriverUnavailable:
		return http.StatusServiceUnavailable
	case KindScriptError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
