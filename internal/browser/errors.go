package browser

import "errors"

var (
	ErrDriverClosed    = errors.New("driver is closed")
	ErrNavigation      = errors.New("navigation failed")
	ErrInvalidURL      = errors.New("invalid url")
	ErrElementNotFound = errors.New("element not found")
	ErrNotInteractable = errors.New("element not interactable")
	ErrInvalidSelector = errors.New("invalid selector")
	ErrScript          = errors.New("script failed")
)

// navError wraps a navigation failure so it matches both ErrNavigation and its cause
type navError struct {
	url   string
	cause error
}

func (e *navError) Error() string {
	return "navigation to " + e.url + " failed: " + e.cause.Error()
}

func (e *navError) Unwrap() []error {
	return []error{ErrNavigation, e.cause}
}
