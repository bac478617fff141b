package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy. Every failure returned by the Client unwraps to exactly one
// of these sentinels.
var (
	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("authentication failed")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation is returned when the backend rejects the request payload.
	ErrValidation = errors.New("request rejected by backend")
	// ErrNetwork is returned when the request could not complete: transport
	// failures, timeouts, 5xx responses and undecodable bodies.
	ErrNetwork = errors.New("request could not complete")
	// ErrUnsuccessful is returned when a 2xx envelope carries success=false.
	ErrUnsuccessful = errors.New("backend reported failure")
)

// APIError carries the HTTP details of a failed call.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v: %s", e.Method, e.Path, e.kind, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d: %v", e.Method, e.Path, e.StatusCode, e.kind)
	}
	return fmt.Sprintf("%s %s: %d: %v: %s", e.Method, e.Path, e.StatusCode, e.kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// classify maps an HTTP status code to a taxonomy sentinel.
func classify(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 400 && status < 500:
		return ErrValidation
	default:
		return ErrNetwork
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
