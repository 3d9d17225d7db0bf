package controlplane

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned on 401 and 403 responses
	ErrUnauthorized = errors.New("control plane rejected credentials")
	// ErrUnavailable is returned when the control plane cannot be reached,
	// keeps failing after retries, or the circuit breaker is open
	ErrUnavailable = errors.New("control plane unavailable")
	// ErrBadResponse is returned for other non-2xx responses and bodies that
	// cannot be decoded
	ErrBadResponse = errors.New("unexpected control plane response")
)

// StatusError carries the HTTP status of a failed call
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap maps the status onto one of the package sentinels
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrUnavailable
	default:
		return ErrBadResponse
	}
}

// countsAsFailure reports whether err says something about the control
// plane's availability. Rejected credentials and malformed requests do not.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrBadResponse)
}
