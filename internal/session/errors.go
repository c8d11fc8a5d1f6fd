// Package session implements the authenticated HTTP client: bearer
// credential attachment, the 401 -> refresh -> retry cycle with
// single-flight coalescing, and the client-side error taxonomy.
//
// This file centralizes the error values returned by the client so that
// callers can branch on failure class with errors.Is / errors.As rather
// than string matching. Translation into user-facing messages belongs to
// the UI layer.
package session

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned when the refresh cycle has failed and the
// stored credentials were cleared. Every subsequent request fails with it
// immediately until a new login resets the client.
var ErrSessionExpired = errors.New("session expired")

// ErrMissingRefreshToken indicates a refresh was attempted without a
// stored refresh token. It is surfaced wrapped in ErrSessionExpired
// semantics by the request path.
var ErrMissingRefreshToken = errors.New("missing refresh token")

// APIError is a well-formed error response from the backend: any non-2xx
// status other than the recovered 401. Message is taken from the response
// body's "detail" field when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error: status %d", e.Status)
}

// NetworkError wraps transport-level failures: connection errors, DNS
// failures, and deadline expiry. No HTTP status was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError wraps a malformed response body on an otherwise
// successful (2xx) response.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Err.Error() }
func (e *ProtocolError) Unwrap() error { return e.Err }

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}
