package tesla

import (
	"errors"
	"fmt"
)

// Sentinel errors for API outcomes the polling loop branches on.
var (
	// ErrAuthExpired is returned on HTTP 401. The caller should refresh the
	// credential and retry once.
	ErrAuthExpired = errors.New("auth token expired")
	// ErrLoginFailed is returned when the token endpoint rejects a grant:
	// wrong password or revoked refresh token. Not recoverable by retrying.
	ErrLoginFailed = errors.New("login failed")
	// ErrVehicleUnavailable is returned when the API reports the car asleep
	// or out of connectivity. Not fatal, recoverable by waiting.
	ErrVehicleUnavailable = errors.New("vehicle unavailable")
	// ErrWakeTimeout is returned when the car did not come online within the
	// wake attempt ceiling.
	ErrWakeTimeout = errors.New("cannot wake vehicle")
	// ErrBlocked is returned when the API is rate limiting this client.
	ErrBlocked = errors.New("request blocked by api")
)

// APIError is a non-success reply that matched none of the known categories.
// The raw body is kept for diagnostics.
type APIError struct {
	StatusCode  int
	ErrorText   string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d error=%q description=%q", e.StatusCode, e.ErrorText, e.Description)
}

// DecodeError wraps a success reply whose payload did not match the expected
// schema.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode reply: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError wraps a network-level failure (timeout, DNS, reset). Always
// retryable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }
