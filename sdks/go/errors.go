package openpap

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound is returned when the policy or version does not exist.
	ErrNotFound = errors.New("policy not found")

	// ErrSyncRejected is returned when the decision engine rejected the rule.
	ErrSyncRejected = errors.New("sync rejected")

	// ErrServerUnreachable is returned when the openpap server cannot be contacted.
	ErrServerUnreachable = errors.New("server unreachable")
)

// APIError is the base error type for non-2xx server responses.
type APIError struct {
	// StatusCode is the HTTP status code returned by the server.
	StatusCode int
	// Detail is the server's error message.
	Detail string
}

// Error returns the error message.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("openpap [%d]: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("openpap [%d]", e.StatusCode)
}

// Is reports whether this error matches the target error.
// A 404 response matches ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// SyncRejectedError is returned when the decision engine refused the rule,
// typically because the rego text failed to compile.
type SyncRejectedError struct {
	// Detail is the engine's rejection message, surfaced by the server.
	Detail string
}

// Error returns a human-readable description of the rejection.
func (e *SyncRejectedError) Error() string {
	return fmt.Sprintf("decision engine rejected rule: %s", e.Detail)
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrSyncRejected).
func (e *SyncRejectedError) Is(target error) bool {
	return target == ErrSyncRejected
}

// ServerUnreachableError is returned when the openpap server cannot be contacted.
type ServerUnreachableError struct {
	// Cause is the underlying transport error.
	Cause error
}

// Error returns a human-readable description of the connection failure.
func (e *ServerUnreachableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server unreachable: %v", e.Cause)
	}
	return "server unreachable"
}

// Unwrap returns the underlying error cause.
func (e *ServerUnreachableError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrServerUnreachable).
func (e *ServerUnreachableError) Is(target error) bool {
	return target == ErrServerUnreachable
}
