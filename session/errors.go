package session

import "errors"

// Sentinel errors for session operations.
// These errors enable reliable error classification using errors.Is().

var (
	// ErrUserGestureRequired indicates Initialize was called without a valid
	// user-interaction token while the engine was suspended.
	ErrUserGestureRequired = errors.New("user gesture required to start audio")

	// ErrAlreadyInitializing indicates a prior Initialize call is still in
	// flight.
	ErrAlreadyInitializing = errors.New("initialization already in progress")

	// ErrSessionNotReady indicates a node factory or transport-affecting
	// operation was called before Initialize completed.
	ErrSessionNotReady = errors.New("session not initialized")

	// ErrSessionClosed indicates the session has been disposed and cannot be
	// reused.
	ErrSessionClosed = errors.New("session is closed")

	// ErrInvalidConfig indicates the session configuration failed validation.
	ErrInvalidConfig = errors.New("invalid session configuration")
)
