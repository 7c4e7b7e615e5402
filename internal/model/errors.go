package model

import "errors"

var (
	// ErrShellRequired is returned when no shell command is configured.
	ErrShellRequired = errors.New("shell is required")

	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRecordingNotFound is returned when a session has no recording on disk.
	ErrRecordingNotFound = errors.New("recording not found")

	// ErrConcurrencyLimit is returned when the maximum number of concurrent sessions is reached.
	ErrConcurrencyLimit = errors.New("concurrent session limit exceeded")
)
