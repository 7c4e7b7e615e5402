package model

import (
	"time"
)

// SessionStatus represents the status of a shell session.
type SessionStatus string

const (
	SessionStatusRunning SessionStatus = "running"
	SessionStatusExited  SessionStatus = "exited"
	SessionStatusFailed  SessionStatus = "failed"
)

// ShellSession is one shell spawned for one websocket connection.
type ShellSession struct {
	ID            string        `json:"id"`
	Shell         string        `json:"shell"`
	Status        SessionStatus `json:"status"`
	ExitCode      *int          `json:"exitCode,omitempty"`
	PID           *int          `json:"pid,omitempty"`
	RemoteAddr    string        `json:"remoteAddr"`
	RecordingPath string        `json:"recordingPath,omitempty"`
	PreviewLine   string        `json:"previewLine,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	EndedAt       *time.Time    `json:"endedAt,omitempty"`
}

// Active reports whether the shell is still running.
func (s *ShellSession) Active() bool {
	return s.Status == SessionStatusRunning
}

// Duration returns how long the shell ran, or has been running so far.
func (s *ShellSession) Duration() time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.CreatedAt)
	}
	return time.Since(s.CreatedAt)
}
