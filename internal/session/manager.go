// Package session ties shells to their persisted records: it enforces the
// concurrent shell limit, records each shell, and keeps its row current as
// the shell runs and exits.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gangaflow/console/internal/model"
	"github.com/gangaflow/console/internal/pty"
	"github.com/gangaflow/console/internal/recording"
	"github.com/gangaflow/console/internal/repository"
)

// Config holds configuration for the session manager.
type Config struct {
	Shell        string
	Args         []string
	Rows         uint16
	Cols         uint16
	RecordingDir string
	MaxSessions  int
}

// Manager manages shell sessions.
type Manager struct {
	shells *pty.Manager
	repo   *repository.SessionRepository
	cfg    Config

	// mu serializes the limit check with the spawn.
	mu sync.Mutex
}

// StartOptions describe the connection a shell is started for.
type StartOptions struct {
	RemoteAddr string

	// OnOutput receives shell output as text.
	OnOutput func(text string)

	// OnExit is called after the session record has been finished.
	OnExit func(s *model.ShellSession)
}

// NewManager creates a new session manager.
func NewManager(shells *pty.Manager, repo *repository.SessionRepository, cfg Config) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 10
	}
	return &Manager{
		shells: shells,
		repo:   repo,
		cfg:    cfg,
	}
}

// Shell returns the configured shell command.
func (m *Manager) Shell() string {
	return m.cfg.Shell
}

// MaxSessions returns the concurrent shell limit.
func (m *Manager) MaxSessions() int {
	return m.cfg.MaxSessions
}

// ActiveCount returns the number of running shells.
func (m *Manager) ActiveCount() int {
	return m.shells.Count()
}

// Recover marks sessions left running by a previous server process as failed.
func (m *Manager) Recover(ctx context.Context) error {
	n, err := m.repo.FailRunning(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("Marked %d stale sessions as failed", n)
	}
	return nil
}

// Start spawns a shell and records it. A failed spawn is recorded with
// status failed and returned as an error.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*model.ShellSession, error) {
	if m.cfg.Shell == "" {
		return nil, model.ErrShellRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shells.Count() >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("%w (%d)", model.ErrConcurrencyLimit, m.cfg.MaxSessions)
	}

	now := time.Now()
	s := &model.ShellSession{
		ID:         uuid.New().String(),
		Shell:      m.cfg.Shell,
		Status:     model.SessionStatusRunning,
		RemoteAddr: opts.RemoteAddr,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	rec, err := m.openRecording(s)
	if err != nil {
		log.Printf("Session %s: recording disabled: %v", s.ID, err)
		s.RecordingPath = ""
	}

	// Closed once the row exists, so an instant exit cannot finish it first.
	created := make(chan struct{})
	shell, err := m.shells.Spawn(pty.SpawnOptions{
		ID:       s.ID,
		Command:  m.cfg.Shell,
		Args:     m.cfg.Args,
		Rows:     m.cfg.Rows,
		Cols:     m.cfg.Cols,
		Recorder: rec,
		OnOutput: opts.OnOutput,
		OnExit: func(exitCode int, err error) {
			<-created
			m.handleExit(s.ID, exitCode, err, opts.OnExit)
		},
	})
	if err != nil {
		rec.Close()
		if s.RecordingPath != "" {
			os.Remove(s.RecordingPath)
			s.RecordingPath = ""
		}
		s.Status = model.SessionStatusFailed
		s.EndedAt = &now
		if createErr := m.repo.Create(ctx, s); createErr != nil {
			log.Printf("Session %s: failed to record spawn failure: %v", s.ID, createErr)
		} else if finishErr := m.repo.Finish(ctx, s.ID, model.SessionStatusFailed, nil, now); finishErr != nil {
			log.Printf("Session %s: failed to record spawn failure: %v", s.ID, finishErr)
		}
		return nil, err
	}

	pid := shell.PID()
	s.PID = &pid
	if err := m.repo.Create(ctx, s); err != nil {
		close(created)
		shell.Close()
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	close(created)

	log.Printf("Session %s: started %s (pid %d) for %s", s.ID, s.Shell, pid, s.RemoteAddr)
	return s, nil
}

func (m *Manager) openRecording(s *model.ShellSession) (*recording.Recorder, error) {
	if m.cfg.RecordingDir == "" {
		return nil, nil
	}
	s.RecordingPath = filepath.Join(m.cfg.RecordingDir, s.ID+".cast")
	return recording.Create(s.RecordingPath, recording.Header{
		Width:   int(m.cfg.Cols),
		Height:  int(m.cfg.Rows),
		Command: m.cfg.Shell,
		Title:   "GangaFlow " + s.ID[:8],
	})
}

func (m *Manager) handleExit(id string, exitCode int, waitErr error, onExit func(*model.ShellSession)) {
	ctx := context.Background()

	status := model.SessionStatusExited
	if waitErr != nil {
		status = model.SessionStatusFailed
		log.Printf("Session %s: wait failed: %v", id, waitErr)
	}

	if shell, ok := m.shells.Get(id); ok {
		if err := m.repo.UpdatePreviewLine(ctx, id, shell.LastLine()); err != nil {
			log.Printf("Session %s: %v", id, err)
		}
	}
	if err := m.repo.Finish(ctx, id, status, &exitCode, time.Now()); err != nil {
		// Deleted while running.
		if !errors.Is(err, model.ErrSessionNotFound) {
			log.Printf("Session %s: failed to update status: %v", id, err)
		}
	}
	log.Printf("Session %s: exited with code %d", id, exitCode)

	if onExit == nil {
		return
	}
	s, err := m.repo.GetByID(ctx, id)
	if err != nil {
		s = &model.ShellSession{ID: id, Status: status, ExitCode: &exitCode}
	}
	onExit(s)
}

// Get returns a session. Running sessions carry their current preview line.
func (m *Manager) Get(ctx context.Context, id string) (*model.ShellSession, error) {
	s, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.withPreview(s)
	return s, nil
}

// List returns the most recent sessions first.
func (m *Manager) List(ctx context.Context, limit int) ([]*model.ShellSession, error) {
	sessions, err := m.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		m.withPreview(s)
	}
	return sessions, nil
}

func (m *Manager) withPreview(s *model.ShellSession) {
	if shell, ok := m.shells.Get(s.ID); ok {
		if line := shell.LastLine(); line != "" {
			s.PreviewLine = line
		}
	}
}

// Write writes to a running session's shell.
func (m *Manager) Write(id string, data []byte) error {
	shell, ok := m.shells.Get(id)
	if !ok {
		return model.ErrSessionNotFound
	}
	return shell.Write(data)
}

// Resize resizes a running session's terminal.
func (m *Manager) Resize(id string, rows, cols uint16) error {
	shell, ok := m.shells.Get(id)
	if !ok {
		return model.ErrSessionNotFound
	}
	return shell.Resize(rows, cols)
}

// Kill terminates a running session's shell. The record is finished by the
// exit handler.
func (m *Manager) Kill(id string) error {
	shell, ok := m.shells.Get(id)
	if !ok {
		return model.ErrSessionNotFound
	}
	return shell.Close()
}

// Delete kills the shell if it is still running and removes the record and
// its recording.
func (m *Manager) Delete(ctx context.Context, id string) error {
	s, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if shell, ok := m.shells.Get(id); ok {
		if err := shell.Close(); err != nil {
			log.Printf("Session %s: error closing shell: %v", id, err)
		}
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.RecordingPath != "" {
		if err := os.Remove(s.RecordingPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Session %s: failed to remove recording: %v", id, err)
		}
	}
	return nil
}

// Recording returns the path of a session's cast file.
func (m *Manager) Recording(ctx context.Context, id string) (string, error) {
	s, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if s.RecordingPath == "" {
		return "", model.ErrRecordingNotFound
	}
	if _, err := os.Stat(s.RecordingPath); err != nil {
		return "", model.ErrRecordingNotFound
	}
	return s.RecordingPath, nil
}

// Close kills every running shell.
func (m *Manager) Close() error {
	return m.shells.Close()
}
