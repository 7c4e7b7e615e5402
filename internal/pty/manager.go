package pty

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/gangaflow/console/internal/buffer"
	"github.com/gangaflow/console/internal/recording"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// DefaultHistorySize is the default size of each shell's output tail.
	DefaultHistorySize = 64 * 1024

	// DefaultReadBufferSize is the buffer size for reading PTY output.
	DefaultReadBufferSize = 4096

	// drainTimeout bounds how long output is read after the shell exits.
	// A background job can keep the terminal open indefinitely.
	drainTimeout = 2 * time.Second
)

// ErrShellClosed is returned when writing to a shell that has been closed.
var ErrShellClosed = errors.New("shell is closed")

// Shell is a running shell with its output tail and recording.
type Shell struct {
	ID       string
	Process  *Process
	History  *buffer.RingBuffer
	Recorder *recording.Recorder

	onOutput func(text string)
	onExit   func(exitCode int, err error)

	mu       sync.RWMutex
	closed   bool
	readDone chan struct{}
}

// SpawnOptions contains options for spawning a shell.
type SpawnOptions struct {
	// ID identifies the shell in the Manager.
	ID string

	Command string
	Args    []string

	// Env is added to the server's own environment.
	Env []string

	Rows uint16
	Cols uint16

	// Recorder receives input and output. Optional; closed with the shell.
	Recorder *recording.Recorder

	// OnOutput receives shell output as valid UTF-8 text, in order.
	OnOutput func(text string)

	// OnExit is called once, after the last OnOutput call.
	OnExit func(exitCode int, err error)
}

// Manager tracks running shells.
type Manager struct {
	shells map[string]*Shell
	mu     sync.RWMutex

	// HistorySize is the output tail kept per shell.
	HistorySize int
}

// NewManager creates a new shell manager.
func NewManager(historySize int) *Manager {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Manager{
		shells:      make(map[string]*Shell),
		HistorySize: historySize,
	}
}

// Spawn starts a shell and begins relaying its output.
func (m *Manager) Spawn(opts SpawnOptions) (*Shell, error) {
	if opts.ID == "" {
		return nil, errors.New("shell id is required")
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}

	env := append(os.Environ(), "TERM=xterm-256color")
	env = append(env, opts.Env...)

	process, err := Start(StartOptions{
		Command: opts.Command,
		Args:    opts.Args,
		Env:     env,
		Rows:    opts.Rows,
		Cols:    opts.Cols,
	})
	if err != nil {
		return nil, err
	}

	s := &Shell{
		ID:       opts.ID,
		Process:  process,
		History:  buffer.NewRingBuffer(m.HistorySize),
		Recorder: opts.Recorder,
		onOutput: opts.OnOutput,
		onExit:   opts.OnExit,
		readDone: make(chan struct{}),
	}

	m.mu.Lock()
	m.shells[opts.ID] = s
	m.mu.Unlock()

	go s.readLoop()
	go s.waitLoop(m)

	return s, nil
}

// Get returns the shell with the given ID.
func (m *Manager) Get(id string) (*Shell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shells[id]
	return s, ok
}

// Kill terminates the shell with the given ID.
func (m *Manager) Kill(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("shell not found: %s", id)
	}
	return s.Close()
}

// Remove forgets the shell. Called once it has exited.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.shells, id)
	m.mu.Unlock()
}

// Count returns the number of tracked shells.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shells)
}

// List returns all tracked shells.
func (m *Manager) List() []*Shell {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Shell, 0, len(m.shells))
	for _, s := range m.shells {
		result = append(result, s)
	}
	return result
}

// Close kills every shell.
func (m *Manager) Close() error {
	var firstErr error
	for _, s := range m.List() {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// readLoop relays output until the terminal closes. The UTF-8 decoder holds
// back a multi-byte character split across reads, and replaces invalid bytes,
// so every chunk handed on is valid text.
func (s *Shell) readLoop() {
	defer close(s.readDone)

	r := transform.NewReader(s.Process, unicode.UTF8.NewDecoder())
	buf := make([]byte, DefaultReadBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := buf[:n]
			s.History.Write(data)
			if err := s.Recorder.Output(data); err != nil {
				log.Printf("shell %s: recording output: %v", s.ID, err)
			}
			if s.onOutput != nil {
				s.onOutput(string(data))
			}
		}
		if err != nil {
			// Linux reports EIO once the slave side is gone.
			if !errors.Is(err, io.EOF) && !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
				log.Printf("shell %s: read: %v", s.ID, err)
			}
			return
		}
	}
}

func (s *Shell) waitLoop(m *Manager) {
	exitCode, err := s.Process.Wait()

	select {
	case <-s.readDone:
	case <-time.After(drainTimeout):
	}
	s.Close()
	select {
	case <-s.readDone:
	case <-time.After(drainTimeout):
		log.Printf("shell %s: output still open after exit", s.ID)
	}

	if s.onExit != nil {
		s.onExit(exitCode, err)
	}
	m.Remove(s.ID)
}

// Write writes to the shell's input.
func (s *Shell) Write(data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrShellClosed
	}
	if _, err := s.Process.Write(data); err != nil {
		return fmt.Errorf("failed to write to shell: %w", err)
	}
	if err := s.Recorder.Input(data); err != nil {
		log.Printf("shell %s: recording input: %v", s.ID, err)
	}
	return nil
}

// Resize changes the terminal size.
func (s *Shell) Resize(rows, cols uint16) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrShellClosed
	}
	return s.Process.Resize(rows, cols)
}

// Close kills the shell and releases the terminal and the recording.
func (s *Shell) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var firstErr error
	if err := s.Process.Kill(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Process.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	// The read loop may still be appending the last output.
	go func() {
		<-s.readDone
		if err := s.Recorder.Close(); err != nil {
			log.Printf("shell %s: closing recording: %v", s.ID, err)
		}
	}()
	return firstErr
}

// IsClosed reports whether the shell has been closed.
func (s *Shell) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// PID returns the process ID.
func (s *Shell) PID() int {
	return s.Process.PID()
}

// LastLine returns the last visible line of output.
func (s *Shell) LastLine() string {
	return s.History.LastLine()
}
