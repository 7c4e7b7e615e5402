// Package pty runs shells in pseudo-terminals.
package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// StartOptions contains options for starting a PTY process.
type StartOptions struct {
	// Command is the program to execute, looked up in PATH.
	Command string

	// Args are the arguments to pass to the command.
	Args []string

	// Env is the environment for the process. If nil, the current process
	// environment is used.
	Env []string

	// Dir is the working directory. If empty, the current directory is used.
	Dir string

	Rows uint16
	Cols uint16
}

// Process is a command attached to the slave side of a PTY.
type Process struct {
	cmd  *exec.Cmd
	tty  *os.File
	done chan struct{}
	code int
	err  error
}

// Start starts the command in a new PTY of the requested size.
func Start(opts StartOptions) (*Process, error) {
	if opts.Command == "" {
		return nil, errors.New("command is required")
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Env = opts.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Dir = opts.Dir

	tty, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: opts.Rows, Cols: opts.Cols})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", opts.Command, err)
	}

	p := &Process{cmd: cmd, tty: tty, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.code = 0
	case errors.As(err, &exitErr):
		// -1 when killed by a signal.
		p.code = exitErr.ExitCode()
	default:
		p.code = -1
		p.err = err
	}
	close(p.done)
}

// Read reads shell output.
func (p *Process) Read(b []byte) (int, error) {
	return p.tty.Read(b)
}

// Write writes to the shell's input.
func (p *Process) Write(b []byte) (int, error) {
	return p.tty.Write(b)
}

// Resize changes the window size.
func (p *Process) Resize(rows, cols uint16) error {
	return pty.Setsize(p.tty, &pty.Winsize{Rows: rows, Cols: cols})
}

// PID returns the process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its exit code.
func (p *Process) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}

// Kill terminates the process.
func (p *Process) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Close closes the PTY master.
func (p *Process) Close() error {
	return p.tty.Close()
}
