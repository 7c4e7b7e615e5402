package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gangaflow/console/internal/bus"
)

// SnippetPolicy decides what is sent after the lines of an injected snippet.
type SnippetPolicy int

const (
	// SnippetCloseBlock sends one extra empty line after the snippet so an
	// interpreter waiting for the end of an indented block runs it.
	SnippetCloseBlock SnippetPolicy = iota
	// SnippetVerbatim sends the snippet lines only.
	SnippetVerbatim
)

func (p SnippetPolicy) String() string {
	switch p {
	case SnippetCloseBlock:
		return "close-block"
	case SnippetVerbatim:
		return "verbatim"
	default:
		return fmt.Sprintf("SnippetPolicy(%d)", int(p))
	}
}

// ParseSnippetPolicy parses the names returned by SnippetPolicy.String. An
// empty name selects SnippetCloseBlock.
func ParseSnippetPolicy(name string) (SnippetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "close-block":
		return SnippetCloseBlock, nil
	case "verbatim":
		return SnippetVerbatim, nil
	default:
		return 0, fmt.Errorf("unknown snippet policy %q", name)
	}
}

// Dispatcher routes typed commands and injected snippets to a Manager and
// owns the input box text and command history.
type Dispatcher struct {
	manager *Manager
	policy  SnippetPolicy

	mu      sync.Mutex
	history *History
	input   string
}

// NewDispatcher creates a Dispatcher sending through m.
func NewDispatcher(m *Manager, policy SnippetPolicy) *Dispatcher {
	return &Dispatcher{
		manager: m,
		policy:  policy,
		history: NewHistory(),
	}
}

// Input returns the input box text.
func (d *Dispatcher) Input() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input
}

// SetInput replaces the input box text, as typing does.
func (d *Dispatcher) SetInput(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.input = text
}

// Submit sends raw, trimmed, to the shell. Blank input is ignored. When the
// session is not connected nothing is sent, an error line is logged and the
// input box keeps its text.
func (d *Dispatcher) Submit(raw string) error {
	cmd := strings.TrimSpace(raw)
	if cmd == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.manager.Send(cmd); err != nil {
		d.reportLocked("command", err)
		return err
	}
	d.history.Add(cmd)
	d.input = ""
	return nil
}

// RecallPrevious shows the next older history entry in the input box.
func (d *Dispatcher) RecallPrevious() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.input = d.history.Older()
	return d.input
}

// RecallNext shows the next newer history entry, or empty text past the
// newest one.
func (d *Dispatcher) RecallNext() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.input = d.history.Newer()
	return d.input
}

// InjectSnippet runs a block of code in the shell, one line at a time.
// Snippets bypass the history and leave the cursor and input box alone.
func (d *Dispatcher) InjectSnippet(code string) error {
	lines := snippetLines(code, d.policy)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.manager.Send(lines...); err != nil {
		d.reportLocked("snippet", err)
		return err
	}
	return nil
}

// Listen runs snippet requests from sub until ctx is done or sub is closed.
func (d *Dispatcher) Listen(ctx context.Context, sub *bus.Subscription[SnippetRequest]) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-sub.C():
			if !ok {
				return
			}
			// Failures are already on the line log.
			_ = d.InjectSnippet(req.Code)
		}
	}
}

// History returns the command history, most recent first.
func (d *Dispatcher) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.Entries()
}

// Cursor returns the history recall position.
func (d *Dispatcher) Cursor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.Cursor()
}

func (d *Dispatcher) reportLocked(what string, err error) {
	switch {
	case errors.Is(err, ErrNotConnected):
		d.manager.Notice(KindError, fmt.Sprintf("Not connected: %s not sent. Press ctrl+r to reconnect.", what))
	case errors.Is(err, ErrClosed):
		// Nothing left to show it on.
	default:
		d.manager.Notice(KindError, fmt.Sprintf("Failed to send %s: %v", what, err))
	}
}

// snippetLines splits code on line boundaries. A trailing newline does not
// produce an extra empty line; the policy decides that.
func snippetLines(code string, policy SnippetPolicy) []string {
	code = strings.TrimSuffix(strings.ReplaceAll(code, "\r\n", "\n"), "\n")
	lines := strings.Split(code, "\n")
	if policy == SnippetCloseBlock {
		lines = append(lines, "")
	}
	return lines
}
