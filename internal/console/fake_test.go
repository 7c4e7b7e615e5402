package console

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeTransport records writes. Events are fired by the test.
type fakeTransport struct {
	ev Events

	mu      sync.Mutex
	sent    []string
	closed  bool
	sendErr error
}

func (f *fakeTransport) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	endpoints  []string
}

func (d *fakeDialer) Dial(_ context.Context, endpoint string, ev Events) Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &fakeTransport{ev: ev}
	d.transports = append(d.transports, t)
	d.endpoints = append(d.endpoints, endpoint)
	return t
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *fakeDialer) last(t *testing.T) *fakeTransport {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		t.Fatal("no transport dialed")
	}
	return d.transports[len(d.transports)-1]
}

// manualClock collects scheduled reconnects so tests decide when they run.
type manualClock struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

func (c *manualClock) schedule(d time.Duration, f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, f)
	c.delays = append(c.delays, d)
}

func (c *manualClock) fire() {
	c.mu.Lock()
	fns := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

const testEndpoint = "ws://shell.test/ws/terminal/"

func newTestManager(t *testing.T) (*Manager, *fakeDialer, *manualClock) {
	t.Helper()
	dialer := &fakeDialer{}
	clock := &manualClock{}
	m, err := NewManager(Options{
		Endpoint: testEndpoint,
		Dialer:   dialer,
		Schedule: clock.schedule,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, dialer, clock
}

// connected returns a Manager whose first transport has opened.
func connected(t *testing.T) (*Manager, *fakeTransport) {
	t.Helper()
	m, dialer, _ := newTestManager(t)
	tr := dialer.last(t)
	tr.ev.OnOpen()
	return m, tr
}

func outputTexts(lines []Line) []string {
	var out []string
	for _, l := range lines {
		if l.Kind == KindOutput {
			out = append(out, l.Text)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
