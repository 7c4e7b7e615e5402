package console

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gangaflow/console/internal/buffer"
	"github.com/gangaflow/console/internal/bus"
)

// DefaultReconnectDelay is how long Reconnect waits for the old transport to
// close before dialing again.
const DefaultReconnectDelay = 300 * time.Millisecond

// Options configures a Manager.
type Options struct {
	// Endpoint is the address of the remote shell.
	Endpoint string

	// Dialer opens transports. Required.
	Dialer Dialer

	// ReconnectDelay overrides DefaultReconnectDelay when positive.
	ReconnectDelay time.Duration

	// OnFocus is called when a transport opens, to move input focus to the
	// command box. Called without the Manager lock held.
	OnFocus func()

	// Schedule runs f after d. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, f func())
}

// Manager owns the connection to the remote shell for one console view.
type Manager struct {
	endpoint string
	dialer   Dialer
	delay    time.Duration
	onFocus  func()
	schedule func(time.Duration, func())

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	live    *link
	lines   []Line
	nextKey uint64
	partial *buffer.LineBuffer
	attempt uint64
	closed  bool

	status  *bus.Topic[StatusEvent]
	changed chan struct{}
}

// link binds one transport to the Manager. Its callbacks only take effect
// while it is the Manager's live link.
type link struct {
	m         *Manager
	transport Transport
	cancel    context.CancelFunc
}

func (l *link) OnOpen()               { l.m.handleOpen(l) }
func (l *link) OnMessage(text string) { l.m.handleMessage(l, text) }
func (l *link) OnError(err error)     { l.m.handleError(l, err) }
func (l *link) OnClose(code int)      { l.m.handleClose(l, code) }

func (l *link) shutdown() {
	l.cancel()
	if l.transport != nil {
		if err := l.transport.Close(); err != nil {
			log.Printf("console: closing transport: %v", err)
		}
	}
}

// NewManager creates a Manager and immediately starts connecting.
func NewManager(opts Options) (*Manager, error) {
	if opts.Dialer == nil {
		return nil, ErrNoDialer
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Schedule == nil {
		opts.Schedule = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		endpoint: opts.Endpoint,
		dialer:   opts.Dialer,
		delay:    opts.ReconnectDelay,
		onFocus:  opts.OnFocus,
		schedule: opts.Schedule,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateDisconnected,
		partial:  buffer.NewLineBuffer(),
		status:   bus.NewTopic[StatusEvent](0),
		changed:  make(chan struct{}, 1),
	}

	m.mu.Lock()
	m.connectLocked()
	m.mu.Unlock()

	return m, nil
}

// connectLocked opens a new transport and makes it the live one.
func (m *Manager) connectLocked() {
	m.setStateLocked(StateConnecting)
	m.appendLocked(KindInfo, fmt.Sprintf("Connecting to %s ...", m.endpoint))

	ctx, cancel := context.WithCancel(m.ctx)
	l := &link{m: m, cancel: cancel}
	m.live = l
	l.transport = m.dialer.Dial(ctx, m.endpoint, l)
}

func (m *Manager) handleOpen(l *link) {
	m.mu.Lock()
	if l != m.live {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(StateConnected)
	m.appendLocked(KindSuccess, "Connected to shell.")
	focus := m.onFocus
	m.mu.Unlock()

	if focus != nil {
		focus()
	}
}

func (m *Manager) handleMessage(l *link, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l != m.live {
		return
	}
	for _, line := range m.partial.Feed(text) {
		m.appendLocked(KindOutput, line)
	}
}

func (m *Manager) handleError(l *link, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l != m.live {
		return
	}
	log.Printf("console: transport error on %s: %v", m.endpoint, err)
	m.setStateLocked(StateError)
	m.appendLocked(KindError, fmt.Sprintf("Connection error: the shell server at %s may be unreachable.", m.endpoint))
}

func (m *Manager) handleClose(l *link, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l != m.live {
		return
	}
	if line, ok := m.partial.Flush(); ok {
		m.appendLocked(KindOutput, line)
	}
	m.live = nil
	l.cancel()
	m.setStateLocked(StateDisconnected)
	m.appendLocked(KindInfo, fmt.Sprintf("Connection closed (code %d).", code))
}

// Reconnect drops the current transport and its output, then dials again
// after the reconnect delay. The Manager is in StateConnecting when it
// returns.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	old := m.live
	m.live = nil
	m.lines = nil
	m.partial.Reset()
	m.attempt++
	attempt := m.attempt
	m.setStateLocked(StateConnecting)
	m.notifyLocked()
	m.mu.Unlock()

	if old != nil {
		old.shutdown()
	}
	m.schedule(m.delay, func() { m.redial(attempt) })
}

// redial connects unless a later Reconnect or Close superseded attempt.
func (m *Manager) redial(attempt uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || attempt != m.attempt || m.live != nil {
		return
	}
	m.connectLocked()
}

// Clear empties the line log and the partial line. The connection is not
// touched.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lines = nil
	m.partial.Reset()
	m.notifyLocked()
}

// Close tears the Manager down: the live transport is closed, a pending
// reconnect is abandoned and status subscribers are released.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	old := m.live
	m.live = nil
	m.attempt++
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if old != nil {
		old.shutdown()
	}
	m.cancel()
	m.status.Close()
	return nil
}

// Send writes each line to the shell followed by LineTerminator, in order,
// without interleaving with other sends.
func (m *Manager) Send(lines ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.state != StateConnected || m.live == nil {
		return ErrNotConnected
	}
	for _, line := range lines {
		if err := m.live.transport.Send(line + LineTerminator); err != nil {
			return fmt.Errorf("send to shell: %w", err)
		}
	}
	return nil
}

// Notice appends a locally generated line to the log.
func (m *Manager) Notice(kind LineKind, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(kind, text)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether commands can be sent.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Endpoint returns the remote shell address.
func (m *Manager) Endpoint() string {
	return m.endpoint
}

// Lines returns a copy of the line log.
func (m *Manager) Lines() []Line {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out
}

// Pending returns the output received since the last newline. It is not part
// of the line log yet.
func (m *Manager) Pending() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partial.Pending()
}

// Changes is signalled, without blocking, whenever the line log changes.
// Several changes may collapse into one signal.
func (m *Manager) Changes() <-chan struct{} {
	return m.changed
}

// SubscribeStatus returns a subscription to connection status changes. The
// Manager is the only publisher.
func (m *Manager) SubscribeStatus() *bus.Subscription[StatusEvent] {
	return m.status.Subscribe()
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.status.Publish(StatusEvent{Connected: s == StateConnected, State: s})
}

func (m *Manager) appendLocked(kind LineKind, text string) {
	m.nextKey++
	m.lines = append(m.lines, Line{Key: m.nextKey, Kind: kind, Text: text})
	m.notifyLocked()
}

func (m *Manager) notifyLocked() {
	select {
	case m.changed <- struct{}{}:
	default:
	}
}
