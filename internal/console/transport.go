package console

import (
	"context"
	"errors"
)

// LineTerminator ends every line written to the shell.
const LineTerminator = "\r"

var (
	// ErrNotConnected is returned when sending while the session is not connected.
	ErrNotConnected = errors.New("not connected")

	// ErrClosed is returned after the Manager has been torn down.
	ErrClosed = errors.New("console closed")

	// ErrNoDialer is returned by NewManager when no Dialer is configured.
	ErrNoDialer = errors.New("dialer is required")
)

// Events receives the lifecycle callbacks of one transport. A transport
// reports OnOpen at most once, then any number of OnMessage calls, and ends
// with OnClose. OnError, if reported, comes before OnClose. A failed dial is
// reported as OnError followed by OnClose.
type Events interface {
	OnOpen()
	OnMessage(text string)
	OnError(err error)
	OnClose(code int)
}

// Transport is one duplex connection to the remote shell.
type Transport interface {
	// Send writes text as is. Writes are delivered in call order.
	Send(text string) error

	// Close shuts the connection down. Callbacks may still fire afterwards.
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	// Dial starts connecting to endpoint and returns immediately. The outcome
	// is reported through ev. Dial must not invoke ev before it returns.
	// Cancelling ctx aborts a dial in progress.
	Dial(ctx context.Context, endpoint string, ev Events) Transport
}
