package console

import "fmt"

// State is the connection state of a Manager.
type State int

const (
	// StateDisconnected: the transport closed. Terminal for that transport.
	StateDisconnected State = iota
	// StateConnecting: a transport has been opened and has not reported open yet.
	StateConnecting
	// StateConnected: the transport is open and commands can be sent.
	StateConnected
	// StateError: the transport failed. Terminal for that transport.
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LineKind tags a log line for rendering.
type LineKind int

const (
	KindOutput LineKind = iota
	KindInfo
	KindMuted
	KindCommand
	KindSuccess
	KindWarning
	KindError
)

// LineKinds lists every kind, in declaration order.
var LineKinds = []LineKind{KindOutput, KindInfo, KindMuted, KindCommand, KindSuccess, KindWarning, KindError}

func (k LineKind) String() string {
	switch k {
	case KindOutput:
		return "output"
	case KindInfo:
		return "info"
	case KindMuted:
		return "muted"
	case KindCommand:
		return "command"
	case KindSuccess:
		return "success"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("LineKind(%d)", int(k))
	}
}

// Line is one entry of the line log. Key is unique for the lifetime of the
// Manager and grows with every appended line, so a display can use it as a
// stable identity across clears and reconnects.
type Line struct {
	Key  uint64
	Kind LineKind
	Text string
}

// StatusEvent is broadcast on every connection state change.
type StatusEvent struct {
	Connected bool
	State     State
}

// SnippetRequest asks the console to run a block of code in the shell. The
// code is passed through as is.
type SnippetRequest struct {
	Code string
}
