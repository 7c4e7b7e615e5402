// Package console is the client side of the shell console: it keeps one
// streaming connection to a remote shell and turns its output into a log of
// display lines, and it routes commands back to the shell.
//
// The package implements:
//   - Manager: owns the live transport, the connection state machine, the
//     partial-line buffer and the line log, and broadcasts status changes
//   - Dispatcher: submits typed commands, keeps command history with a recall
//     cursor, and runs code snippets requested by other parts of the UI
//   - History: most-recent-first command list with a clamped cursor
//
// Transports are pluggable through Dialer; internal/transport provides the
// websocket one.
//
// All Manager state changes happen under one lock. Each transport callback
// reads the partial line, combines it with the new chunk, and writes the
// remainder back before any other callback can run. Callbacks from a
// transport that is no longer the live one are ignored, so a stale
// connection cannot write into a newer session's log.
package console
