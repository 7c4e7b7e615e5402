// Package ws serves the terminal websocket.
//
// Every connection gets its own shell. The protocol is plain text in both
// directions: inbound frames are written to the shell as typed, shell output
// goes out as text frames exactly as the terminal produced it, escape
// sequences included. Clients strip what they cannot render.
//
// Connection lifecycle:
//   - the first frame is the "Shell started" banner, or a "Failed to start
//     shell" line followed by a close frame
//   - when the shell exits, a "Shell session ended" line and a normal close
//   - when the connection drops, the shell is killed
package ws
