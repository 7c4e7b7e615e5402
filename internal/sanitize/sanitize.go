// Package sanitize removes terminal control sequences from shell output so it
// can be shown as plain text.
package sanitize

import (
	"regexp"
	"strings"
)

// escapePattern matches, in order:
//   - CSI: ESC [ parameter bytes, intermediate bytes, one final byte
//   - OSC: ESC ] ... terminated by BEL or ESC \ (never across a newline)
//   - charset designation: ESC ( X and ESC ) X
//   - keypad mode: ESC = and ESC >
//
// None of the alternatives can match a newline.
var escapePattern = regexp.MustCompile(
	`\x1b\[[0-?]*[ -/]*[@-~]` +
		`|\x1b\][^\x07\x1b\n]*(?:\x07|\x1b\\)` +
		`|\x1b[()][AB012]` +
		`|\x1b[=>]`,
)

// Strip returns s without escape sequences, stray ESC bytes and carriage
// returns. Newlines are left exactly where they were.
//
// Strip is idempotent: its output contains no ESC and no '\r', so nothing in
// it can match again.
func Strip(s string) string {
	if !strings.ContainsAny(s, "\x1b\r") {
		return s
	}
	s = escapePattern.ReplaceAllString(s, "")
	// Anything left starting with ESC is malformed or unsupported. Drop the
	// ESC itself and keep the rest as text.
	return strings.Map(func(r rune) rune {
		if r == '\x1b' || r == '\r' {
			return -1
		}
		return r
	}, s)
}
