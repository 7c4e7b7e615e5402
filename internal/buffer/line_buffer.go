// Package buffer holds the byte and line buffers used for shell output.
package buffer

import (
	"strings"

	"github.com/gangaflow/console/internal/sanitize"
)

// LineBuffer reassembles a stream of text chunks into complete display lines.
//
// The partial line is kept raw, exactly as received, so an escape sequence
// split across two chunks is still recognised once the rest arrives. Lines are
// sanitized only when they are complete. Because no escape sequence can span a
// newline, this yields the same lines as sanitizing the concatenated stream
// and then splitting it, whatever the chunk boundaries were.
//
// LineBuffer is not safe for concurrent use; the owner serializes access.
type LineBuffer struct {
	partial strings.Builder
}

// NewLineBuffer returns an empty LineBuffer.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{}
}

// Feed appends chunk to the carried-over partial line and returns every line
// completed by it, in order, without terminators. The text after the last
// newline becomes the new partial line.
func (b *LineBuffer) Feed(chunk string) []string {
	if chunk == "" {
		return nil
	}
	last := strings.LastIndexByte(chunk, '\n')
	if last < 0 {
		b.partial.WriteString(chunk)
		return nil
	}

	combined := b.partial.String() + chunk[:last]
	b.partial.Reset()
	b.partial.WriteString(chunk[last+1:])

	lines := strings.Split(combined, "\n")
	for i, l := range lines {
		lines[i] = sanitize.Strip(l)
	}
	return lines
}

// Pending returns the sanitized partial line, the text received since the
// last newline.
func (b *LineBuffer) Pending() string {
	return sanitize.Strip(b.partial.String())
}

// Flush returns the sanitized partial line and empties the buffer. ok is
// false when nothing visible was pending, for example when the tail was only
// a carriage return or a color reset.
func (b *LineBuffer) Flush() (line string, ok bool) {
	line = sanitize.Strip(b.partial.String())
	b.partial.Reset()
	return line, line != ""
}

// Reset discards the partial line.
func (b *LineBuffer) Reset() {
	b.partial.Reset()
}
