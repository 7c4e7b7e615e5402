package console

import "strings"

// History is the command recall list, most recent first. The cursor ranges
// over [-1, Len()-1]; -1 means the input box holds freshly typed text.
type History struct {
	entries []string
	cursor  int
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{cursor: -1}
}

// Add records a submitted command and resets the cursor. Blank commands are
// ignored. Duplicates are kept.
func (h *History) Add(command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	h.entries = append([]string{command}, h.entries...)
	h.cursor = -1
}

// Older moves the cursor toward older entries and returns the text the input
// box should show.
func (h *History) Older() string {
	next := h.cursor + 1
	if next > len(h.entries)-1 {
		next = len(h.entries) - 1
	}
	h.cursor = next
	return h.current()
}

// Newer moves the cursor toward newer entries and returns the text the input
// box should show.
func (h *History) Newer() string {
	next := h.cursor - 1
	if next < -1 {
		next = -1
	}
	h.cursor = next
	return h.current()
}

func (h *History) current() string {
	if h.cursor < 0 {
		return ""
	}
	return h.entries[h.cursor]
}

// Entries returns a copy of the history, most recent first.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Cursor returns the current recall position.
func (h *History) Cursor() int { return h.cursor }

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// Reset moves the cursor back to the live input.
func (h *History) Reset() { h.cursor = -1 }
