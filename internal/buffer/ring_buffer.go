package buffer

import (
	"strings"
	"sync"

	"github.com/gangaflow/console/internal/sanitize"
)

// RingBuffer keeps the most recent output of a shell, up to a fixed number of
// bytes. Older bytes are dropped from the front as new ones arrive.
//
// The server uses it to report what a shell printed last without keeping
// the whole transcript in memory.
type RingBuffer struct {
	mu       sync.RWMutex
	data     []byte
	capacity int
	total    int64
}

// NewRingBuffer creates a RingBuffer holding at most capacity bytes.
// A capacity below 1 is raised to 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{
		data:     make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Write appends p, discarding the oldest bytes when the buffer overflows.
// It implements io.Writer and never fails.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.total += int64(len(p))

	if len(p) >= rb.capacity {
		rb.data = append(rb.data[:0], p[len(p)-rb.capacity:]...)
		return len(p), nil
	}

	if over := len(rb.data) + len(p) - rb.capacity; over > 0 {
		// Shift the survivors down instead of reallocating.
		n := copy(rb.data, rb.data[over:])
		rb.data = rb.data[:n]
	}
	rb.data = append(rb.data, p...)
	return len(p), nil
}

// Bytes returns a copy of the buffered tail, or nil when empty.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if len(rb.data) == 0 {
		return nil
	}
	out := make([]byte, len(rb.data))
	copy(out, rb.data)
	return out
}

// LastLine returns the last non-blank line of the buffered output with
// control sequences removed. A line still being written counts.
func (rb *RingBuffer) LastLine() string {
	text := strings.ToValidUTF8(string(rb.Bytes()), "\uFFFD")
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(sanitize.Strip(lines[i])); line != "" {
			return line
		}
	}
	return ""
}

// Reset empties the buffer. The total byte count is kept.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.data = rb.data[:0]
}

// Len returns the number of bytes currently buffered.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.data)
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return rb.capacity
}

// Total returns how many bytes were ever written, including dropped ones.
func (rb *RingBuffer) Total() int64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.total
}
