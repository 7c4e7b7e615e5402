// Package recording writes and reads shell sessions in the asciinema v2
// cast format: one JSON header line followed by one JSON array per event.
package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event types.
const (
	EventOutput = "o"
	EventInput  = "i"
)

// Header is the first line of a cast file.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Command   string            `json:"command,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is one recorded chunk: [offset, type, data].
type Event struct {
	Offset float64
	Type   string
	Data   string
}

// MarshalJSON encodes the event as a three element array.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Offset, e.Type, e.Data})
}

// UnmarshalJSON decodes a three element array.
func (e *Event) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event: expected 3 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &e.Offset); err != nil {
		return fmt.Errorf("invalid event offset: %w", err)
	}
	if err := json.Unmarshal(arr[1], &e.Type); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}
	if err := json.Unmarshal(arr[2], &e.Data); err != nil {
		return fmt.Errorf("invalid event data: %w", err)
	}
	return nil
}

// Recorder appends events to a cast. It is safe for concurrent use; a nil
// *Recorder records nothing.
type Recorder struct {
	mu      sync.Mutex
	w       io.Writer
	file    *os.File
	started time.Time
	now     func() time.Time
	closed  bool
}

// Create creates the cast file at path, and its directory, and writes the
// header.
func Create(path string, hdr Header) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	r, err := New(f, hdr)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// New writes the header to w and returns a Recorder appending to it.
func New(w io.Writer, hdr Header) (*Recorder, error) {
	r := &Recorder{w: w, now: time.Now}
	r.started = r.now()

	hdr.Version = 2
	if hdr.Timestamp == 0 {
		hdr.Timestamp = r.started.Unix()
	}
	data, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return r, nil
}

// Output records shell output.
func (r *Recorder) Output(data []byte) error {
	return r.write(EventOutput, data)
}

// Input records bytes written to the shell.
func (r *Recorder) Input(data []byte) error {
	return r.write(EventInput, data)
}

func (r *Recorder) write(kind string, data []byte) error {
	if r == nil || len(data) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	line, err := json.Marshal(Event{
		Offset: r.now().Sub(r.started).Seconds(),
		Type:   kind,
		Data:   string(data),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := r.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close closes the file opened by Create. Later writes are dropped.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Read parses a cast. Lines that are not valid events are skipped so that a
// cast cut short by a crash still reads.
func Read(rd io.Reader) (Header, []Event, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var hdr Header
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Header{}, nil, fmt.Errorf("failed to read header: %w", err)
		}
		return Header{}, nil, fmt.Errorf("empty recording")
	}
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil {
		return Header{}, nil, fmt.Errorf("invalid header: %w", err)
	}
	if hdr.Version != 2 {
		return Header{}, nil, fmt.Errorf("unsupported cast version %d", hdr.Version)
	}

	var events []Event
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return hdr, events, fmt.Errorf("failed to read events: %w", err)
	}
	return hdr, events, nil
}

// Transcript joins the output events of a cast.
func Transcript(events []Event) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Type == EventOutput {
			b.WriteString(ev.Data)
		}
	}
	return b.String()
}
