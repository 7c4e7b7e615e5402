package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gangaflow/console/internal/bus"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSubmitSendsTrimmedCommand(t *testing.T) {
	m, tr := connected(t)
	d := NewDispatcher(m, SnippetCloseBlock)
	d.SetInput("  ls -la  ")

	if err := d.Submit(d.Input()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if got := tr.Sent(); !equalStrings(got, []string{"ls -la\r"}) {
		t.Errorf("unexpected writes %q", got)
	}
	if got := d.History(); !equalStrings(got, []string{"ls -la"}) {
		t.Errorf("unexpected history %q", got)
	}
	if d.Input() != "" {
		t.Errorf("input should be cleared, got %q", d.Input())
	}
	if d.Cursor() != -1 {
		t.Errorf("cursor should reset, got %d", d.Cursor())
	}
}

func TestSubmitBlankIsNoop(t *testing.T) {
	m, tr := connected(t)
	d := NewDispatcher(m, SnippetCloseBlock)
	before := len(m.Lines())

	if err := d.Submit("   \t "); err != nil {
		t.Fatalf("blank submit returned %v", err)
	}
	if len(tr.Sent()) != 0 || len(d.History()) != 0 || len(m.Lines()) != before {
		t.Error("blank submit should not send, record or log anything")
	}
}

func TestSubmitWhileDisconnected(t *testing.T) {
	m, dialer, _ := newTestManager(t)
	tr := dialer.last(t)
	d := NewDispatcher(m, SnippetCloseBlock)
	d.SetInput("whoami")

	err := d.Submit("whoami")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if len(tr.Sent()) != 0 {
		t.Errorf("nothing should be written, got %q", tr.Sent())
	}
	if len(d.History()) != 0 {
		t.Errorf("history should be unchanged, got %q", d.History())
	}
	if d.Input() != "whoami" {
		t.Errorf("input should be kept for retry, got %q", d.Input())
	}
	lines := m.Lines()
	if last := lines[len(lines)-1]; last.Kind != KindError {
		t.Errorf("expected a local error line, got %+v", last)
	}
}

func TestHistoryKeepsDuplicates(t *testing.T) {
	m, _ := connected(t)
	d := NewDispatcher(m, SnippetCloseBlock)

	for _, cmd := range []string{"ls", "pwd", "ls"} {
		if err := d.Submit(cmd); err != nil {
			t.Fatalf("Submit(%q) failed: %v", cmd, err)
		}
	}
	if got := d.History(); !equalStrings(got, []string{"ls", "pwd", "ls"}) {
		t.Errorf("expected most recent first with duplicates, got %q", got)
	}
}

func TestRecall(t *testing.T) {
	m, _ := connected(t)
	d := NewDispatcher(m, SnippetCloseBlock)
	for _, cmd := range []string{"first", "second", "third"} {
		d.Submit(cmd)
	}

	steps := []struct {
		older  bool
		input  string
		cursor int
	}{
		{true, "third", 0},
		{true, "second", 1},
		{true, "first", 2},
		{true, "first", 2},
		{false, "second", 1},
		{false, "third", 0},
		{false, "", -1},
		{false, "", -1},
	}
	for i, s := range steps {
		var got string
		if s.older {
			got = d.RecallPrevious()
		} else {
			got = d.RecallNext()
		}
		if got != s.input || d.Input() != s.input || d.Cursor() != s.cursor {
			t.Fatalf("step %d: got input %q cursor %d, want %q %d", i, got, d.Cursor(), s.input, s.cursor)
		}
	}
}

func TestRecallOnEmptyHistory(t *testing.T) {
	m, _ := connected(t)
	d := NewDispatcher(m, SnippetCloseBlock)
	d.SetInput("typed")

	if got := d.RecallPrevious(); got != "" || d.Cursor() != -1 {
		t.Errorf("expected empty input at -1, got %q at %d", got, d.Cursor())
	}
}

func TestInjectSnippet(t *testing.T) {
	m, tr := connected(t)
	d := NewDispatcher(m, SnippetCloseBlock)
	d.Submit("ls")
	d.RecallPrevious()
	d.SetInput("half typed")

	if err := d.InjectSnippet("a\nb"); err != nil {
		t.Fatalf("InjectSnippet failed: %v", err)
	}

	if got := tr.Sent(); !equalStrings(got, []string{"ls\r", "a\r", "b\r", "\r"}) {
		t.Errorf("unexpected writes %q", got)
	}
	if got := d.History(); !equalStrings(got, []string{"ls"}) {
		t.Errorf("snippet changed history: %q", got)
	}
	if d.Cursor() != 0 {
		t.Errorf("snippet moved cursor to %d", d.Cursor())
	}
	if d.Input() != "half typed" {
		t.Errorf("snippet changed input to %q", d.Input())
	}
}

func TestInjectSnippetVerbatim(t *testing.T) {
	m, tr := connected(t)
	d := NewDispatcher(m, SnippetVerbatim)

	if err := d.InjectSnippet("for i in 1 2; do\r\n  echo $i\r\ndone\n"); err != nil {
		t.Fatalf("InjectSnippet failed: %v", err)
	}
	want := []string{"for i in 1 2; do\r", "  echo $i\r", "done\r"}
	if got := tr.Sent(); !equalStrings(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestInjectSnippetWhileDisconnected(t *testing.T) {
	m, dialer, _ := newTestManager(t)
	tr := dialer.last(t)
	d := NewDispatcher(m, SnippetCloseBlock)

	if err := d.InjectSnippet("echo hi"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if len(tr.Sent()) != 0 {
		t.Errorf("nothing should be written, got %q", tr.Sent())
	}
	lines := m.Lines()
	if last := lines[len(lines)-1]; last.Kind != KindError {
		t.Errorf("expected a local error line, got %+v", last)
	}
}

func TestSubmitAndSnippetKeepCallOrder(t *testing.T) {
	m, tr := connected(t)
	d := NewDispatcher(m, SnippetVerbatim)

	d.Submit("one")
	d.InjectSnippet("two\nthree")
	d.Submit("four")

	want := []string{"one\r", "two\r", "three\r", "four\r"}
	if got := tr.Sent(); !equalStrings(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestListenRunsSnippetRequests(t *testing.T) {
	m, tr := connected(t)
	d := NewDispatcher(m, SnippetCloseBlock)
	snippets := bus.NewTopic[SnippetRequest](0)
	defer snippets.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Listen(ctx, snippets.Subscribe())
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for snippets.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	snippets.Publish(SnippetRequest{Code: "pwd"})

	for len(tr.Sent()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := tr.Sent(); !equalStrings(got, []string{"pwd\r", "\r"}) {
		t.Errorf("unexpected writes %q", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

func TestParseSnippetPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    SnippetPolicy
		wantErr bool
	}{
		{"", SnippetCloseBlock, false},
		{"close-block", SnippetCloseBlock, false},
		{"Verbatim", SnippetVerbatim, false},
		{"eof", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSnippetPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSnippetPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseSnippetPolicy(%q) = %s, want %s", tt.in, got, tt.want)
		}
		if !tt.wantErr && tt.in != "" {
			if round, _ := ParseSnippetPolicy(got.String()); round != got {
				t.Errorf("String/Parse mismatch for %s", got)
			}
		}
	}
}

// **Feature: command-recall, Property: cursor stays in range and recall never edits history**
func TestProperty_RecallIsClamped(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("cursor stays in [-1, len-1] and input matches the entry", prop.ForAll(
		func(commands []string, moves []bool) bool {
			h := NewHistory()
			for _, c := range commands {
				h.Add(c)
			}
			entries := h.Entries()

			for _, older := range moves {
				var input string
				if older {
					input = h.Older()
				} else {
					input = h.Newer()
				}
				c := h.Cursor()
				if c < -1 || c > h.Len()-1 {
					return false
				}
				if c == -1 && input != "" {
					return false
				}
				if c >= 0 && input != entries[c] {
					return false
				}
			}
			return equalStrings(entries, h.Entries())
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("previous then next from -1 returns to empty input", prop.ForAll(
		func(commands []string) bool {
			h := NewHistory()
			for _, c := range commands {
				h.Add(c)
			}
			h.Older()
			return h.Newer() == "" && h.Cursor() == -1
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
