package buffer

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/gangaflow/console/internal/sanitize"
)

func TestLineBuffer_Scenario(t *testing.T) {
	b := NewLineBuffer()

	lines := b.Feed("line1\nline2\npart")
	if !reflect.DeepEqual(lines, []string{"line1", "line2"}) {
		t.Fatalf("first feed = %q, want [line1 line2]", lines)
	}
	if b.Pending() != "part" {
		t.Fatalf("pending = %q, want %q", b.Pending(), "part")
	}

	lines = b.Feed("ial\n")
	if !reflect.DeepEqual(lines, []string{"partial"}) {
		t.Fatalf("second feed = %q, want [partial]", lines)
	}
	if b.Pending() != "" {
		t.Fatalf("pending = %q, want empty", b.Pending())
	}
}

func TestLineBuffer_Feed(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []string
		want    []string
		pending string
	}{
		{name: "no newline", chunks: []string{"abc"}, want: nil, pending: "abc"},
		{name: "crlf", chunks: []string{"a\r\nb\r\n"}, want: []string{"a", "b"}},
		{name: "crlf split", chunks: []string{"a\r", "\nb"}, want: []string{"a"}, pending: "b"},
		{name: "empty lines", chunks: []string{"\n\n"}, want: []string{"", ""}},
		{name: "escape split", chunks: []string{"x\x1b[3", "1my\n"}, want: []string{"xy"}},
		{name: "escape split at esc", chunks: []string{"x\x1b", "[0mz\n"}, want: []string{"xz"}},
		{name: "charset split", chunks: []string{"\x1b(", "Bok\n"}, want: []string{"ok"}},
		{name: "osc split", chunks: []string{"\x1b]0;ti", "tle\x07$ "}, pending: "$ "},
		{name: "empty chunk", chunks: []string{"", "a\n"}, want: []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewLineBuffer()
			var got []string
			for _, c := range tt.chunks {
				got = append(got, b.Feed(c)...)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("lines = %q, want %q", got, tt.want)
			}
			if b.Pending() != tt.pending {
				t.Errorf("pending = %q, want %q", b.Pending(), tt.pending)
			}
		})
	}
}

func TestLineBuffer_Flush(t *testing.T) {
	b := NewLineBuffer()
	if _, ok := b.Flush(); ok {
		t.Fatal("flush of empty buffer should report nothing")
	}

	b.Feed("done\ntrailing")
	line, ok := b.Flush()
	if !ok || line != "trailing" {
		t.Fatalf("Flush() = (%q, %v), want (trailing, true)", line, ok)
	}
	if _, ok := b.Flush(); ok {
		t.Fatal("second flush should report nothing")
	}

	b.Feed("\x1b[0m\r")
	if _, ok := b.Flush(); ok {
		t.Fatal("invisible tail should not flush a line")
	}
}

func TestLineBuffer_Reset(t *testing.T) {
	b := NewLineBuffer()
	b.Feed("abc")
	b.Reset()
	if b.Pending() != "" {
		t.Fatalf("pending after reset = %q", b.Pending())
	}
	if got := b.Feed("d\n"); !reflect.DeepEqual(got, []string{"d"}) {
		t.Fatalf("feed after reset = %q", got)
	}
}

// chunked pairs a stream with the cut points used to deliver it.
type chunked struct {
	text string
	cuts []int
}

func (c chunked) chunks() []string {
	var out []string
	prev := 0
	for _, cut := range c.cuts {
		pos := prev + cut%(len(c.text)-prev+1)
		out = append(out, c.text[prev:pos])
		prev = pos
	}
	return append(out, c.text[prev:])
}

func genChunked() gopter.Gen {
	fragments := []string{
		"a", "bc", "ganga", " ", "\n", "\r\n", "\r", "\x1b[31m", "\x1b[0m",
		"\x1b[?2004h", "\x1b(B", "\x1b=", "\x1b]0;t\x07", "\x1b", "[", "✔",
	}
	text := gen.SliceOf(gen.IntRange(0, len(fragments)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteString(fragments[i])
		}
		return b.String()
	})
	return gopter.CombineGens(text, gen.SliceOf(gen.IntRange(0, 16))).Map(func(v []interface{}) chunked {
		return chunked{text: v[0].(string), cuts: v[1].([]int)}
	})
}

// **Property: line reassembly does not depend on chunk boundaries**
// For any stream with k newlines, exactly k lines come out in order, equal to
// sanitizing and splitting the whole stream, and the remainder is pending.
func TestLineBufferChunkingInvarianceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("chunked delivery matches whole delivery", prop.ForAll(
		func(c chunked) bool {
			b := NewLineBuffer()
			var got []string
			for _, chunk := range c.chunks() {
				got = append(got, b.Feed(chunk)...)
			}

			whole := strings.Split(sanitize.Strip(c.text), "\n")
			want, tail := whole[:len(whole)-1], whole[len(whole)-1]

			if len(got) != strings.Count(c.text, "\n") {
				return false
			}
			if len(got) == 0 && len(want) == 0 {
				return b.Pending() == tail
			}
			return reflect.DeepEqual(got, want) && b.Pending() == tail
		},
		genChunked(),
	))

	properties.TestingRun(t)
}
