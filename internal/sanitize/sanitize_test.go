package sanitize

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestStrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "hello world", want: "hello world"},
		{name: "color", input: "\x1b[31mRed Text\x1b[0m", want: "Red Text"},
		{name: "bold color", input: "\x1b[1;32mBold Green\x1b[0m", want: "Bold Green"},
		{name: "clear screen", input: "\x1b[H\x1b[2Jready", want: "ready"},
		{name: "private mode", input: "\x1b[?25hcursor", want: "cursor"},
		{name: "bracketed paste", input: "\x1b[?2004h$ ", want: "$ "},
		{name: "extended color", input: "\x1b[38;5;196mExtended\x1b[0m", want: "Extended"},
		{name: "charset g0", input: "\x1b(Bascii", want: "ascii"},
		{name: "charset g1", input: "\x1b)0line", want: "line"},
		{name: "keypad", input: "\x1b=app\x1b>", want: "app"},
		{name: "osc title bel", input: "\x1b]0;user@host: ~\x07$ ls", want: "$ ls"},
		{name: "osc title st", input: "\x1b]2;title\x1b\\prompt", want: "prompt"},
		{name: "carriage return", input: "line\r\n", want: "line\n"},
		{name: "bare carriage returns", input: "a\rb\rc", want: "abc"},
		{name: "lone escape", input: "abc\x1b", want: "abc"},
		{name: "unterminated csi", input: "abc\x1b[31", want: "abc[31"},
		{name: "unknown escape", input: "\x1bXtext", want: "Xtext"},
		{name: "csi does not cross newline", input: "\x1b[1\nm", want: "[1\nm"},
		{name: "nested after removal", input: "\x1b\x1b[0m[A", want: "[A"},
		{name: "unicode", input: "\x1b[32m✔ done\x1b[0m", want: "✔ done"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Strip(tt.input); got != tt.want {
				t.Errorf("Strip(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// terminalText generates strings drawn from plain text, newlines, carriage
// returns and a set of escape fragments, complete and incomplete.
func terminalText() gopter.Gen {
	fragments := []string{
		"a", "b", "ls", " ", "\n", "\r", "\r\n", "\x1b", "\x1b[", "\x1b[31m",
		"\x1b[0m", "\x1b[?25l", "\x1b(", "\x1b(B", "\x1b)0", "\x1b=", "\x1b>",
		"\x1b]0;title", "\x07", "\x1b\\", "[", "m", "✔",
	}
	return gen.SliceOf(gen.IntRange(0, len(fragments)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteString(fragments[i])
		}
		return b.String()
	})
}

// **Property: sanitization is idempotent and preserves newlines**
func TestStripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("stripping twice equals stripping once", prop.ForAll(
		func(s string) bool {
			once := Strip(s)
			return Strip(once) == once
		},
		terminalText(),
	))

	properties.Property("output has no escape or carriage return", prop.ForAll(
		func(s string) bool {
			return !strings.ContainsAny(Strip(s), "\x1b\r")
		},
		terminalText(),
	))

	properties.Property("newline count is preserved", prop.ForAll(
		func(s string) bool {
			return strings.Count(Strip(s), "\n") == strings.Count(s, "\n")
		},
		terminalText(),
	))

	properties.Property("stripping distributes over lines", prop.ForAll(
		func(s string) bool {
			lines := strings.Split(s, "\n")
			for i, l := range lines {
				lines[i] = Strip(l)
			}
			return strings.Join(lines, "\n") == Strip(s)
		},
		terminalText(),
	))

	properties.Property("arbitrary strings are idempotent", prop.ForAll(
		func(s string) bool {
			once := Strip(s)
			return Strip(once) == once
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
