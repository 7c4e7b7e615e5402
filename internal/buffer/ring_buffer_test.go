package buffer

import (
	"bytes"
	"testing"
)

func TestNewRingBuffer(t *testing.T) {
	rb := NewRingBuffer(100)
	if rb.Cap() != 100 {
		t.Errorf("expected capacity 100, got %d", rb.Cap())
	}
	if rb.Len() != 0 {
		t.Errorf("expected length 0, got %d", rb.Len())
	}

	for _, c := range []int{0, -5} {
		if got := NewRingBuffer(c).Cap(); got != 1 {
			t.Errorf("capacity %d: expected 1, got %d", c, got)
		}
	}
}

func TestRingBuffer_Write(t *testing.T) {
	rb := NewRingBuffer(10)

	n, err := rb.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, nil)", n, err)
	}
	rb.Write([]byte("world"))

	if got := rb.Bytes(); !bytes.Equal(got, []byte("helloworld")) {
		t.Errorf("expected 'helloworld', got %q", got)
	}
	if rb.Total() != 10 {
		t.Errorf("expected total 10, got %d", rb.Total())
	}
}

func TestRingBuffer_WriteOverflow(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write([]byte("0123456789"))
	rb.Write([]byte("abc"))

	if got := rb.Bytes(); !bytes.Equal(got, []byte("3456789abc")) {
		t.Errorf("expected '3456789abc', got %q", got)
	}
	if rb.Len() != 10 {
		t.Errorf("expected length 10, got %d", rb.Len())
	}
	if rb.Total() != 13 {
		t.Errorf("expected total 13, got %d", rb.Total())
	}
}

func TestRingBuffer_WriteLargerThanCapacity(t *testing.T) {
	rb := NewRingBuffer(5)

	n, err := rb.Write([]byte("0123456789"))
	if err != nil || n != 10 {
		t.Fatalf("Write = (%d, %v), want (10, nil)", n, err)
	}
	if got := rb.Bytes(); !bytes.Equal(got, []byte("56789")) {
		t.Errorf("expected '56789', got %q", got)
	}
}

func TestRingBuffer_BytesIsCopy(t *testing.T) {
	rb := NewRingBuffer(10)
	if rb.Bytes() != nil {
		t.Error("expected nil for empty buffer")
	}

	rb.Write([]byte("test"))
	data := rb.Bytes()
	data[0] = 'X'
	if got := rb.Bytes(); !bytes.Equal(got, []byte("test")) {
		t.Errorf("Bytes should return a copy, got %q", got)
	}
}

func TestRingBuffer_Reset(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write([]byte("hello"))
	rb.Reset()

	if rb.Len() != 0 {
		t.Errorf("expected length 0 after reset, got %d", rb.Len())
	}
	if rb.Total() != 5 {
		t.Errorf("reset should keep the total, got %d", rb.Total())
	}

	rb.Write([]byte("world"))
	if got := rb.Bytes(); !bytes.Equal(got, []byte("world")) {
		t.Errorf("expected 'world', got %q", got)
	}
}

func TestRingBuffer_LastLine(t *testing.T) {
	tests := []struct {
		name   string
		writes []string
		want   string
	}{
		{name: "empty", writes: nil, want: ""},
		{name: "single line", writes: []string{"hello\r\n"}, want: "hello"},
		{name: "partial line counts", writes: []string{"one\r\n", "$ "}, want: "$"},
		{name: "skips blank tail", writes: []string{"result\r\n\r\n  \r\n"}, want: "result"},
		{name: "strips color", writes: []string{"\x1b[32mok\x1b[0m\r\n"}, want: "ok"},
		{name: "across writes", writes: []string{"ab", "cd\n"}, want: "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer(64)
			for _, w := range tt.writes {
				rb.Write([]byte(w))
			}
			if got := rb.LastLine(); got != tt.want {
				t.Errorf("LastLine() = %q, want %q", got, tt.want)
			}
		})
	}
}
