package stream

import (
	"testing"
)

func TestLineBufferBasic(t *testing.T) {
	var lb LineBuffer
	lines := lb.Append([]byte("one\ntwo\npart"))
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	lines = lb.Append([]byte("ial\n"))
	if len(lines) != 1 || lines[0] != "partial" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if rest := lb.Flush(); rest != "" {
		t.Errorf("expected empty flush, got %q", rest)
	}
}

func TestLineBufferCRLF(t *testing.T) {
	var lb LineBuffer
	lines := lb.Append([]byte("a\r\nb\r\n"))
	if len(lines) != 2 || lines[0] != "a" || lines[1] != "b" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

// Splitting the same byte stream at every possible chunk boundary must yield
// the same lines as feeding it whole.
func TestLineBufferChunkBoundaryInvariant(t *testing.T) {
	input := "{\"type\":\"assistant\"}\n{\"type\":\"result\"}\nline three\ntrailing partial"

	var whole LineBuffer
	wantLines := whole.Append([]byte(input))
	wantRest := whole.Flush()

	for split := 0; split <= len(input); split++ {
		var lb LineBuffer
		var lines []string
		lines = append(lines, lb.Append([]byte(input[:split]))...)
		lines = append(lines, lb.Append([]byte(input[split:]))...)
		rest := lb.Flush()

		if len(lines) != len(wantLines) {
			t.Fatalf("split %d: got %d lines, want %d", split, len(lines), len(wantLines))
		}
		for i := range lines {
			if lines[i] != wantLines[i] {
				t.Fatalf("split %d: line %d = %q, want %q", split, i, lines[i], wantLines[i])
			}
		}
		if rest != wantRest {
			t.Fatalf("split %d: rest = %q, want %q", split, rest, wantRest)
		}
	}
}

func TestLineBufferByteAtATime(t *testing.T) {
	input := "alpha\nbeta\n"
	var lb LineBuffer
	var lines []string
	for i := 0; i < len(input); i++ {
		lines = append(lines, lb.Append([]byte{input[i]})...)
	}
	if len(lines) != 2 || lines[0] != "alpha" || lines[1] != "beta" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}
