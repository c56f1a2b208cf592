package stream

import (
	"bytes"
	"strings"
)

// LineBuffer splits an arbitrary sequence of byte chunks into complete lines.
// A trailing partial line is retained across Append calls, so no line is ever
// parsed twice or split across two parse calls regardless of how the chunks
// arrive from the pipe.
type LineBuffer struct {
	buf []byte
}

// Append adds a chunk and returns the complete lines it finished, in order,
// without their trailing newline.
func (b *LineBuffer) Append(chunk []byte) []string {
	b.buf = append(b.buf, chunk...)
	var lines []string
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimSuffix(string(b.buf[:i]), "\r"))
		b.buf = b.buf[i+1:]
	}
	return lines
}

// Flush returns any retained partial line and empties the buffer. Called once
// at natural process exit; a terminated process did not reach a defined
// output boundary, so its partial is discarded instead.
func (b *LineBuffer) Flush() string {
	s := strings.TrimSuffix(string(b.buf), "\r")
	b.buf = nil
	return s
}
