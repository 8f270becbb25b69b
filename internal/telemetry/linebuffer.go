// Package telemetry moves machine status lines from the serial port into the
// control loop. Parsing of the lines lives in the logic package.
package telemetry

// DefaultMaxLine is the longest line kept before truncation.
const DefaultMaxLine = 64

// LineBuffer accumulates raw bytes into newline terminated lines.
// A line longer than the limit is cut at the limit and the rest of it is
// dropped up to the next newline. The buffer is cleared after every line.
type LineBuffer struct {
	buf       []byte
	max       int
	truncated bool

	// Truncations counts lines that were cut short.
	Truncations int
}

// NewLineBuffer creates a buffer holding at most maxLine bytes per line.
// A non-positive maxLine selects DefaultMaxLine.
func NewLineBuffer(maxLine int) *LineBuffer {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	return &LineBuffer{buf: make([]byte, 0, maxLine), max: maxLine}
}

// Feed appends data and returns every line completed by it, without the
// newline. Partial input stays buffered for the next call.
func (b *LineBuffer) Feed(data []byte) []string {
	var lines []string
	for _, c := range data {
		if c == '\n' {
			lines = append(lines, string(b.buf))
			b.buf = b.buf[:0]
			b.truncated = false
			continue
		}
		if len(b.buf) >= b.max {
			if !b.truncated {
				b.truncated = true
				b.Truncations++
			}
			continue
		}
		b.buf = append(b.buf, c)
	}
	return lines
}

// Pending returns the number of buffered bytes of the incomplete line.
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}

// Clear drops any partial line.
func (b *LineBuffer) Clear() {
	b.buf = b.buf[:0]
	b.truncated = false
}
