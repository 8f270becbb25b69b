package telemetry

// Source is a non-blocking byte stream from the machine.
// Read returns 0, nil when nothing is available.
type Source interface {
	Read(p []byte) (int, error)
	// Reset discards pending input and re-establishes the feed.
	Reset() error
	Close() error
}

// maxReadsPerDrain bounds the time one tick spends on the port.
const maxReadsPerDrain = 8

// Drain reads whatever is available from src into scratch-sized chunks and
// returns it. It stops at the first empty read.
func Drain(src Source, scratch []byte) ([]byte, error) {
	var out []byte
	for i := 0; i < maxReadsPerDrain; i++ {
		n, err := src.Read(scratch)
		if n > 0 {
			out = append(out, scratch[:n]...)
		}
		if err != nil {
			return out, err
		}
		if n < len(scratch) {
			break
		}
	}
	return out, nil
}
