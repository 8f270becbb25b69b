package telemetry

// FakeSource is a test double that hands out scripted chunks, one per Read.
type FakeSource struct {
	Chunks [][]byte

	// ReadError, if set, will be returned by Read()
	ReadError error
	// ResetError, if set, will be returned by Reset()
	ResetError error

	Resets int
	Closed bool
}

// NewFakeSource creates a FakeSource that yields the given strings in order.
func NewFakeSource(chunks ...string) *FakeSource {
	f := &FakeSource{}
	for _, c := range chunks {
		f.Push(c)
	}
	return f
}

// Push queues another chunk.
func (f *FakeSource) Push(chunk string) {
	f.Chunks = append(f.Chunks, []byte(chunk))
}

// Read copies the next chunk into p. A chunk larger than p is split.
func (f *FakeSource) Read(p []byte) (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Chunks) == 0 {
		return 0, nil
	}
	n := copy(p, f.Chunks[0])
	if n < len(f.Chunks[0]) {
		f.Chunks[0] = f.Chunks[0][n:]
	} else {
		f.Chunks = f.Chunks[1:]
	}
	return n, nil
}

// Reset records the call and drops queued input.
func (f *FakeSource) Reset() error {
	f.Resets++
	if f.ResetError != nil {
		return f.ResetError
	}
	f.Chunks = nil
	return nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}
