package mqtt

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	Shots        []ShotEvent
	ShotPayloads [][]byte

	Readings        []ReadingEvent
	ReadingPayloads [][]byte

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishShot and PublishReading.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishShot records the shot event.
func (f *FakePublisher) PublishShot(event ShotEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatShotPayload(event)
	if err != nil {
		return err
	}
	f.Shots = append(f.Shots, event)
	f.ShotPayloads = append(f.ShotPayloads, payload)
	return nil
}

// PublishReading records the reading.
func (f *FakePublisher) PublishReading(event ReadingEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatReadingPayload(event)
	if err != nil {
		return err
	}
	f.Readings = append(f.Readings, event)
	f.ReadingPayloads = append(f.ReadingPayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// SystemEventNames returns the Event field of every recorded system event.
func (f *FakePublisher) SystemEventNames() []string {
	names := make([]string, 0, len(f.SystemEvents))
	for _, e := range f.SystemEvents {
		names = append(names, e.Event)
	}
	return names
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
