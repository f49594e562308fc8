package mqtt

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// PumpEvents contains all pump events that were published.
	PumpEvents []PumpEvent

	// PumpPayloads contains the JSON payloads that were published.
	PumpPayloads [][]byte

	// TelemetryPayloads contains all telemetry snapshots that were published.
	TelemetryPayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by all publish methods.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishPump records the pump event.
func (f *FakePublisher) PublishPump(event PumpEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.PumpEvents = append(f.PumpEvents, event)

	payload, err := FormatPumpPayload(event)
	if err != nil {
		return err
	}
	f.PumpPayloads = append(f.PumpPayloads, payload)
	return nil
}

// PublishTelemetry records the telemetry payload.
func (f *FakePublisher) PublishTelemetry(payload []byte) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.TelemetryPayloads = append(f.TelemetryPayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
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
	f.PumpEvents = nil
	f.PumpPayloads = nil
	f.TelemetryPayloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.Connected = false
}
