package hw

import "errors"

// FakeADC is a test double that returns scripted raw counts.
type FakeADC struct {
	// Samples contains scripted raw values. Each call to ReadRaw consumes
	// the next one; the last sample repeats once exhausted.
	Samples []int

	// ReadError, if set, will be returned by ReadRaw.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool

	index int
}

// NewFakeADC creates a FakeADC with the given samples.
func NewFakeADC(samples []int) *FakeADC {
	return &FakeADC{Samples: samples}
}

// ReadRaw returns the next scripted sample.
func (f *FakeADC) ReadRaw() (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// Close marks the ADC as closed.
func (f *FakeADC) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the ADC to the beginning of its samples.
func (f *FakeADC) Reset() {
	f.index = 0
	f.Closed = false
}

// Echo is one scripted ultrasonic measurement.
type Echo struct {
	Cm      float64
	Timeout bool // true = this pulse returns ErrNoEcho
}

// FakeRanger is a test double that returns scripted echoes.
type FakeRanger struct {
	// Echoes contains scripted measurements. The last one repeats once
	// exhausted.
	Echoes []Echo

	// MeasureError, if set, will be returned by MeasureDistanceCm in place
	// of the scripted value (to simulate faults other than a timeout).
	MeasureError error

	// Closed tracks if Close was called.
	Closed bool

	index int
}

// NewFakeRanger creates a FakeRanger with the given echoes.
func NewFakeRanger(echoes []Echo) *FakeRanger {
	return &FakeRanger{Echoes: echoes}
}

// MeasureDistanceCm returns the next scripted echo.
func (f *FakeRanger) MeasureDistanceCm() (float64, error) {
	if f.MeasureError != nil {
		return 0, f.MeasureError
	}
	if len(f.Echoes) == 0 {
		return 0, errors.New("no echoes configured")
	}
	e := f.Echoes[f.index]
	if f.index < len(f.Echoes)-1 {
		f.index++
	}
	if e.Timeout {
		return 0, ErrNoEcho
	}
	return e.Cm, nil
}

// Close marks the ranger as closed.
func (f *FakeRanger) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the ranger to the beginning of its echoes.
func (f *FakeRanger) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeRelay records every state commanded to it.
type FakeRelay struct {
	// On is the current commanded state.
	On bool

	// History records each Set call in order.
	History []bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeRelay creates a FakeRelay, initially off.
func NewFakeRelay() *FakeRelay {
	return &FakeRelay{}
}

// Set records the commanded state.
func (f *FakeRelay) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	f.History = append(f.History, on)
	return nil
}

// Close releases the relay (off) and marks it closed.
func (f *FakeRelay) Close() error {
	f.On = false
	f.Closed = true
	return nil
}

// FakeClimate returns fixed temperature/humidity values.
type FakeClimate struct {
	TempC       float64
	HumidityPct float64

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool
}

// Read returns the fixed values.
func (f *FakeClimate) Read() (float64, float64, error) {
	if f.ReadError != nil {
		return 0, 0, f.ReadError
	}
	return f.TempC, f.HumidityPct, nil
}

// Close marks the probe as closed.
func (f *FakeClimate) Close() error {
	f.Closed = true
	return nil
}
