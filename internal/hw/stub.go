//go:build !linux

package hw

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("hw: not supported on this platform (requires Linux)")

// IIOADC is not available on non-Linux platforms.
type IIOADC struct{}

// NewIIOADC returns an error on non-Linux platforms.
func NewIIOADC(path string) (*IIOADC, error) { return nil, errUnsupported }

// ReadRaw is not implemented on non-Linux platforms.
func (a *IIOADC) ReadRaw() (int, error) { return 0, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (a *IIOADC) Close() error { return nil }

// HCSR04 is not available on non-Linux platforms.
type HCSR04 struct{}

// NewHCSR04 returns an error on non-Linux platforms.
func NewHCSR04(chipName string, trigPin, echoPin int, timeout time.Duration) (*HCSR04, error) {
	return nil, errUnsupported
}

// MeasureDistanceCm is not implemented on non-Linux platforms.
func (s *HCSR04) MeasureDistanceCm() (float64, error) { return 0, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (s *HCSR04) Close() error { return nil }

// RelayLine is not available on non-Linux platforms.
type RelayLine struct{}

// NewRelayLine returns an error on non-Linux platforms.
func NewRelayLine(chipName string, pin int) (*RelayLine, error) { return nil, errUnsupported }

// Set is not implemented on non-Linux platforms.
func (r *RelayLine) Set(on bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (r *RelayLine) Close() error { return nil }

// IIOClimate is not available on non-Linux platforms.
type IIOClimate struct{}

// NewIIOClimate returns a stub on non-Linux platforms.
func NewIIOClimate(tempPath, humidityPath string) *IIOClimate { return &IIOClimate{} }

// Read is not implemented on non-Linux platforms.
func (c *IIOClimate) Read() (float64, float64, error) { return 0, 0, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (c *IIOClimate) Close() error { return nil }
