// Package hw provides the hardware abstraction for the controller's three
// devices: the analog soil probe, the ultrasonic tank ranger and the pump
// relay. The real implementations use the Linux GPIO character device and
// IIO sysfs; the fake implementations allow testing without hardware.
package hw

import "errors"

// ErrNoEcho is returned by a Ranger when no echo arrives within the
// configured timeout. It is an expected degraded-signal condition, not a
// fault: callers discard the sample and move on.
var ErrNoEcho = errors.New("hw: no echo within timeout")

// ADC reads the raw soil moisture count.
type ADC interface {
	// ReadRaw returns one raw converter count, nominally in [0, 4095].
	ReadRaw() (int, error)

	// Close releases the device.
	Close() error
}

// Ranger performs a single ultrasonic time-of-flight measurement.
type Ranger interface {
	// MeasureDistanceCm fires one pulse and returns the measured distance.
	// Returns ErrNoEcho if the echo times out.
	MeasureDistanceCm() (float64, error)

	// Close releases GPIO resources.
	Close() error
}

// Relay drives the pump relay output.
type Relay interface {
	// Set energizes (true) or releases (false) the relay.
	Set(on bool) error

	// Close releases the pump (drives the line low) and frees resources.
	Close() error
}

// Climate reads the optional temperature/humidity probe.
type Climate interface {
	// Read returns temperature in degrees C and relative humidity in percent.
	Read() (tempC, humidityPct float64, err error)

	// Close releases the device.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinTrigger = 23 // ultrasonic trigger
	DefaultPinEcho    = 24 // ultrasonic echo (level-shifted to 3.3V)
	DefaultPinPump    = 18 // pump relay
)

// DefaultADCPath is the IIO sysfs channel for the soil probe.
const DefaultADCPath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
