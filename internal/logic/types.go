// Package logic contains pure control logic for the irrigation pump.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// RawMax is the upper bound of the soil ADC (12-bit converter).
const RawMax = 4095

// Mode selects who drives the pump: the state machine or the operator.
type Mode string

const (
	ModeAuto   Mode = "AUTO"
	ModeManual Mode = "MANUAL"
)

// Reason explains why a pump transition happened.
type Reason string

const (
	// ReasonDryHold: soil stayed at or below the on-threshold for the full
	// dry-hold window and the minimum-off window had elapsed.
	ReasonDryHold Reason = "DRY_HOLD"
	// ReasonRecovered: soil reached the off-threshold after the minimum-on window.
	ReasonRecovered Reason = "RECOVERED"
	// ReasonLockout: tank inferred empty while the pump was running.
	ReasonLockout Reason = "LOCKOUT"
	// ReasonManual: operator command.
	ReasonManual Reason = "MANUAL"
)

// Transition is a pump state change to be applied and published.
type Transition struct {
	Timestamp time.Time
	On        bool
	Reason    Reason
}

// SoilSample is one tick's soil measurement.
type SoilSample struct {
	// Raw is the averaged ADC count, clamped to [0, RawMax].
	Raw int
	// Smoothed is the running EMA of Raw.
	Smoothed float64
	// Percent is the calibrated moisture, 0 (dry) to 100 (wet).
	Percent int
}

// TankReading is one tick's ultrasonic measurement. Valid is false when
// every pulse timed out; DistanceCm must not be read in that case.
// An explicit flag, never a NaN sentinel: NaN comparisons silently fail
// and previously masked a lockout bug.
type TankReading struct {
	DistanceCm float64
	Valid      bool
}

// Pump is the authoritative actuator state. Exactly one of OnSince/OffSince
// is meaningful at a time: a transition stamps the entering-state timestamp
// and zeroes the other.
type Pump struct {
	On       bool
	OnSince  time.Time
	OffSince time.Time
}

// Set applies the state and stamps the timers.
func (p *Pump) Set(on bool, now time.Time) {
	p.On = on
	if on {
		p.OnSince = now
		p.OffSince = time.Time{}
	} else {
		p.OffSince = now
		p.OnSince = time.Time{}
	}
}

// Since returns the timestamp of the last transition into the current state.
func (p *Pump) Since() time.Time {
	if p.On {
		return p.OnSince
	}
	return p.OffSince
}

// Input is everything the state machine looks at on one tick.
type Input struct {
	Percent int
	Lockout bool
	Time    time.Time
}

// TransitionCounts tracks pump transitions since startup.
type TransitionCounts struct {
	PumpOn   int
	PumpOff  int
	Lockouts int
}

// Windows holds the immutable hysteresis and timing configuration.
// OnPercent < OffPercent is required; equal or inverted values make the
// controller oscillate and are rejected at startup by config validation.
type Windows struct {
	OnPercent  int
	OffPercent int
	MinOn      time.Duration
	MinOff     time.Duration
	DryHold    time.Duration
}
