//go:build linux

package hw

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// speed of sound at ~20°C, in cm/s. The echo pulse covers the round trip.
const soundSpeedCmPerSec = 34300.0

// IIOADC reads raw counts from a Linux IIO sysfs channel (e.g. an ADS1115
// or MCP3008 behind the kernel driver).
type IIOADC struct {
	path string
}

// NewIIOADC creates an ADC backed by the given in_voltage*_raw file.
// Fails fast if the channel cannot be read.
func NewIIOADC(path string) (*IIOADC, error) {
	a := &IIOADC{path: path}
	if _, err := a.ReadRaw(); err != nil {
		return nil, fmt.Errorf("probe adc channel: %w", err)
	}
	return a, nil
}

// ReadRaw reads one raw count.
func (a *IIOADC) ReadRaw() (int, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", a.path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", a.path, err)
	}
	return v, nil
}

// Close is a no-op; sysfs files are opened per read.
func (a *IIOADC) Close() error { return nil }

// HCSR04 bit-bangs an HC-SR04 style ultrasonic ranger over two GPIO lines.
// Echo edges are timestamped by the kernel, so userspace scheduling jitter
// does not distort the time-of-flight measurement.
type HCSR04 struct {
	chip    *gpiocdev.Chip
	trig    *gpiocdev.Line
	echo    *gpiocdev.Line
	timeout time.Duration
	events  chan gpiocdev.LineEvent
}

// NewHCSR04 requests the trigger (output) and echo (input, both edges)
// lines on the given chip.
func NewHCSR04(chipName string, trigPin, echoPin int, timeout time.Duration) (*HCSR04, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	s := &HCSR04{
		chip:    chip,
		timeout: timeout,
		events:  make(chan gpiocdev.LineEvent, 16),
	}

	s.trig, err = chip.RequestLine(trigPin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request trigger pin %d: %w", trigPin, err)
	}

	s.echo, err = chip.RequestLine(echoPin, gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(s.onEdge))
	if err != nil {
		s.trig.Close()
		chip.Close()
		return nil, fmt.Errorf("request echo pin %d: %w", echoPin, err)
	}

	return s, nil
}

func (s *HCSR04) onEdge(evt gpiocdev.LineEvent) {
	select {
	case s.events <- evt:
	default:
		// Stale burst; the next measurement drains before triggering.
	}
}

// MeasureDistanceCm fires one 10µs trigger pulse and waits for the echo
// pulse, returning ErrNoEcho if either edge misses the timeout window.
func (s *HCSR04) MeasureDistanceCm() (float64, error) {
	s.drain()

	if err := s.trig.SetValue(1); err != nil {
		return 0, fmt.Errorf("trigger high: %w", err)
	}
	time.Sleep(10 * time.Microsecond)
	if err := s.trig.SetValue(0); err != nil {
		return 0, fmt.Errorf("trigger low: %w", err)
	}

	rise, err := s.waitEdge(gpiocdev.LineEventRisingEdge)
	if err != nil {
		return 0, err
	}
	fall, err := s.waitEdge(gpiocdev.LineEventFallingEdge)
	if err != nil {
		return 0, err
	}

	flight := fall - rise
	if flight <= 0 {
		return 0, ErrNoEcho
	}
	return flight.Seconds() * soundSpeedCmPerSec / 2, nil
}

func (s *HCSR04) waitEdge(kind gpiocdev.LineEventType) (time.Duration, error) {
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()
	for {
		select {
		case evt := <-s.events:
			if evt.Type == kind {
				return evt.Timestamp, nil
			}
		case <-deadline.C:
			return 0, ErrNoEcho
		}
	}
}

func (s *HCSR04) drain() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

// Close releases the GPIO lines.
func (s *HCSR04) Close() error {
	var errs []error
	if s.trig != nil {
		if err := s.trig.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trigger: %w", err))
		}
	}
	if s.echo != nil {
		if err := s.echo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close echo: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RelayLine drives the pump relay through a GPIO output line.
type RelayLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRelayLine requests the relay pin as an output, initially low
// (pump off).
func NewRelayLine(chipName string, pin int) (*RelayLine, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pin, err)
	}
	return &RelayLine{chip: chip, line: line}, nil
}

// Set energizes or releases the relay.
func (r *RelayLine) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("set relay: %w", err)
	}
	return nil
}

// Close drives the line low before releasing it, so a daemon restart never
// leaves the pump running.
func (r *RelayLine) Close() error {
	var errs []error
	if r.line != nil {
		if err := r.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release relay: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay line: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// IIOClimate reads a DHT-class probe through the kernel IIO driver, which
// reports milli-degrees and milli-percent.
type IIOClimate struct {
	tempPath     string
	humidityPath string
}

// NewIIOClimate creates a climate reader from the two sysfs channels.
func NewIIOClimate(tempPath, humidityPath string) *IIOClimate {
	return &IIOClimate{tempPath: tempPath, humidityPath: humidityPath}
}

// Read returns temperature (°C) and relative humidity (%).
func (c *IIOClimate) Read() (float64, float64, error) {
	temp, err := readMilli(c.tempPath)
	if err != nil {
		return 0, 0, err
	}
	hum, err := readMilli(c.humidityPath)
	if err != nil {
		return 0, 0, err
	}
	return temp, hum, nil
}

// Close is a no-op; sysfs files are opened per read.
func (c *IIOClimate) Close() error { return nil }

func readMilli(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v / 1000, nil
}
