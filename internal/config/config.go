// Package config loads and validates the controller configuration.
// Configuration is read once at startup and is immutable for the process
// lifetime; there is no hot reload.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/pump-controller/internal/hw"
	"github.com/sweeney/pump-controller/internal/logic"
)

// Config is the full controller configuration.
type Config struct {
	Soil     SoilConfig     `yaml:"soil"`
	Tank     TankConfig     `yaml:"tank"`
	Control  ControlConfig  `yaml:"control"`
	Climate  ClimateConfig  `yaml:"climate"`
	Hardware HardwareConfig `yaml:"hardware"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// SoilConfig holds the soil probe calibration and smoothing parameters.
type SoilConfig struct {
	// DryRaw and WetRaw are the calibration counts mapping to 0% and 100%.
	// A capacitive probe reads high when dry.
	DryRaw int `yaml:"dry_raw"`
	WetRaw int `yaml:"wet_raw"`
	// Alpha is the EMA smoothing factor, in (0, 1].
	Alpha float64 `yaml:"alpha"`
	// Samples raw reads are averaged per tick, SampleDelayMs apart.
	Samples       int `yaml:"samples"`
	SampleDelayMs int `yaml:"sample_delay_ms"`
}

// SampleDelay returns the inter-sample delay as a duration.
func (c SoilConfig) SampleDelay() time.Duration {
	return time.Duration(c.SampleDelayMs) * time.Millisecond
}

// TankConfig holds the ultrasonic tank monitor parameters.
type TankConfig struct {
	// Enabled turns tank protection on. When false no pulses are fired and
	// the lockout is never asserted.
	Enabled bool `yaml:"enabled"`
	// EmptyDistanceCm: a measured distance at or beyond this asserts the
	// lockout (sensor looks down at the water surface).
	EmptyDistanceCm float64 `yaml:"empty_distance_cm"`
	// Pulses per tick, PulseSpacingMs apart, each bounded by EchoTimeoutMs.
	Pulses         int `yaml:"pulses"`
	PulseSpacingMs int `yaml:"pulse_spacing_ms"`
	EchoTimeoutMs  int `yaml:"echo_timeout_ms"`
	// HoldLockoutOnTimeout selects the fail-safe policy: when the sensor
	// produces no valid reading the previous lockout state is kept. Set to
	// false for the fail-open behavior of the original firmware.
	HoldLockoutOnTimeout bool `yaml:"hold_lockout_on_timeout"`
}

// PulseSpacing returns the inter-pulse spacing as a duration.
func (c TankConfig) PulseSpacing() time.Duration {
	return time.Duration(c.PulseSpacingMs) * time.Millisecond
}

// EchoTimeout returns the per-pulse echo timeout as a duration.
func (c TankConfig) EchoTimeout() time.Duration {
	return time.Duration(c.EchoTimeoutMs) * time.Millisecond
}

// Policy returns the lockout policy selected by HoldLockoutOnTimeout.
func (c TankConfig) Policy() logic.LockoutPolicy {
	if c.HoldLockoutOnTimeout {
		return logic.PolicyHold
	}
	return logic.PolicyClear
}

// ControlConfig holds the hysteresis band and timing windows.
type ControlConfig struct {
	// OnPercent < OffPercent. At or below OnPercent counts as dry; at or
	// above OffPercent counts as wet-enough.
	OnPercent  int `yaml:"on_percent"`
	OffPercent int `yaml:"off_percent"`

	MinOnMs   int `yaml:"min_on_ms"`
	MinOffMs  int `yaml:"min_off_ms"`
	DryHoldMs int `yaml:"dry_hold_ms"`
	TickMs    int `yaml:"tick_ms"`

	// LegacyThresholdRaw seeds the old firmware's raw threshold, which is
	// stored and reported but never read by AUTO logic.
	LegacyThresholdRaw int `yaml:"legacy_threshold_raw"`
}

// Windows returns the state machine windows.
func (c ControlConfig) Windows() logic.Windows {
	return logic.Windows{
		OnPercent:  c.OnPercent,
		OffPercent: c.OffPercent,
		MinOn:      time.Duration(c.MinOnMs) * time.Millisecond,
		MinOff:     time.Duration(c.MinOffMs) * time.Millisecond,
		DryHold:    time.Duration(c.DryHoldMs) * time.Millisecond,
	}
}

// Tick returns the control tick interval.
func (c ControlConfig) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// ClimateConfig holds the optional temperature/humidity probe paths.
type ClimateConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TempPath     string `yaml:"temp_path"`
	HumidityPath string `yaml:"humidity_path"`
}

// HardwareConfig holds pins and device paths.
type HardwareConfig struct {
	Chip       string `yaml:"chip"`
	ADCPath    string `yaml:"adc_path"`
	PinTrigger int    `yaml:"pin_trigger"`
	PinEcho    int    `yaml:"pin_echo"`
	PinPump    int    `yaml:"pin_pump"`
}

// MQTTConfig holds the broker connection parameters.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	HeartbeatMs int    `yaml:"heartbeat_ms"`
}

// Heartbeat returns the telemetry heartbeat interval (0 disables).
func (c MQTTConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

// HTTPConfig holds the device API listen address.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration for the reference hardware.
func Default() *Config {
	return &Config{
		Soil: SoilConfig{
			DryRaw:        3200,
			WetRaw:        1200,
			Alpha:         0.3,
			Samples:       8,
			SampleDelayMs: 2,
		},
		Tank: TankConfig{
			Enabled:              true,
			EmptyDistanceCm:      8.0,
			Pulses:               3,
			PulseSpacingMs:       60,
			EchoTimeoutMs:        30,
			HoldLockoutOnTimeout: true,
		},
		Control: ControlConfig{
			OnPercent:          30,
			OffPercent:         45,
			MinOnMs:            15000,
			MinOffMs:           30000,
			DryHoldMs:          5000,
			TickMs:             1000,
			LegacyThresholdRaw: 2800,
		},
		Climate: ClimateConfig{
			Enabled:      false,
			TempPath:     "/sys/bus/iio/devices/iio:device1/in_temp_input",
			HumidityPath: "/sys/bus/iio/devices/iio:device1/in_humidityrelative_input",
		},
		Hardware: HardwareConfig{
			Chip:       "gpiochip0",
			ADCPath:    hw.DefaultADCPath,
			PinTrigger: hw.DefaultPinTrigger,
			PinEcho:    hw.DefaultPinEcho,
			PinPump:    hw.DefaultPinPump,
		},
		MQTT: MQTTConfig{
			Enabled:     true,
			Broker:      "tcp://192.168.1.200:1883",
			ClientID:    "pump-controller",
			HeartbeatMs: 60000,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// SensorBlockingTime returns the worst-case time one tick spends inside
// sensor reads: the analog averaging delays plus every ultrasonic pulse
// running to its timeout.
func (c *Config) SensorBlockingTime() time.Duration {
	soil := time.Duration(c.Soil.Samples-1) * c.Soil.SampleDelay()
	var tank time.Duration
	if c.Tank.Enabled {
		tank = time.Duration(c.Tank.Pulses)*c.Tank.EchoTimeout() +
			time.Duration(c.Tank.Pulses-1)*c.Tank.PulseSpacing()
	}
	return soil + tank
}

// Validate rejects configurations the controller cannot run safely with.
// A degenerate hysteresis band is a hard error: equal or inverted
// thresholds make the pump either never settle or chatter every tick.
func (c *Config) Validate() error {
	if c.Control.OnPercent >= c.Control.OffPercent {
		return fmt.Errorf("control: on_percent (%d) must be below off_percent (%d)",
			c.Control.OnPercent, c.Control.OffPercent)
	}
	if c.Control.OnPercent < 0 || c.Control.OffPercent > 100 {
		return fmt.Errorf("control: thresholds must lie in [0, 100], got %d/%d",
			c.Control.OnPercent, c.Control.OffPercent)
	}
	if c.Control.MinOnMs < 0 || c.Control.MinOffMs < 0 || c.Control.DryHoldMs < 0 {
		return fmt.Errorf("control: timing windows must not be negative")
	}
	if c.Soil.Alpha <= 0 || c.Soil.Alpha > 1 {
		return fmt.Errorf("soil: alpha must be in (0, 1], got %v", c.Soil.Alpha)
	}
	if c.Soil.Samples < 1 {
		return fmt.Errorf("soil: samples must be at least 1, got %d", c.Soil.Samples)
	}
	if c.Soil.DryRaw < 0 || c.Soil.DryRaw > logic.RawMax || c.Soil.WetRaw < 0 || c.Soil.WetRaw > logic.RawMax {
		return fmt.Errorf("soil: calibration counts must lie in [0, %d]", logic.RawMax)
	}
	if c.Tank.Enabled {
		if c.Tank.Pulses < 1 {
			return fmt.Errorf("tank: pulses must be at least 1, got %d", c.Tank.Pulses)
		}
		if c.Tank.EmptyDistanceCm <= 0 {
			return fmt.Errorf("tank: empty_distance_cm must be positive, got %v", c.Tank.EmptyDistanceCm)
		}
		if c.Tank.EchoTimeoutMs < 1 {
			return fmt.Errorf("tank: echo_timeout_ms must be at least 1, got %d", c.Tank.EchoTimeoutMs)
		}
	}
	if tick, blocking := c.Control.Tick(), c.SensorBlockingTime(); tick <= blocking {
		return fmt.Errorf("control: tick_ms (%v) must exceed worst-case sensor blocking time (%v)",
			tick, blocking)
	}
	return nil
}

// Warnings returns non-fatal configuration oddities for startup logging.
func (c *Config) Warnings() []string {
	var w []string
	if c.Soil.DryRaw == c.Soil.WetRaw {
		w = append(w, fmt.Sprintf("soil: dry_raw == wet_raw (%d); percent is pinned to 0 and AUTO will never turn the pump on", c.Soil.DryRaw))
	}
	if !c.Tank.Enabled {
		w = append(w, "tank: protection disabled; the pump can run against an empty tank")
	}
	if !c.Tank.HoldLockoutOnTimeout && c.Tank.Enabled {
		w = append(w, "tank: fail-open lockout policy selected; a dead sensor clears the lockout")
	}
	return w
}
