// Package status provides a thread-safe telemetry tracker for the
// pump-controller daemon. The control loop writes it once per tick; HTTP
// handlers and the MQTT heartbeat read point-in-time snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pump-controller/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Climate is an optional temperature/humidity reading.
type Climate struct {
	TempC       float64
	HumidityPct float64
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	DryHoldMs   int64
	MinOnMs     int64
	MinOffMs    int64
	OnPercent   int
	OffPercent  int
	TankEmptyCm float64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Mode logic.Mode
	Pump logic.Pump

	// Soil is the latest filtered sample; SoilValid is false until the
	// first successful acquisition.
	Soil      logic.SoilSample
	SoilValid bool

	Tank    logic.TankReading
	Lockout bool

	LegacyThresholdRaw int
	Counts             logic.TransitionCounts
	Climate            *Climate

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Mode:      logic.ModeAuto,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the control state. Called from the control loop on every tick
// and after every applied command.
func (t *Tracker) Update(mode logic.Mode, pump logic.Pump, soil logic.SoilSample, soilValid bool, tank logic.TankReading, lockout bool, legacyRaw int, counts logic.TransitionCounts) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.snap.Pump = pump
	t.snap.Soil = soil
	t.snap.SoilValid = soilValid
	t.snap.Tank = tank
	t.snap.Lockout = lockout
	t.snap.LegacyThresholdRaw = legacyRaw
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetClimate sets the latest climate reading.
func (t *Tracker) SetClimate(c Climate) {
	t.mu.Lock()
	t.snap.Climate = &c
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
