package sensor

import (
	"errors"
	"log"
	"time"

	"github.com/sweeney/pump-controller/internal/hw"
	"github.com/sweeney/pump-controller/internal/logic"
)

// TankMonitor aggregates several ultrasonic pulses into one filtered
// distance and holds the derived lockout state across ticks.
type TankMonitor struct {
	ranger  hw.Ranger
	pulses  int
	spacing time.Duration
	emptyCm float64
	policy  logic.LockoutPolicy
	timeout time.Duration

	lockout bool
	sleep   func(time.Duration)
}

// NewTankMonitor creates a monitor taking `pulses` measurements per call
// with `spacing` between them. pulseTimeout is only used for the blocking
// time estimate; the ranger enforces its own timeout.
func NewTankMonitor(ranger hw.Ranger, pulses int, spacing, pulseTimeout time.Duration, emptyCm float64, policy logic.LockoutPolicy) *TankMonitor {
	if pulses < 1 {
		pulses = 1
	}
	return &TankMonitor{
		ranger:  ranger,
		pulses:  pulses,
		spacing: spacing,
		emptyCm: emptyCm,
		policy:  policy,
		timeout: pulseTimeout,
		sleep:   time.Sleep,
	}
}

// Read fires the configured number of pulses, discards the ones that timed
// out, and returns the mean of the valid distances along with the updated
// lockout state. When every pulse times out the reading is invalid and the
// lockout policy decides what happens to the flag.
func (m *TankMonitor) Read() (logic.TankReading, bool) {
	var sum float64
	var valid int
	for i := 0; i < m.pulses; i++ {
		d, err := m.ranger.MeasureDistanceCm()
		switch {
		case err == nil:
			sum += d
			valid++
		case errors.Is(err, hw.ErrNoEcho):
			// Expected degraded-signal condition; drop the sample.
		default:
			log.Printf("tank: measure error: %v", err)
		}
		if i < m.pulses-1 {
			m.sleep(m.spacing)
		}
	}

	var reading logic.TankReading
	if valid > 0 {
		reading = logic.TankReading{DistanceCm: sum / float64(valid), Valid: true}
	}

	m.lockout = logic.DeriveLockout(reading, m.lockout, m.emptyCm, m.policy)
	return reading, m.lockout
}

// Lockout returns the current lockout state without measuring.
func (m *TankMonitor) Lockout() bool { return m.lockout }

// BlockingTime returns the worst-case time one Read can block: every pulse
// runs to its timeout, plus the spacing sleeps.
func (m *TankMonitor) BlockingTime() time.Duration {
	return time.Duration(m.pulses)*m.timeout + time.Duration(m.pulses-1)*m.spacing
}
