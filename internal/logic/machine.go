package logic

import "time"

// Machine is the hysteresis/debounce state machine. It decides pump
// transitions from the current pump state, soil percent, lockout flag and
// elapsed-time windows. It is only evaluated while the controller is in
// AUTO mode.
type Machine struct {
	win Windows

	// drySince marks the start of a continuously-sustained dry condition.
	// Unset (dryActive false) whenever the condition is not true.
	drySince  time.Time
	dryActive bool
}

// NewMachine creates a state machine with the given windows.
func NewMachine(win Windows) *Machine {
	return &Machine{win: win}
}

// Evaluate runs one tick of the state machine against the pump actuator.
// It mutates the pump on a transition (stamping the entering-state
// timestamp) and returns the transition, or nil when nothing changed.
//
// Boundary conditions are inclusive: percent == OnPercent counts as dry,
// percent == OffPercent counts as wet-enough.
func (m *Machine) Evaluate(p *Pump, in Input) *Transition {
	if p.On {
		return m.evaluateOn(p, in)
	}
	return m.evaluateOff(p, in)
}

func (m *Machine) evaluateOn(p *Pump, in Input) *Transition {
	// Safety override: lockout forces OFF unconditionally, ignoring the
	// minimum-on window.
	if in.Lockout {
		p.Set(false, in.Time)
		m.ClearDryHold()
		return &Transition{Timestamp: in.Time, On: false, Reason: ReasonLockout}
	}

	// Wet-enough recovery. The minimum-on window is never bypassed by
	// moisture alone.
	if in.Percent >= m.win.OffPercent && in.Time.Sub(p.OnSince) >= m.win.MinOn {
		p.Set(false, in.Time)
		m.ClearDryHold()
		return &Transition{Timestamp: in.Time, On: false, Reason: ReasonRecovered}
	}

	return nil
}

func (m *Machine) evaluateOff(p *Pump, in Input) *Transition {
	dry := in.Percent <= m.win.OnPercent
	if !dry {
		m.ClearDryHold()
		return nil
	}

	if !m.dryActive {
		m.dryActive = true
		m.drySince = in.Time
	}

	// The dry-hold timer keeps running under lockout so the pump can start
	// as soon as the tank refills, but the transition itself is blocked.
	if in.Lockout {
		return nil
	}
	if in.Time.Sub(m.drySince) < m.win.DryHold {
		return nil
	}
	if in.Time.Sub(p.OffSince) < m.win.MinOff {
		return nil
	}

	p.Set(true, in.Time)
	m.ClearDryHold()
	return &Transition{Timestamp: in.Time, On: true, Reason: ReasonDryHold}
}

// ClearDryHold unsets the dry-hold timer. Called on every transition,
// including manual ones applied outside the machine.
func (m *Machine) ClearDryHold() {
	m.dryActive = false
	m.drySince = time.Time{}
}

// DryHoldActive reports whether a dry condition is currently being timed,
// and since when.
func (m *Machine) DryHoldActive() (bool, time.Time) {
	return m.dryActive, m.drySince
}
