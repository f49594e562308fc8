package logic

import "time"

// Arbiter owns the controller mode and the single authoritative pump
// actuator. Automatic decisions (Tick) and operator commands (SetManual,
// SetMode) both go through it; callers must serialize access — the control
// loop is the single writer.
type Arbiter struct {
	mode    Mode
	pump    Pump
	machine *Machine
	counts  TransitionCounts

	// legacyRaw is the old firmware's raw soil threshold. Stored and echoed
	// back for the dashboard; AUTO decisions never read it.
	legacyRaw int
}

// NewArbiter creates an arbiter in AUTO mode with the pump OFF.
// The pump's off-timestamp is stamped with start, so the minimum-off
// window gates the very first turn-on.
func NewArbiter(win Windows, start time.Time) *Arbiter {
	a := &Arbiter{
		mode:    ModeAuto,
		machine: NewMachine(win),
	}
	a.pump.Set(false, start)
	return a
}

// Tick runs one evaluation of the state machine. In MANUAL mode it does
// nothing: the pump stays exactly as last commanded.
func (a *Arbiter) Tick(in Input) *Transition {
	if a.mode != ModeAuto {
		return nil
	}
	tr := a.machine.Evaluate(&a.pump, in)
	a.count(tr)
	return tr
}

// SetManual forces MANUAL mode and applies the requested pump state
// verbatim: no debounce, no lockout check — the operator is trusted to
// know the tank state. A same-state command re-stamps the entering-state
// timestamp ("run from now"); the returned transition is always non-nil
// so the command is observable downstream.
func (a *Arbiter) SetManual(on bool, now time.Time) *Transition {
	a.mode = ModeManual
	a.pump.Set(on, now)
	a.machine.ClearDryHold()
	tr := &Transition{Timestamp: now, On: on, Reason: ReasonManual}
	a.count(tr)
	return tr
}

// SetMode switches AUTO/MANUAL without touching pump state. Switching into
// AUTO does not re-evaluate anything; the next tick does.
func (a *Arbiter) SetMode(m Mode) {
	a.mode = m
}

// Mode returns the current controller mode.
func (a *Arbiter) Mode() Mode { return a.mode }

// PumpState returns a copy of the actuator state.
func (a *Arbiter) PumpState() Pump { return a.pump }

// SetLegacyThreshold stores the legacy raw threshold for display.
func (a *Arbiter) SetLegacyThreshold(raw int) { a.legacyRaw = raw }

// LegacyThreshold returns the stored legacy raw threshold.
func (a *Arbiter) LegacyThreshold() int { return a.legacyRaw }

// Counts returns the transition counts since startup.
func (a *Arbiter) Counts() TransitionCounts { return a.counts }

func (a *Arbiter) count(tr *Transition) {
	if tr == nil {
		return
	}
	if tr.On {
		a.counts.PumpOn++
	} else {
		a.counts.PumpOff++
	}
	if tr.Reason == ReasonLockout {
		a.counts.Lockouts++
	}
}
