package logic

import (
	"testing"
	"time"
)

func testWindows() Windows {
	return Windows{
		OnPercent:  30,
		OffPercent: 45,
		MinOn:      15 * time.Second,
		MinOff:     30 * time.Second,
		DryHold:    5 * time.Second,
	}
}

// newTestMachine returns a machine and a pump that turned off at start.
func newTestMachine(start time.Time) (*Machine, *Pump) {
	m := NewMachine(testWindows())
	p := &Pump{}
	p.Set(false, start)
	return m, p
}

var t0 = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func TestOffToOnAfterDryHold(t *testing.T) {
	m, p := newTestMachine(t0)
	start := t0.Add(time.Minute) // min-off long elapsed

	// Dry condition appears and is sustained.
	if tr := m.Evaluate(p, Input{Percent: 20, Time: start}); tr != nil {
		t.Fatalf("expected no transition at dry onset, got %+v", tr)
	}
	if tr := m.Evaluate(p, Input{Percent: 20, Time: start.Add(4 * time.Second)}); tr != nil {
		t.Fatalf("expected no transition before dry-hold elapses, got %+v", tr)
	}

	tr := m.Evaluate(p, Input{Percent: 20, Time: start.Add(5 * time.Second)})
	if tr == nil {
		t.Fatal("expected ON transition after dry-hold window")
	}
	if !tr.On || tr.Reason != ReasonDryHold {
		t.Errorf("transition: got %+v, want ON/DRY_HOLD", tr)
	}
	if !p.On {
		t.Error("pump should be ON")
	}
	if !p.OnSince.Equal(start.Add(5 * time.Second)) {
		t.Errorf("OnSince: got %v, want %v", p.OnSince, start.Add(5*time.Second))
	}
	if !p.OffSince.IsZero() {
		t.Errorf("OffSince should be cleared, got %v", p.OffSince)
	}
}

func TestDryBlipDoesNotTrigger(t *testing.T) {
	m, p := newTestMachine(t0)
	start := t0.Add(time.Minute)

	// Dry for just under the hold window, then a wet blip.
	m.Evaluate(p, Input{Percent: 20, Time: start})
	m.Evaluate(p, Input{Percent: 20, Time: start.Add(5*time.Second - time.Millisecond)})
	m.Evaluate(p, Input{Percent: 50, Time: start.Add(5 * time.Second)})
	if p.On {
		t.Fatal("pump must not turn ON after an interrupted dry condition")
	}

	// The timer restarted: another 5s of dry is needed from the re-onset.
	m.Evaluate(p, Input{Percent: 20, Time: start.Add(6 * time.Second)})
	if tr := m.Evaluate(p, Input{Percent: 20, Time: start.Add(10 * time.Second)}); tr != nil {
		t.Fatalf("expected no transition 4s after re-onset, got %+v", tr)
	}
	tr := m.Evaluate(p, Input{Percent: 20, Time: start.Add(11 * time.Second)})
	if tr == nil || !tr.On {
		t.Error("expected ON transition 5s after dry re-onset")
	}
}

func TestOffToOnGatedByMinOff(t *testing.T) {
	m, p := newTestMachine(t0)

	// Dry from the start; dry-hold elapses at t0+5s but min-off (30s from
	// t0) has not.
	m.Evaluate(p, Input{Percent: 20, Time: t0})
	if tr := m.Evaluate(p, Input{Percent: 20, Time: t0.Add(10 * time.Second)}); tr != nil {
		t.Fatalf("min-off window not elapsed, got %+v", tr)
	}
	tr := m.Evaluate(p, Input{Percent: 20, Time: t0.Add(30 * time.Second)})
	if tr == nil || !tr.On {
		t.Error("expected ON transition once min-off elapsed")
	}
}

func TestNoTransitionInsideHysteresisBand(t *testing.T) {
	// Strictly inside (OnPercent, OffPercent) nothing moves, in either state.
	m, p := newTestMachine(t0)
	for i := 0; i < 100; i++ {
		if tr := m.Evaluate(p, Input{Percent: 37, Time: t0.Add(time.Duration(i) * time.Minute)}); tr != nil {
			t.Fatalf("OFF pump moved inside the band: %+v", tr)
		}
	}

	p.Set(true, t0)
	for i := 0; i < 100; i++ {
		if tr := m.Evaluate(p, Input{Percent: 37, Time: t0.Add(time.Duration(i) * time.Minute)}); tr != nil {
			t.Fatalf("ON pump moved inside the band: %+v", tr)
		}
	}
}

func TestBoundariesAreInclusive(t *testing.T) {
	// percent == OnPercent counts as dry.
	m, p := newTestMachine(t0)
	start := t0.Add(time.Minute)
	m.Evaluate(p, Input{Percent: 30, Time: start})
	tr := m.Evaluate(p, Input{Percent: 30, Time: start.Add(5 * time.Second)})
	if tr == nil || !tr.On {
		t.Error("percent at OnPercent should count as dry and trigger ON")
	}

	// percent == OffPercent counts as wet-enough.
	m, p = newTestMachine(t0)
	p.Set(true, t0)
	tr = m.Evaluate(p, Input{Percent: 45, Time: t0.Add(15 * time.Second)})
	if tr == nil || tr.On {
		t.Error("percent at OffPercent should count as wet-enough and trigger OFF")
	}
}

func TestMinimumRunTime(t *testing.T) {
	m, p := newTestMachine(t0)
	p.Set(true, t0)

	// Wet-enough reading arrives at t=5s with min-on of 15s: stays ON.
	if tr := m.Evaluate(p, Input{Percent: 60, Time: t0.Add(5 * time.Second)}); tr != nil {
		t.Fatalf("pump must honor the minimum-on window, got %+v", tr)
	}
	if tr := m.Evaluate(p, Input{Percent: 60, Time: t0.Add(14 * time.Second)}); tr != nil {
		t.Fatalf("pump must honor the minimum-on window, got %+v", tr)
	}

	// Sustained through t=15s: turns OFF.
	tr := m.Evaluate(p, Input{Percent: 60, Time: t0.Add(15 * time.Second)})
	if tr == nil {
		t.Fatal("expected OFF transition once min-on elapsed")
	}
	if tr.On || tr.Reason != ReasonRecovered {
		t.Errorf("transition: got %+v, want OFF/RECOVERED", tr)
	}
	if !p.OffSince.Equal(t0.Add(15 * time.Second)) {
		t.Errorf("OffSince: got %v, want %v", p.OffSince, t0.Add(15*time.Second))
	}
	if !p.OnSince.IsZero() {
		t.Errorf("OnSince should be cleared, got %v", p.OnSince)
	}
}

func TestLockoutPreemptsMinimumRunTime(t *testing.T) {
	m, p := newTestMachine(t0)
	p.Set(true, t0)

	// 2s into a 15s minimum run, tank goes empty: OFF immediately.
	tr := m.Evaluate(p, Input{Percent: 10, Lockout: true, Time: t0.Add(2 * time.Second)})
	if tr == nil {
		t.Fatal("lockout must force OFF immediately")
	}
	if tr.On || tr.Reason != ReasonLockout {
		t.Errorf("transition: got %+v, want OFF/LOCKOUT", tr)
	}
	if p.On {
		t.Error("pump should be OFF")
	}
}

func TestLockoutBlocksTurnOn(t *testing.T) {
	m, p := newTestMachine(t0)
	start := t0.Add(time.Minute)

	// Dry sustained well past both windows, but under lockout.
	for i := 0; i <= 20; i++ {
		if tr := m.Evaluate(p, Input{Percent: 10, Lockout: true, Time: start.Add(time.Duration(i) * time.Second)}); tr != nil {
			t.Fatalf("pump must not turn ON under lockout, got %+v", tr)
		}
	}

	// Tank refills: the dry-hold timer kept running, so the next tick fires.
	tr := m.Evaluate(p, Input{Percent: 10, Lockout: false, Time: start.Add(21 * time.Second)})
	if tr == nil || !tr.On {
		t.Error("expected ON transition on the first tick after lockout cleared")
	}
}

func TestLockoutWithPumpOffTakesNoAction(t *testing.T) {
	m, p := newTestMachine(t0)

	// Wet soil, lockout asserted, pump already OFF: nothing to do.
	for i := 0; i < 10; i++ {
		if tr := m.Evaluate(p, Input{Percent: 80, Lockout: true, Time: t0.Add(time.Duration(i) * time.Minute)}); tr != nil {
			t.Fatalf("expected no transition, got %+v", tr)
		}
	}
	if p.On {
		t.Error("pump should remain OFF")
	}
}

func TestTransitionClearsDryHold(t *testing.T) {
	m, p := newTestMachine(t0)
	start := t0.Add(time.Minute)

	m.Evaluate(p, Input{Percent: 20, Time: start})
	m.Evaluate(p, Input{Percent: 20, Time: start.Add(5 * time.Second)})
	if !p.On {
		t.Fatal("expected pump ON")
	}
	if active, _ := m.DryHoldActive(); active {
		t.Error("dry-hold must be cleared by the transition")
	}
}
