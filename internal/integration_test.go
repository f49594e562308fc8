package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/pump-controller/internal/hw"
	"github.com/sweeney/pump-controller/internal/logic"
	"github.com/sweeney/pump-controller/internal/mqtt"
	"github.com/sweeney/pump-controller/internal/sensor"
	"github.com/sweeney/pump-controller/internal/status"
)

// The integration tests drive the whole pipeline — fake hardware through
// the sensor layer into the arbiter and out to the relay and MQTT fakes —
// the same way the daemon's control loop does, with a simulated clock.

const tick = 10 * time.Second

var start = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func windows() logic.Windows {
	return logic.Windows{
		OnPercent:  30,
		OffPercent: 45,
		MinOn:      15 * time.Second,
		MinOff:     30 * time.Second,
		DryHold:    5 * time.Second,
	}
}

// rig wires fakes into the real sensor and logic layers. Soil calibration
// maps raw = 100 - percent (dry_raw=100, wet_raw=0, alpha=1).
type rig struct {
	t     *testing.T
	soil  *sensor.SoilReader
	tank  *sensor.TankMonitor
	relay *hw.FakeRelay
	pub   *mqtt.FakePublisher
	arb   *logic.Arbiter

	lastSoil logic.SoilSample
	lockout  bool
	step     int
}

func newRig(t *testing.T, raws []int, echoes []hw.Echo) *rig {
	filter := logic.NewSoilFilter(1.0, 100, 0)
	return &rig{
		t:     t,
		soil:  sensor.NewSoilReader(hw.NewFakeADC(raws), filter, 1, 0),
		tank:  sensor.NewTankMonitor(hw.NewFakeRanger(echoes), 1, 0, 0, 8.0, logic.PolicyHold),
		relay: hw.NewFakeRelay(),
		pub:   mqtt.NewFakePublisher(),
		arb:   logic.NewArbiter(windows(), start),
	}
}

func rawsForPercents(pcts ...int) []int {
	raws := make([]int, len(pcts))
	for i, p := range pcts {
		raws[i] = 100 - p
	}
	return raws
}

// tick runs one control iteration, applying any transition to the relay
// and publisher exactly as the daemon does.
func (r *rig) tick() *logic.Transition {
	r.t.Helper()
	r.step++
	now := start.Add(time.Duration(r.step) * tick)

	sample, err := r.soil.Read()
	if err != nil {
		r.t.Fatalf("step %d: soil read: %v", r.step, err)
	}
	r.lastSoil = sample

	_, r.lockout = r.tank.Read()

	tr := r.arb.Tick(logic.Input{Percent: sample.Percent, Lockout: r.lockout, Time: now})
	if tr != nil {
		if err := r.relay.Set(tr.On); err != nil {
			r.t.Fatalf("step %d: relay: %v", r.step, err)
		}
		event := mqtt.PumpEvent{
			Timestamp: tr.Timestamp,
			On:        tr.On,
			Reason:    tr.Reason,
			Mode:      r.arb.Mode(),
			SoilPct:   sample.Percent,
			TankEmpty: r.lockout,
		}
		if err := r.pub.PublishPump(event); err != nil {
			r.t.Fatalf("step %d: publish: %v", r.step, err)
		}
	}
	return tr
}

func (r *rig) run(n int) {
	for i := 0; i < n; i++ {
		r.tick()
	}
}

func TestIntegrationFullIrrigationCycle(t *testing.T) {
	// Soil: in-band, then dry for three ticks, then recovered. The dry-hold
	// (5s) is satisfied one tick after onset; the minimum-off window (30s,
	// stamped at start) opens on tick 3; the minimum-on window (15s) has
	// elapsed when the wet reading arrives on tick 5.
	raws := rawsForPercents(50, 20, 20, 20, 50)
	r := newRig(t, raws, []hw.Echo{{Cm: 4.0}})

	r.run(5)

	if len(r.pub.PumpEvents) != 2 {
		t.Fatalf("pump events: got %d, want 2", len(r.pub.PumpEvents))
	}

	on := r.pub.PumpEvents[0]
	if !on.On || on.Reason != logic.ReasonDryHold {
		t.Errorf("event 0: got on=%v reason=%s, want on/DRY_HOLD", on.On, on.Reason)
	}
	if want := start.Add(3 * tick); !on.Timestamp.Equal(want) {
		t.Errorf("event 0 timestamp: got %v, want %v", on.Timestamp, want)
	}

	off := r.pub.PumpEvents[1]
	if off.On || off.Reason != logic.ReasonRecovered {
		t.Errorf("event 1: got on=%v reason=%s, want off/RECOVERED", off.On, off.Reason)
	}
	if want := start.Add(5 * tick); !off.Timestamp.Equal(want) {
		t.Errorf("event 1 timestamp: got %v, want %v", off.Timestamp, want)
	}

	wantHistory := []bool{true, false}
	if len(r.relay.History) != 2 || r.relay.History[0] != true || r.relay.History[1] != false {
		t.Errorf("relay history: got %v, want %v", r.relay.History, wantHistory)
	}

	counts := r.arb.Counts()
	if counts.PumpOn != 1 || counts.PumpOff != 1 || counts.Lockouts != 0 {
		t.Errorf("counts: got %+v", counts)
	}
}

func TestIntegrationLockoutInterruptsAndRecovers(t *testing.T) {
	// Dry soil throughout. The pump starts on tick 3, the tank reads empty
	// on tick 4 (lockout OFF, min-on ignored), stays empty through tick 5,
	// refills on tick 6, and the pump restarts on tick 7 once the dry-hold
	// and minimum-off windows are satisfied again.
	raws := rawsForPercents(20)
	echoes := []hw.Echo{
		{Cm: 4.0}, {Cm: 4.0}, {Cm: 4.0},
		{Cm: 9.0}, {Cm: 9.0},
		{Cm: 4.0}, {Cm: 4.0},
	}
	r := newRig(t, raws, echoes)

	r.run(7)

	if len(r.pub.PumpEvents) != 3 {
		t.Fatalf("pump events: got %d, want 3", len(r.pub.PumpEvents))
	}

	wantReasons := []logic.Reason{logic.ReasonDryHold, logic.ReasonLockout, logic.ReasonDryHold}
	wantOn := []bool{true, false, true}
	for i := range wantReasons {
		ev := r.pub.PumpEvents[i]
		if ev.Reason != wantReasons[i] || ev.On != wantOn[i] {
			t.Errorf("event %d: got on=%v reason=%s, want on=%v reason=%s",
				i, ev.On, ev.Reason, wantOn[i], wantReasons[i])
		}
	}

	// The lockout OFF fired one tick after the ON, well inside min-on.
	onAt := r.pub.PumpEvents[0].Timestamp
	offAt := r.pub.PumpEvents[1].Timestamp
	if offAt.Sub(onAt) >= windows().MinOn {
		t.Errorf("lockout should have ignored the minimum-on window (ran %v)", offAt.Sub(onAt))
	}

	if r.arb.Counts().Lockouts != 1 {
		t.Errorf("lockout count: got %d, want 1", r.arb.Counts().Lockouts)
	}
}

func TestIntegrationSensorDropoutHoldsLockout(t *testing.T) {
	// The tank reads empty once and then goes silent. Under the hold
	// policy the lockout persists, so dry soil never starts the pump.
	raws := rawsForPercents(20)
	echoes := []hw.Echo{{Cm: 9.0}, {Timeout: true}}
	r := newRig(t, raws, echoes)

	r.run(8)

	if len(r.pub.PumpEvents) != 0 {
		t.Fatalf("pump events: got %d, want 0", len(r.pub.PumpEvents))
	}
	if !r.tank.Lockout() {
		t.Error("lockout should be held across echo timeouts")
	}
}

func TestIntegrationManualOverride(t *testing.T) {
	// Wet soil: AUTO would never start the pump. A manual ON runs it
	// regardless; subsequent AUTO ticks must not touch it while MANUAL.
	raws := rawsForPercents(60)
	r := newRig(t, raws, []hw.Echo{{Cm: 4.0}})

	r.run(2)
	if len(r.pub.PumpEvents) != 0 {
		t.Fatalf("pump events before override: got %d", len(r.pub.PumpEvents))
	}

	now := start.Add(time.Duration(r.step) * tick)
	tr := r.arb.SetManual(true, now)
	if tr == nil || !tr.On || tr.Reason != logic.ReasonManual {
		t.Fatalf("manual transition: got %+v", tr)
	}
	r.relay.Set(true)

	r.run(3)
	if !r.arb.PumpState().On {
		t.Error("pump must stay on in MANUAL despite wet soil")
	}

	// Back to AUTO: the next tick sees wet-enough soil, and the manual
	// stamp is old enough that the minimum-on window has elapsed.
	r.arb.SetMode(logic.ModeAuto)
	tr = r.tick()
	if tr == nil || tr.On || tr.Reason != logic.ReasonRecovered {
		t.Fatalf("after AUTO restore: got %+v", tr)
	}
}

func TestIntegrationManualIgnoresLockout(t *testing.T) {
	// The operator can run the pump with the tank reading empty; AUTO
	// cannot. Switching back to AUTO applies the lockout on the next tick.
	raws := rawsForPercents(60)
	r := newRig(t, raws, []hw.Echo{{Cm: 9.0}})

	r.tick() // asserts the lockout
	if !r.tank.Lockout() {
		t.Fatal("expected lockout")
	}

	now := start.Add(time.Duration(r.step) * tick)
	r.arb.SetManual(true, now)
	if !r.arb.PumpState().On {
		t.Fatal("manual ON should apply under lockout")
	}

	r.arb.SetMode(logic.ModeAuto)
	tr := r.tick()
	if tr == nil || tr.On || tr.Reason != logic.ReasonLockout {
		t.Fatalf("expected LOCKOUT off after AUTO restore, got %+v", tr)
	}
}

func TestIntegrationTelemetryContract(t *testing.T) {
	// The flat JSON telemetry is what the farm web application polls; the
	// field names are load-bearing.
	raws := rawsForPercents(20, 20, 20)
	r := newRig(t, raws, []hw.Echo{{Cm: 4.0}})
	r.run(3) // ends with the pump on

	tracker := status.NewTracker(start, status.Config{
		TickMs:     10000,
		OnPercent:  30,
		OffPercent: 45,
		Broker:     "tcp://192.168.1.200:1883",
	})
	tracker.Update(r.arb.Mode(), r.arb.PumpState(), r.lastSoil, true,
		logic.TankReading{DistanceCm: 4.0, Valid: true}, r.lockout,
		2800, r.arb.Counts())

	var got map[string]any
	if err := json.Unmarshal(status.FormatJSON(tracker.Snapshot()), &got); err != nil {
		t.Fatalf("telemetry not valid JSON: %v", err)
	}

	if got["pump_on"] != true {
		t.Errorf("pump_on: got %v, want true", got["pump_on"])
	}
	if got["auto_mode"] != true {
		t.Errorf("auto_mode: got %v, want true", got["auto_mode"])
	}
	if got["soil_pct"] != float64(20) {
		t.Errorf("soil_pct: got %v, want 20", got["soil_pct"])
	}
	if got["soil_raw"] != float64(80) {
		t.Errorf("soil_raw: got %v, want 80", got["soil_raw"])
	}
	if got["ultrasonic_cm"] != float64(4) {
		t.Errorf("ultrasonic_cm: got %v, want 4", got["ultrasonic_cm"])
	}
	if got["tank_empty"] != false {
		t.Errorf("tank_empty: got %v, want false", got["tank_empty"])
	}
	if got["soil_threshold_raw"] != float64(2800) {
		t.Errorf("soil_threshold_raw: got %v, want 2800", got["soil_threshold_raw"])
	}

	counts, ok := got["event_counts"].(map[string]any)
	if !ok {
		t.Fatalf("event_counts missing: %v", got["event_counts"])
	}
	if counts["pump_on"] != float64(1) {
		t.Errorf("event_counts.pump_on: got %v, want 1", counts["pump_on"])
	}
}

func TestIntegrationPumpEventPayload(t *testing.T) {
	raws := rawsForPercents(20, 20, 20)
	r := newRig(t, raws, []hw.Echo{{Cm: 4.0}})
	r.run(3)

	if len(r.pub.PumpPayloads) != 1 {
		t.Fatalf("pump payloads: got %d, want 1", len(r.pub.PumpPayloads))
	}

	var got mqtt.Payload
	if err := json.Unmarshal(r.pub.PumpPayloads[0], &got); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if got.Pump.State != "ON" || got.Pump.Reason != "DRY_HOLD" || got.Pump.Mode != "AUTO" {
		t.Errorf("payload: got %+v", got.Pump)
	}
}
