// soar/engine_test.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package soar

import (
	"testing"

	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/rand"
	"github.com/avsoar/soarnav/vehicle"
)

var testHome = math.Point2LL{-119.5, 44.25}

// fakeVehicle implements Backend and RC with settable state.
type fakeVehicle struct {
	pos    math.Point2LL
	fix    bool
	yaw    float32
	alt    float32
	home   math.Point2LL
	homeOK bool
	wind   [2]float32
	windOK bool
	armed  bool
	mode   vehicle.FlightMode
	soarOn bool
	ms     int64

	pitch, roll, yawStick float32

	overrideSet bool
	overridePWM uint16

	yawPanics bool
}

func newFakeVehicle() *fakeVehicle {
	return &fakeVehicle{
		pos: testHome, fix: true, alt: 250,
		home: testHome, homeOK: true,
		windOK: true, armed: true,
		mode: vehicle.ModeFlyByWireB, soarOn: true,
	}
}

func (v *fakeVehicle) Position() (math.Point2LL, bool) { return v.pos, v.fix }
func (v *fakeVehicle) Yaw() float32 {
	if v.yawPanics {
		panic("yaw estimator exploded")
	}
	return v.yaw
}
func (v *fakeVehicle) RelativeAltitude() float32   { return v.alt }
func (v *fakeVehicle) Home() (math.Point2LL, bool) { return v.home, v.homeOK }
func (v *fakeVehicle) Wind() ([2]float32, bool)    { return v.wind, v.windOK }
func (v *fakeVehicle) Armed() bool                 { return v.armed }
func (v *fakeVehicle) Mode() vehicle.FlightMode    { return v.mode }
func (v *fakeVehicle) SoaringActive() bool         { return v.soarOn }
func (v *fakeVehicle) Millis() int64               { return v.ms }
func (v *fakeVehicle) PitchNorm() float32          { return v.pitch }
func (v *fakeVehicle) RollNorm() float32           { return v.roll }
func (v *fakeVehicle) YawNorm() float32            { return v.yawStick }
func (v *fakeVehicle) RollLimits() vehicle.RollChannelLimits {
	return vehicle.RollChannelLimits{Min: 1000, Trim: 1500, Max: 2000}
}
func (v *fakeVehicle) SetRollOverride(pwm uint16) { v.overrideSet, v.overridePWM = true, pwm }
func (v *fakeVehicle) ClearRollOverride()         { v.overrideSet = false }

func newTestEngine(fv *fakeVehicle, params vehicle.MapParams) *Engine {
	r := rand.New()
	r.Seed(99)
	return New(Options{Backend: fv, RC: fv, Params: params, Rand: r})
}

// tickN runs n engine ticks, advancing the fake clock by the returned
// delay each time.
func tickN(e *Engine, fv *fakeVehicle, n int) {
	for i := 0; i < n; i++ {
		d := e.Update()
		fv.ms += d.Milliseconds()
	}
}

func TestIdleToNavigatingAndSteering(t *testing.T) {
	fv := newFakeVehicle()
	e := newTestEngine(fv, vehicle.DefaultParams())

	tickN(e, fv, 2)
	if e.State() != StateNavigating {
		t.Fatalf("state %s after conditions met, expected NAVIGATING", e.State())
	}

	tickN(e, fv, 30)
	if !fv.overrideSet {
		t.Errorf("no roll override commanded while navigating")
	}
	if fv.overridePWM < 1000 || fv.overridePWM > 2000 {
		t.Errorf("override pwm %d outside receiver envelope", fv.overridePWM)
	}

	// An arrival on the final tick clears the target until the next
	// selection; allow a couple of ticks for a live one.
	st := e.Status()
	for i := 0; i < 5 && st.Target == nil; i++ {
		tickN(e, fv, 1)
		st = e.Status()
	}
	if !st.GridReady {
		t.Errorf("grid not built after 30 ticks")
	}
	if st.Target == nil {
		t.Errorf("no live target in status")
	}
}

func TestDisabledIdlesSlowly(t *testing.T) {
	fv := newFakeVehicle()
	params := vehicle.DefaultParams()
	params[vehicle.ParamEnable] = 0
	e := newTestEngine(fv, params)

	if d := e.Update(); d != tickDisabled {
		t.Errorf("disabled delay %v, expected %v", d, tickDisabled)
	}
	if e.State() != StateIdle {
		t.Errorf("state %s while disabled", e.State())
	}
}

func TestBadConfigIsTerminalUntilReenable(t *testing.T) {
	fv := newFakeVehicle()
	params := vehicle.DefaultParams()
	params[vehicle.ParamRadius] = -10
	e := newTestEngine(fv, params)

	if d := e.Update(); d != tickError {
		t.Fatalf("error delay %v, expected %v", d, tickError)
	}
	if e.State() != StateError {
		t.Fatalf("state %s after bad config", e.State())
	}

	// Fixing the parameter alone is not enough; enable must cycle.
	params[vehicle.ParamRadius] = 600
	tickN(e, fv, 3)
	if e.State() != StateError {
		t.Fatalf("left ERROR without enable cycle")
	}

	params[vehicle.ParamEnable] = 0
	tickN(e, fv, 1)
	params[vehicle.ParamEnable] = 1
	tickN(e, fv, 2)
	if e.State() == StateError {
		t.Errorf("enable cycle did not clear ERROR")
	}
}

func TestPositionFixLoss(t *testing.T) {
	fv := newFakeVehicle()
	e := newTestEngine(fv, vehicle.DefaultParams())
	tickN(e, fv, 2)

	fv.fix = false
	tickN(e, fv, maxFixFailures)
	if e.State() != StateError {
		t.Errorf("state %s after sustained fix loss", e.State())
	}
}

func TestFixFailureCounterRecovers(t *testing.T) {
	fv := newFakeVehicle()
	e := newTestEngine(fv, vehicle.DefaultParams())
	tickN(e, fv, 2)

	// Intermittent dropouts never accumulate to the threshold.
	for i := 0; i < 40; i++ {
		fv.fix = i%2 == 0
		tickN(e, fv, 1)
	}
	if e.State() == StateError {
		t.Errorf("intermittent fix dropouts escalated to ERROR")
	}
}

func TestPilotOverrideAndResume(t *testing.T) {
	fv := newFakeVehicle()
	e := newTestEngine(fv, vehicle.DefaultParams())
	tickN(e, fv, 5)
	if e.State() != StateNavigating {
		t.Fatalf("setup: state %s", e.State())
	}

	fv.pitch = 0.5
	tickN(e, fv, 1)
	if e.State() != StatePilotOverride {
		t.Fatalf("state %s on pilot input", e.State())
	}
	if fv.overrideSet {
		t.Errorf("roll override still set during pilot override")
	}

	// Centered sticks resume after the delay.
	fv.pitch = 0
	tickN(e, fv, 25) // 5s of 200ms ticks
	if e.State() != StateNavigating {
		t.Errorf("state %s after centered sticks, expected NAVIGATING", e.State())
	}
}

func TestThermalPauseAndCapture(t *testing.T) {
	fv := newFakeVehicle()
	e := newTestEngine(fv, vehicle.DefaultParams())
	tickN(e, fv, 20) // navigating, grid built

	fv.mode = vehicle.ModeThermal
	start := fv.alt
	for i := 0; i < 50; i++ { // 10s climbing at 2 m/s
		fv.alt += 0.4
		tickN(e, fv, 1)
	}
	if e.State() != StateThermalPause {
		t.Fatalf("state %s while thermalling", e.State())
	}
	if fv.alt-start < 15 {
		t.Fatalf("test setup: climbed only %.1f m", fv.alt-start)
	}

	fv.mode = vehicle.ModeFlyByWireB
	tickN(e, fv, 2)
	st := e.Status()
	if len(st.Hotspots) != 1 {
		t.Fatalf("%d hotspots after climb, expected 1", len(st.Hotspots))
	}
	h := st.Hotspots[0]
	if h.AvgStrength < 1 || h.AvgStrength > 3 {
		t.Errorf("captured strength %.2f, expected ~2 m/s", h.AvgStrength)
	}

	// THERMAL_PAUSE exits through IDLE and re-enters NAVIGATING.
	if e.State() != StateNavigating {
		t.Errorf("state %s after thermal exit", e.State())
	}
}

func TestPanicConvertsToBackoff(t *testing.T) {
	fv := newFakeVehicle()
	e := newTestEngine(fv, vehicle.DefaultParams())
	tickN(e, fv, 2)

	fv.yawPanics = true
	if d := e.Update(); d != tickError {
		t.Errorf("panic delay %v, expected %v", d, tickError)
	}
	if fv.overrideSet {
		t.Errorf("roll override left set after fault")
	}

	fv.yawPanics = false
	fv.ms += tickError.Milliseconds()
	tickN(e, fv, 2)
	if e.State() != StateNavigating {
		t.Errorf("loop did not recover after fault: %s", e.State())
	}
}

func TestStatusIsDetachedCopy(t *testing.T) {
	fv := newFakeVehicle()
	e := newTestEngine(fv, vehicle.DefaultParams())
	tickN(e, fv, 5)

	st := e.Status()
	for i := 0; i < 5 && st.Target == nil; i++ {
		tickN(e, fv, 1)
		st = e.Status()
	}
	if st.Target == nil {
		t.Fatalf("no target in status")
	}
	saved := st.Target.Position
	tickN(e, fv, 1)
	if st.Target.Position != saved {
		t.Errorf("status snapshot aliases live engine state")
	}
}
