// nav/nav_test.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	gomath "math"
	"testing"

	"github.com/avsoar/soarnav/area"
	"github.com/avsoar/soarnav/grid"
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/rand"
	"github.com/avsoar/soarnav/thermal"
	"github.com/avsoar/soarnav/vehicle"
)

var (
	testCenter = math.Point2LL{-119.5, 44.25}
	testArea   = area.NewCircle(testCenter, 2000)
)

func testConfig() Config {
	return Config{
		WPRadiusM:       50,
		GainP:           0.6,
		GainD:           0.05,
		RollLimitDeg:    30,
		AirframeRollDeg: 45,
		RollLimits:      vehicle.RollChannelLimits{Min: 1000, Trim: 1500, Max: 2000},
	}
}

func buildGrid(t *testing.T, a area.Area) *grid.Grid {
	t.Helper()
	g := grid.New(a, nil)
	for i := 0; i < 10000; i++ {
		if g.BuildStep() {
			return g
		}
	}
	t.Fatal("grid build did not complete")
	return nil
}

func seededRand(s int64) *rand.Rand {
	r := rand.New()
	r.Seed(s)
	return r
}

func TestEnergyHysteresis(t *testing.T) {
	// Band [100,400]: LOW boundary at 190, CRITICAL at 100, margin 5.
	var tr EnergyTracker

	transitions := 0
	prev := tr.State()
	for _, alt := range []float32{250, 200, 190, 186, 184, 180} {
		if s := tr.Update(alt, 100, 400); s != prev {
			transitions++
			prev = s
		}
	}
	if tr.State() != EnergyLow {
		t.Fatalf("descending through boundary: state %s", tr.State())
	}
	if transitions != 1 {
		t.Errorf("descent produced %d transitions, expected 1", transitions)
	}

	// Oscillating inside the hysteresis gap must not chatter.
	for _, alt := range []float32{188, 192, 187, 194, 186} {
		if s := tr.Update(alt, 100, 400); s != EnergyLow {
			t.Fatalf("state %s at %0.f m inside hysteresis gap", s, alt)
		}
	}

	// Recovery requires clearing the upper threshold.
	if s := tr.Update(194, 100, 400); s != EnergyLow {
		t.Errorf("returned to NORMAL below upper threshold")
	}
	if s := tr.Update(196, 100, 400); s != EnergyNormal {
		t.Errorf("state %s at 196 m, expected NORMAL", s)
	}
}

func TestEnergyCritical(t *testing.T) {
	var tr EnergyTracker
	tr.Update(120, 100, 400) // LOW
	if s := tr.Update(96, 100, 400); s != EnergyLow {
		t.Errorf("went CRITICAL inside hysteresis gap")
	}
	if s := tr.Update(94, 100, 400); s != EnergyCritical {
		t.Errorf("state %s below band minimum", s)
	}
	if s := tr.Update(104, 100, 400); s != EnergyCritical {
		t.Errorf("left CRITICAL below upper threshold")
	}
	if s := tr.Update(106, 100, 400); s != EnergyLow {
		t.Errorf("state %s after climbing clear of band minimum", s)
	}
}

func TestPDClampProperty(t *testing.T) {
	var c Controller
	for _, limit := range []float32{10, 30, 45} {
		c.Reset()
		for _, err := range []float32{-180, -90, -10, -0.5, 0, 0.5, 10, 90, 180, 179, -179} {
			roll := c.RollCommand(err, 0.9, 0.3, limit)
			if math.Abs(roll) > limit {
				t.Errorf("limit %f: error %f commanded roll %f", limit, err, roll)
			}
		}
	}
}

func TestPDSmoothingAsymmetry(t *testing.T) {
	var c Controller
	// A large step up is low-passed toward the previous command...
	first := c.RollCommand(20, 1, 0, 45)
	if math.Abs(first-2) > 0.01 { // 0.1 * (20*1 + 100*0)
		t.Errorf("growing command %f, expected smoothed 2.0", first)
	}
	// ...but a command shrinking in magnitude passes straight through.
	c.Reset()
	c.RollCommand(20, 1, 0, 45)
	second := c.RollCommand(1, 1, 0, 45) // raw 1 - 19*0 = 1, |1| < |2|
	if math.Abs(second-1) > 0.01 {
		t.Errorf("shrinking command %f, expected unfiltered 1.0", second)
	}
}

func TestRollToPWMEnvelope(t *testing.T) {
	lim := vehicle.RollChannelLimits{Min: 1100, Trim: 1520, Max: 1900}
	for _, roll := range []float32{-90, -45, -10, 0, 10, 45, 90} {
		pwm := RollToPWM(roll, 45, lim)
		if pwm < lim.Min || pwm > lim.Max {
			t.Errorf("roll %f: pwm %d outside [%d,%d]", roll, pwm, lim.Min, lim.Max)
		}
		if roll > 0 && pwm < lim.Trim {
			t.Errorf("roll %f mapped below trim (%d)", roll, pwm)
		}
		if roll < 0 && pwm > lim.Trim {
			t.Errorf("roll %f mapped above trim (%d)", roll, pwm)
		}
	}
	if pwm := RollToPWM(0, 45, lim); pwm != lim.Trim {
		t.Errorf("zero roll pwm %d, expected trim", pwm)
	}
	if pwm := RollToPWM(45, 45, lim); pwm != lim.Max {
		t.Errorf("full roll pwm %d, expected max", pwm)
	}
}

func TestSelectorLowEnergyReturn(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	wind := [2]float32{2, 0}
	h := thermal.Hotspot{Position: testCenter, CreatedMs: 0, AvgStrength: 2.0, Wind: wind}
	mem.Seed(h)
	g := buildGrid(t, testArea)
	s := NewSelector(nil, seededRand(1))

	nowMs := int64(60 * 1000)
	pos := math.Offset2LL(testCenter, 180, 1000)
	tgt, err := s.ChooseTarget(nowMs, pos, EnergyLow, mem, g, testArea, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tgt.Source != SourceThermalBest {
		t.Fatalf("source %s, expected thermal best", tgt.Source)
	}
	want := math.OffsetM2LL(testCenter, [2]float32{120, 0})
	if d := math.DistanceM(tgt.Position, want); d > 5 {
		t.Errorf("target %f m from drifted hotspot position", d)
	}
	if tgt.FromHotspotMs != h.CreatedMs || !tgt.RerouteArmed || tgt.InitialDistM < 500 {
		t.Errorf("commit bookkeeping wrong: %+v", tgt)
	}
}

func TestSelectorAltDrivenFallback(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil) // empty
	g := buildGrid(t, testArea)
	s := NewSelector(nil, seededRand(2))

	tgt, err := s.ChooseTarget(1000, testCenter, EnergyCritical, mem, g, testArea, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tgt.Source != SourceGridAltDriven {
		t.Errorf("source %s, expected alt-driven grid", tgt.Source)
	}
	if tgt.CellIndex == 0 || !testArea.Contains(tgt.Position) {
		t.Errorf("bad grid target: %+v", tgt)
	}
}

func TestSelectorGridNotReadyRandomFallback(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	g := grid.New(testArea, nil) // never built
	s := NewSelector(nil, seededRand(3))

	tgt, err := s.ChooseTarget(1000, testCenter, EnergyNormal, mem, g, testArea, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tgt.Source != SourceRandom {
		t.Errorf("source %s, expected random", tgt.Source)
	}
	if !testArea.Contains(tgt.Position) {
		t.Errorf("random fallback outside area")
	}
}

func TestSelectorGridExhaustionForcesGrid(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	g := buildGrid(t, area.NewCircle(testCenter, 400))
	r := seededRand(4)
	s := NewSelector(nil, r)

	for g.TakeRandomUnvisited(r) != 0 {
	}

	tgt, err := s.ChooseTarget(1000, testCenter, EnergyNormal, mem, g, testArea, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tgt.CellIndex == 0 {
		t.Errorf("exhausted grid did not reset and produce a cell target")
	}
	if !s.forceGrid {
		t.Errorf("exploration restart did not suppress thermal logic for next pick")
	}

	// The suppression lasts exactly one selection.
	if _, err := s.ChooseTarget(2000, testCenter, EnergyNormal, mem, g, testArea, true); err != nil {
		t.Fatal(err)
	}
	if s.forceGrid {
		t.Errorf("force-grid flag not cleared after one selection")
	}
}

func TestThermalProbabilityScaling(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	s := NewSelector(nil, seededRand(5))

	if p := s.thermalProbability(1000, mem); math.Abs(p-thermalProbFloor) > 1e-4 {
		t.Errorf("no finds: probability %f, expected floor", p)
	}
	for i := 0; i < 5; i++ {
		mem.BeginClimb(int64(1000 + i))
	}
	if p := s.thermalProbability(2000, mem); math.Abs(p-thermalProbCeil) > 1e-4 {
		t.Errorf("many finds: probability %f, expected ceiling", p)
	}
}

func TestArrivalExactlyOnce(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	g := buildGrid(t, testArea)
	n := NewNavigator(nil, seededRand(6))

	pos := testCenter
	tgt := Target{
		Position:     math.Offset2LL(pos, 90, 20), // inside the 50m radius
		Source:       SourceGrid,
		CellIndex:    g.CellIndexFromLocation(pos),
		AssignedMs:   0,
		InitialDistM: 20,
	}
	n.SetTarget(tgt)

	res := n.Update(1000, pos, 0, [2]float32{0, 0}, mem, g, testArea, testConfig())
	if res.Event != EventArrived || res.Steering {
		t.Fatalf("first tick: %+v, expected arrival", res)
	}
	if n.HasTarget() {
		t.Errorf("target not cleared on arrival")
	}

	res = n.Update(1200, pos, 0, [2]float32{0, 0}, mem, g, testArea, testConfig())
	if res.Event != EventNone || res.Steering {
		t.Errorf("second tick after arrival: %+v, expected no-op", res)
	}
}

func TestArrivalFailedIntercept(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	h := thermal.Hotspot{Position: testCenter, CreatedMs: 77, AvgStrength: 2}
	mem.Seed(h)
	g := buildGrid(t, testArea)
	n := NewNavigator(nil, seededRand(7))

	arriveAt := func() {
		n.SetTarget(Target{
			Position:      testCenter,
			Source:        SourceThermalBest,
			FromHotspotMs: h.CreatedMs,
			InitialDistM:  1000,
		})
		res := n.Update(1000, testCenter, 0, [2]float32{0, 0}, mem, g, testArea, testConfig())
		if res.Event != EventArrived {
			t.Fatalf("expected arrival, got %+v", res)
		}
	}

	arriveAt()
	if mem.Len(1000) != 1 {
		t.Fatalf("hotspot removed after a single missed intercept")
	}
	arriveAt()
	if mem.Len(1000) != 0 {
		t.Errorf("hotspot survived repeated missed intercepts")
	}
}

func TestStuckRecovery(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	g := buildGrid(t, testArea)
	n := NewNavigator(nil, seededRand(8))

	wind := [2]float32{8, 0} // stuck limit clamp(8/4,2,5) = 2
	pos := math.Offset2LL(testCenter, 180, 1000)
	orig := Target{
		Position:     math.Offset2LL(testCenter, 0, 1500),
		Source:       SourceGrid,
		CellIndex:    1,
		AssignedMs:   0,
		InitialDistM: math.DistanceM(pos, math.Offset2LL(testCenter, 0, 1500)),
	}
	n.SetTarget(orig)

	// No net progress: hold position through the grace period and two
	// check intervals.
	repos := 0
	var repoTarget Target
	for _, ms := range []int64{10_000, 31_000, 47_000, 63_000} {
		res := n.Update(ms, pos, 0, wind, mem, g, testArea, testConfig())
		if res.Event == EventStuckRepo {
			repos++
			repoTarget, _ = n.Target()
		}
		if !res.Steering {
			t.Fatalf("t=%dms: steering stopped: %+v", ms, res)
		}
	}
	if repos != 1 {
		t.Fatalf("%d repositioning events, expected exactly 1", repos)
	}
	if repoTarget.Source != SourceReposition {
		t.Fatalf("reposition target source %s", repoTarget.Source)
	}

	// The reposition point lies upwind (wind blows east, so west).
	b := math.Bearing2LL(pos, repoTarget.Position)
	if math.HeadingDifference(b, 270) > 5 {
		t.Errorf("reposition bearing %f, expected ~270", b)
	}
	if d := math.DistanceM(pos, repoTarget.Position); math.Abs(d-480) > 10 {
		t.Errorf("reposition distance %f m, expected wind*60 = 480", d)
	}

	// Arriving at the reposition waypoint restores the original target.
	res := n.Update(70_000, repoTarget.Position, 270, wind, mem, g, testArea, testConfig())
	if res.Event != EventResumed || !res.Steering {
		t.Fatalf("reposition arrival: %+v", res)
	}
	restored, ok := n.Target()
	if !ok || restored.Position != orig.Position || restored.Source != orig.Source {
		t.Errorf("original target not restored: %+v", restored)
	}
}

func TestSteeringNonFinitePosition(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	g := buildGrid(t, testArea)
	n := NewNavigator(nil, seededRand(11))

	n.SetTarget(Target{
		Position:     math.Offset2LL(testCenter, 0, 1000),
		Source:       SourceGrid,
		AssignedMs:   0,
		InitialDistM: 1000,
	})

	// A garbage fix must not poison the controller: bearing degrades to
	// zero and the roll command stays finite.
	nan := float32(gomath.NaN())
	res := n.Update(1000, math.Point2LL{nan, 44.25}, 90, [2]float32{0, 0}, mem, g, testArea, testConfig())
	if !res.Steering {
		t.Fatalf("steering stopped on non-finite position: %+v", res)
	}
	if !math.IsFinite(res.Roll) {
		t.Errorf("non-finite roll command %f", res.Roll)
	}
	if !n.HasTarget() {
		t.Errorf("target dropped on non-finite position")
	}
}

func TestTargetTimeout(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	g := buildGrid(t, testArea)
	n := NewNavigator(nil, seededRand(9))

	pos := testCenter
	n.SetTarget(Target{
		Position:     math.Offset2LL(pos, 0, 1500),
		Source:       SourceGrid,
		AssignedMs:   0,
		InitialDistM: 1500,
	})

	// Calm air: base timeout applies unscaled.
	res := n.Update(baseTimeoutMs-1000, pos, 0, [2]float32{0, 0}, mem, g, testArea, testConfig())
	if !res.Steering {
		t.Fatalf("timed out early: %+v", res)
	}
	res = n.Update(baseTimeoutMs+1000, pos, 0, [2]float32{0, 0}, mem, g, testArea, testConfig())
	if res.Event != EventTimeout || n.HasTarget() {
		t.Errorf("expected timeout: %+v", res)
	}
}

func TestAdaptiveTimeoutScaling(t *testing.T) {
	n := NewNavigator(nil, seededRand(10))
	if got := n.adaptiveTimeoutMs(0); got != baseTimeoutMs {
		t.Errorf("calm timeout %d", got)
	}
	if got := n.adaptiveTimeoutMs(15); got != baseTimeoutMs*2 {
		t.Errorf("15 m/s timeout %d, expected doubled", got)
	}
	if got := n.adaptiveTimeoutMs(100); got != baseTimeoutMs*5/2 {
		t.Errorf("storm timeout %d, expected 2.5x cap", got)
	}
}

func TestRerouteEvaluatedOnce(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	g := buildGrid(t, testArea)

	rerouted, kept := 0, 0
	for seed := int64(0); seed < 200; seed++ {
		n := NewNavigator(nil, seededRand(seed))
		idx := g.TakeRandomUnvisited(seededRand(seed))
		far := math.Offset2LL(testCenter, 0, 1900)
		pos := math.Offset2LL(testCenter, 180, 1900)
		n.SetTarget(Target{
			Position:     far,
			Source:       SourceGrid,
			CellIndex:    idx,
			AssignedMs:   0,
			InitialDistM: math.DistanceM(pos, far), // ~3800m > maxOpDist/2
			RerouteArmed: true,
		})

		// Cross the half-distance line.
		mid := math.Offset2LL(testCenter, 0, 200)
		res := n.Update(5000, mid, 0, [2]float32{0, 0}, mem, g, testArea, testConfig())
		switch res.Event {
		case EventRerouted:
			rerouted++
			if n.HasTarget() {
				t.Fatalf("reroute left a live target")
			}
		default:
			kept++
			// Disarmed: crossing again never reroutes.
			tgt, _ := n.Target()
			if tgt.RerouteArmed {
				t.Fatalf("reroute still armed after evaluation")
			}
			res = n.Update(6000, mid, 0, [2]float32{0, 0}, mem, g, testArea, testConfig())
			if res.Event == EventRerouted {
				t.Fatalf("reroute fired twice for one target")
			}
		}
	}

	// ~33% chance; allow a generous band.
	if rerouted < 30 || rerouted > 110 {
		t.Errorf("%d/200 reroutes, outside plausible band for 33%%", rerouted)
	}
	if kept == 0 {
		t.Errorf("every trial rerouted")
	}
}

func TestRerouteRequiresDistantTarget(t *testing.T) {
	mem := thermal.NewMemory(0, 1200*1000, nil)
	g := buildGrid(t, testArea)

	// Initial distance below half the max operational distance: never
	// reroutes regardless of chance.
	for seed := int64(0); seed < 50; seed++ {
		n := NewNavigator(nil, seededRand(seed))
		pos := testCenter
		tgt := math.Offset2LL(testCenter, 0, 900)
		n.SetTarget(Target{
			Position: tgt, Source: SourceGrid, CellIndex: 1,
			AssignedMs: 0, InitialDistM: 900, RerouteArmed: true,
		})
		res := n.Update(5000, math.Offset2LL(pos, 0, 600), 0, [2]float32{0, 0}, mem, g, testArea, testConfig())
		if res.Event == EventRerouted {
			t.Fatalf("seed %d: short target rerouted", seed)
		}
	}
}
