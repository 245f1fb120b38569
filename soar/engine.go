// soar/engine.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package soar is the per-tick orchestrator: it sequences pilot input,
// thermal sampling, grid construction, target selection and steering
// under a single-threaded scheduler contract. Update returns the delay
// until the host should call it again.
package soar

import (
	"fmt"
	"time"

	"github.com/avsoar/soarnav/area"
	"github.com/avsoar/soarnav/gcs"
	"github.com/avsoar/soarnav/grid"
	"github.com/avsoar/soarnav/log"
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/nav"
	"github.com/avsoar/soarnav/pilot"
	"github.com/avsoar/soarnav/rand"
	"github.com/avsoar/soarnav/thermal"
	"github.com/avsoar/soarnav/util"
	"github.com/avsoar/soarnav/vehicle"
)

const (
	// Scheduler delays: active navigation, disabled, error/backoff.
	tickActive   = 200 * time.Millisecond
	tickDisabled = time.Second
	tickError    = 5 * time.Second

	// Consecutive position-fix failures before giving up.
	maxFixFailures = 10

	// Wind estimate cache refresh interval.
	windCacheIntervalMs = 5000

	// Hysteresis margin on the minimum navigation altitude once
	// already navigating.
	altMarginM = 5

	// Radius fallback written to the parameter store after a failed
	// polygon load.
	fallbackRadiusM = 600

	// Name of the thermal memory snapshot in the cache dir.
	memorySnapshotName = "hotspots"
)

// Options wires the engine to its host.
type Options struct {
	Backend vehicle.Backend
	RC      vehicle.RC
	Params  vehicle.ParameterStore
	Log     *log.Logger
	GCS     gcs.Sink
	Rand    *rand.Rand // optional; defaults to a fresh generator

	// PolygonPath is loaded when SNAV_RADIUS is 0.
	PolygonPath string
}

// config is the per-tick parameter snapshot.
type config struct {
	verbosity    int
	radiusM      float32
	rollLimit    float32
	wpRadius     float32
	kp, kd       float32
	tmemEnable   bool
	tmemLifeS    float32
	windComp     float32
	altMin       float32
	altMax       float32
	airframeRoll float32
}

type Engine struct {
	lg  *log.Logger
	gcs gcs.Sink
	r   *rand.Rand

	backend vehicle.Backend
	rc      vehicle.RC
	params  vehicle.ParameterStore

	state  State
	cfg    config
	pilot  *pilot.Pilot
	sel    *nav.Selector
	navr   *nav.Navigator
	energy nav.EnergyTracker
	mem    *thermal.Memory

	area        area.Area
	grid        *grid.Grid
	builtRadius float32 // SNAV_RADIUS the current area was built from
	dynCenter   *math.Point2LL
	polygonPath string

	fixFailures int
	wind        [2]float32
	windMs      int64

	lastMs       int64
	lastPos      math.Point2LL
	lastAlt      float32
	lastAltMs    int64
	lastStatusMs int64

	// ERROR is terminal until the enable parameter is cycled off and
	// back on.
	sawDisable bool
}

func New(opts Options) *Engine {
	r := opts.Rand
	if r == nil {
		r = rand.New()
	}
	sink := opts.GCS
	if sink == nil {
		sink = &gcs.LoggerSink{Logger: opts.Log}
	}
	return &Engine{
		lg:          opts.Log,
		gcs:         sink,
		r:           r,
		backend:     opts.Backend,
		rc:          opts.RC,
		params:      opts.Params,
		pilot:       pilot.New(opts.Log),
		sel:         nav.NewSelector(opts.Log, r),
		navr:        nav.NewNavigator(opts.Log, r),
		mem:         thermal.NewMemory(0, 20*60*1000, opts.Log),
		builtRadius: -1,
		polygonPath: opts.PolygonPath,
	}
}

func (e *Engine) State() State { return e.state }

// RestoreMemory loads the hotspot snapshot saved by a previous run.
func (e *Engine) RestoreMemory() {
	if n, err := e.mem.Load(e.backend.Millis(), memorySnapshotName); err != nil {
		e.lg.Debugf("no thermal memory restored: %v", err)
	} else if n > 0 {
		e.gcs.Send(gcs.SeverityInfo, fmt.Sprintf("SoarNav: restored %d hotspots", n))
	}
}

// Shutdown persists the hotspot store for the next run.
func (e *Engine) Shutdown() {
	if e.cfg.tmemEnable {
		if err := e.mem.Save(e.backend.Millis(), memorySnapshotName); err != nil {
			e.lg.Warnf("saving thermal memory: %v", err)
		}
	}
	e.rc.ClearRollOverride()
}

// Update runs one tick and returns the delay until the next. A panic
// anywhere in the tick body is caught here and converted into the
// error backoff; the control loop never dies.
func (e *Engine) Update() (delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.lg.Errorf("tick fault: %v", r)
			e.gcs.Send(gcs.SeverityCritical, "SoarNav: internal fault, backing off")
			e.rc.ClearRollOverride()
			delay = tickError
		}
	}()
	return e.tick()
}

func (e *Engine) tick() time.Duration {
	now := e.backend.Millis()
	e.lastMs = now

	if e.state == StateError {
		return e.errorTick()
	}

	if v, ok := e.params.Get(vehicle.ParamEnable); !ok || v == 0 {
		if e.state != StateIdle {
			e.setState(StateIdle, "disabled")
		}
		e.sawDisable = true
		return tickDisabled
	}

	if err := e.readParams(); err != nil {
		e.enterError(fmt.Sprintf("bad configuration: %v", err))
		return tickError
	}
	e.mem.SetLifetime(int64(e.cfg.tmemLifeS * 1000))

	pos, ok := e.backend.Position()
	if !ok {
		e.fixFailures++
		e.lg.Warnf("no position fix (%d consecutive)", e.fixFailures)
		if e.fixFailures >= maxFixFailures {
			e.enterError("position fix lost")
			return tickError
		}
		return tickActive
	}
	if e.fixFailures > 0 {
		e.fixFailures--
	}
	e.lastPos = pos

	alt := e.backend.RelativeAltitude()
	climbRate := e.climbRate(now, alt)
	e.refreshWind(now)
	e.energy.Update(alt, e.cfg.altMin, e.cfg.altMax)

	if e.area == nil || e.cfg.radiusM != e.builtRadius {
		if !e.rebuildArea() {
			return tickActive // waiting for home position
		}
	}
	if !e.grid.Ready() {
		e.grid.BuildStep()
	}

	e.updateThermalSampling(now, pos, climbRate)

	mode := e.backend.Mode()
	switch e.state {
	case StateIdle:
		if e.backend.Armed() && e.backend.SoaringActive() &&
			mode.IsSoaringCapable() && alt > e.cfg.altMin {
			e.setState(StateNavigating, "conditions met")
		}

	case StateNavigating:
		switch {
		case mode.IsThermalClimb():
			e.setState(StateThermalPause, "thermal climb active")
		case !e.backend.Armed() || !e.backend.SoaringActive() || !mode.IsSoaringCapable():
			e.setState(StateIdle, "conditions lost")
		case alt < e.cfg.altMin-altMarginM:
			e.setState(StateIdle, "below minimum altitude")
		case e.pilot.InputActive(e.rc.PitchNorm(), e.rc.YawNorm()):
			e.pilot.EnterOverride(now)
			e.setState(StatePilotOverride, "pilot input")
		default:
			e.navigate(now, pos)
		}

	case StatePilotOverride:
		e.updateOverride(now, pos)

	case StateThermalPause:
		if !mode.IsThermalClimb() {
			e.setState(StateIdle, "thermal climb ended")
		}
	}

	e.sendStatus(now)
	return tickActive
}

// errorTick waits for the enable parameter to be cycled, the only way
// out of ERROR.
func (e *Engine) errorTick() time.Duration {
	if v, ok := e.params.Get(vehicle.ParamEnable); ok {
		if v == 0 {
			e.sawDisable = true
		} else if e.sawDisable {
			e.sawDisable = false
			e.fixFailures = 0
			e.setState(StateIdle, "re-enabled")
		}
	}
	return tickError
}

func (e *Engine) setState(s State, why string) {
	if s == e.state {
		return
	}
	e.lg.Infof("state %s -> %s (%s)", e.state, s, why)

	if e.state == StatePilotOverride {
		e.pilot.Reset()
	}
	switch s {
	case StateIdle, StateThermalPause, StateError:
		e.navr.Clear()
		e.rc.ClearRollOverride()
	case StatePilotOverride:
		e.rc.ClearRollOverride()
	}
	e.state = s
}

func (e *Engine) enterError(reason string) {
	e.gcs.Send(gcs.SeverityCritical, "SoarNav: "+reason+", disabling")
	e.setState(StateError, reason)
}

// navigate runs the selector/controller pair for one tick.
func (e *Engine) navigate(nowMs int64, pos math.Point2LL) {
	if e.grid.Ready() {
		e.grid.UpdateVisited(pos)
	}

	if !e.navr.HasTarget() {
		t, err := e.sel.ChooseTarget(nowMs, pos, e.energy.State(), e.mem, e.grid,
			e.area, e.cfg.tmemEnable)
		if err != nil {
			e.lg.Warnf("target selection failed: %v", err)
			return
		}
		e.navr.SetTarget(t)
	}

	res := e.navr.Update(nowMs, pos, e.backend.Yaw(), e.wind, e.mem, e.grid,
		e.area, nav.Config{
			WPRadiusM:       e.cfg.wpRadius,
			GainP:           e.cfg.kp,
			GainD:           e.cfg.kd,
			RollLimitDeg:    e.cfg.rollLimit,
			AirframeRollDeg: e.cfg.airframeRoll,
			RollLimits:      e.rc.RollLimits(),
		})
	if res.Steering {
		e.rc.SetRollOverride(res.PWM)
	} else {
		// Target cleared; a fresh selection runs next tick.
		e.rc.ClearRollOverride()
	}
}

// updateOverride runs the gesture recognizers and the resume timer
// while the pilot has the aircraft.
func (e *Engine) updateOverride(nowMs int64, pos math.Point2LL) {
	if !e.backend.Armed() || !e.backend.SoaringActive() {
		e.setState(StateIdle, "conditions lost")
		return
	}

	ev := e.pilot.Update(nowMs, e.rc.RollNorm(), e.rc.PitchNorm(), e.rc.YawNorm())
	switch ev {
	case pilot.EventOverrideToggled:
		e.gcs.Send(gcs.SeverityInfo, "SoarNav: manual override "+
			util.Select(e.pilot.ManualOverride(), "on", "off"))

	case pilot.EventRecenter:
		if e.cfg.radiusM > 0 {
			c := pos
			e.dynCenter = &c
			e.builtRadius = -1 // force area+grid rebuild
			e.gcs.Send(gcs.SeverityInfo, "SoarNav: area re-centered on current position")
		} else {
			e.gcs.Send(gcs.SeverityWarning, "SoarNav: re-center ignored in polygon mode")
		}
	}

	if e.pilot.ResumeReady(nowMs) {
		e.setState(StateNavigating, "sticks centered")
	}
}

// updateThermalSampling drives entry/exit climb sampling from the
// flight mode, independent of the script state.
func (e *Engine) updateThermalSampling(nowMs int64, pos math.Point2LL, climbRate float32) {
	if !e.cfg.tmemEnable || e.area == nil {
		return
	}

	if e.backend.Mode().IsThermalClimb() {
		if !e.mem.Sampling() {
			e.mem.BeginClimb(nowMs)
		}
		e.mem.SampleClimb(nowMs, climbRate)
		return
	}

	if e.mem.Sampling() {
		cellOf := func(p math.Point2LL) int {
			if e.grid == nil {
				return 0
			}
			return e.grid.CellIndexFromLocation(p)
		}
		if _, err := e.mem.EndClimb(nowMs, pos, e.wind, e.area, cellOf, e.cfg.windComp); err != nil {
			e.lg.Debugf("thermal capture discarded: %v", err)
		} else {
			e.gcs.Send(gcs.SeverityInfo, "SoarNav: thermal hotspot recorded")
		}
	}
}

// climbRate derives vertical speed from altitude deltas between ticks.
func (e *Engine) climbRate(nowMs int64, alt float32) float32 {
	defer func() {
		e.lastAlt = alt
		e.lastAltMs = nowMs
	}()
	if e.lastAltMs == 0 || nowMs <= e.lastAltMs {
		return 0
	}
	return (alt - e.lastAlt) / (float32(nowMs-e.lastAltMs) / 1000)
}

func (e *Engine) refreshWind(nowMs int64) {
	if e.windMs != 0 && nowMs-e.windMs < windCacheIntervalMs {
		return
	}
	if v, ok := e.backend.Wind(); ok {
		e.wind = v
		e.windMs = nowMs
	}
}

// rebuildArea constructs the operational area (and a fresh grid) from
// the current radius parameter, dynamic center and home position.
// Returns false while the home position is still unknown.
func (e *Engine) rebuildArea() bool {
	center, ok := e.activeCenter()
	if !ok {
		return false
	}

	if e.cfg.radiusM > 0 {
		e.area = area.NewCircle(center, e.cfg.radiusM)
		e.lg.Infof("operational area: %.0fm circle at %s", e.cfg.radiusM, center.DDString())
	} else {
		poly, err := area.LoadPolygonFile(e.polygonPath)
		if err != nil {
			// Recoverable: fall back to a safe radius and correct the
			// parameter so the fallback sticks.
			e.gcs.Send(gcs.SeverityWarning,
				fmt.Sprintf("SoarNav: polygon load failed (%v), using %dm radius", err, fallbackRadiusM))
			e.params.Set(vehicle.ParamRadius, fallbackRadiusM)
			e.cfg.radiusM = fallbackRadiusM
			e.area = area.NewCircle(center, fallbackRadiusM)
		} else {
			e.area = poly
			e.lg.Infof("operational area: polygon %s", e.polygonPath)
		}
	}

	e.builtRadius = e.cfg.radiusM
	e.grid = grid.New(e.area, e.lg)
	e.navr.Clear()
	e.sel.Reset()
	return true
}

// activeCenter is the pilot-set dynamic center if one exists, else
// home.
func (e *Engine) activeCenter() (math.Point2LL, bool) {
	if e.dynCenter != nil {
		return *e.dynCenter, true
	}
	return e.backend.Home()
}

// readParams snapshots and validates the tunables.
func (e *Engine) readParams() error {
	get := func(name string) (float32, error) {
		v, ok := e.params.Get(name)
		if !ok {
			return 0, fmt.Errorf("parameter %s missing", name)
		}
		return v, nil
	}

	var c config
	var err error
	var verbosity, tmemEnable float32
	read := []struct {
		name string
		dst  *float32
	}{
		{vehicle.ParamLogLevel, &verbosity},
		{vehicle.ParamTMemEnable, &tmemEnable},
		{vehicle.ParamRadius, &c.radiusM},
		{vehicle.ParamRollLimit, &c.rollLimit},
		{vehicle.ParamWPRadius, &c.wpRadius},
		{vehicle.ParamGainP, &c.kp},
		{vehicle.ParamGainD, &c.kd},
		{vehicle.ParamHotspotLife, &c.tmemLifeS},
		{vehicle.ParamWindCompBase, &c.windComp},
		{vehicle.ParamSoarAltMin, &c.altMin},
		{vehicle.ParamSoarAltMax, &c.altMax},
		{vehicle.ParamAirframeRoll, &c.airframeRoll},
	}
	for _, p := range read {
		if *p.dst, err = get(p.name); err != nil {
			return err
		}
	}

	c.verbosity = int(math.Clamp(verbosity, 0, 2))
	c.tmemEnable = tmemEnable != 0

	switch {
	case c.radiusM < 0:
		return fmt.Errorf("%s: negative radius", vehicle.ParamRadius)
	case c.rollLimit <= 0 || c.rollLimit > 90:
		return fmt.Errorf("%s: out of range", vehicle.ParamRollLimit)
	case c.wpRadius <= 0:
		return fmt.Errorf("%s: must be positive", vehicle.ParamWPRadius)
	case c.kp < 0 || c.kd < 0:
		return fmt.Errorf("negative controller gain")
	case c.tmemLifeS <= 0:
		return fmt.Errorf("%s: must be positive", vehicle.ParamHotspotLife)
	case c.altMax <= c.altMin:
		return fmt.Errorf("soaring altitude band inverted")
	case c.airframeRoll <= 0:
		return fmt.Errorf("%s: must be positive", vehicle.ParamAirframeRoll)
	}

	e.cfg = c
	return nil
}
