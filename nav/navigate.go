// nav/navigate.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"github.com/avsoar/soarnav/area"
	"github.com/avsoar/soarnav/grid"
	"github.com/avsoar/soarnav/log"
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/rand"
	"github.com/avsoar/soarnav/thermal"
	"github.com/avsoar/soarnav/vehicle"
)

const (
	// Progress checks start after the grace period and repeat on the
	// check interval; less than the minimum progress between checks
	// counts as stuck.
	stuckGraceMs         = 30 * 1000
	stuckCheckIntervalMs = 15 * 1000
	stuckMinProgressM    = 20

	// Target timeout base, scaled up for headwind, capped at 2.5x.
	baseTimeoutMs  = 240 * 1000
	timeoutMaxMult = 2.5

	// Reroute gating: evaluated once at half the initial distance.
	rerouteChance      = 0.33
	rerouteExploredMax = 0.9
)

// Config carries the per-tick tunables the navigator needs, re-read
// from the parameter store by the orchestrator.
type Config struct {
	WPRadiusM       float32
	GainP, GainD    float32
	RollLimitDeg    float32
	AirframeRollDeg float32
	RollLimits      vehicle.RollChannelLimits
}

// Event says what the navigator did with the live target this tick.
type Event int

const (
	EventNone      Event = iota
	EventArrived         // target reached and cleared
	EventResumed         // reposition waypoint reached, original target restored
	EventTimeout         // target held too long and cleared
	EventRerouted        // tactical reroute cleared the target
	EventStuckRepo       // stuck limit hit, repositioning upwind
)

// Result of one steering tick. Roll/PWM are only meaningful while
// Steering is true; a false Steering means the target was cleared and
// the selector must run next tick.
type Result struct {
	Event    Event
	Steering bool
	Roll     float32
	PWM      uint16
}

// Navigator steers toward the live target and owns the recovery logic
// around it: anti-stuck upwind repositioning, adaptive timeout,
// half-distance tactical reroute and arrival bookkeeping.
type Navigator struct {
	lg *log.Logger
	r  *rand.Rand

	ctrl   Controller
	target *Target
	saved  *Target // original target parked during upwind repositioning

	progressMs   int64 // time of the last progress check
	progressDist float32
	stuck        int
}

func NewNavigator(lg *log.Logger, r *rand.Rand) *Navigator {
	return &Navigator{lg: lg, r: r}
}

func (n *Navigator) HasTarget() bool { return n.target != nil }

// Target returns a copy of the live target.
func (n *Navigator) Target() (Target, bool) {
	if n.target == nil {
		return Target{}, false
	}
	return *n.target, true
}

// SetTarget installs a fresh target and resets all navigation
// bookkeeping: PD history, stuck counters and progress timers.
func (n *Navigator) SetTarget(t Target) {
	n.target = &t
	n.saved = nil
	n.resetProgress(t.AssignedMs, t.InitialDistM)
	n.ctrl.Reset()
}

// Clear drops the live target (and any parked reposition origin). This
// is the universal abort: always safe, selector runs next tick.
func (n *Navigator) Clear() {
	n.target = nil
	n.saved = nil
	n.ctrl.Reset()
}

func (n *Navigator) resetProgress(nowMs int64, dist float32) {
	n.progressMs = nowMs
	n.progressDist = dist
	n.stuck = 0
}

// Update runs one steering tick against the live target. mem, g and a
// are consulted for arrival bookkeeping and the reroute decision.
func (n *Navigator) Update(nowMs int64, pos math.Point2LL, yaw float32, wind [2]float32,
	mem *thermal.Memory, g *grid.Grid, a area.Area, cfg Config) Result {
	t := n.target
	if t == nil {
		return Result{}
	}

	dist := math.DistanceM(pos, t.Position)
	windSpeed := math.Length2f(wind)

	event := EventNone
	if dist < cfg.WPRadiusM {
		if n.saved == nil {
			return n.arrive(dist, mem)
		}
		// Reposition waypoint reached; resume the parked target.
		n.lg.Infof("reposition complete, resuming %s", n.saved.String())
		n.target = n.saved
		n.saved = nil
		t = n.target
		dist = math.DistanceM(pos, t.Position)
		n.resetProgress(nowMs, dist)
		n.ctrl.Reset()
		event = EventResumed
	}

	if t.RerouteArmed && dist <= t.InitialDistM/2 {
		t.RerouteArmed = false
		if n.shouldReroute(t, g, a) {
			n.lg.Infof("tactical reroute: abandoning %s at %.0f m", t.String(), dist)
			g.ReturnUnvisited(t.CellIndex)
			n.Clear()
			return Result{Event: EventRerouted}
		}
	}

	if nowMs-t.AssignedMs > n.adaptiveTimeoutMs(windSpeed) {
		n.lg.Infof("target timed out: %s", t.String())
		n.Clear()
		return Result{Event: EventTimeout}
	}

	if event == EventNone && n.saved == nil && n.checkStuck(nowMs, dist, windSpeed) {
		n.reposition(nowMs, pos, wind, windSpeed)
		t = n.target
		dist = math.DistanceM(pos, t.Position)
		event = EventStuckRepo
	}

	if !pos.IsFinite() || !t.Position.IsFinite() {
		n.lg.Debugf("non-finite steering inputs: pos %s target %s", pos.DDString(),
			t.Position.DDString())
	}
	bearing := math.Bearing2LL(pos, t.Position)
	headingErr := math.HeadingSignedTurn(yaw, bearing)
	roll := n.ctrl.RollCommand(headingErr, cfg.GainP, cfg.GainD, cfg.RollLimitDeg)
	pwm := RollToPWM(roll, cfg.AirframeRollDeg, cfg.RollLimits)

	return Result{Event: event, Steering: true, Roll: roll, PWM: pwm}
}

// arrive clears the reached target and records the intercept outcome
// for thermal-derived targets.
func (n *Navigator) arrive(dist float32, mem *thermal.Memory) Result {
	t := n.target
	n.lg.Infof("arrived at %s (%.0f m)", t.String(), dist)
	if t.Source.IsThermal() {
		// Reaching the predicted position without the soaring
		// controller taking over means the thermal was not there.
		if _, removed := mem.FailIntercept(t.FromHotspotMs); removed {
			n.lg.Infof("hotspot dropped after repeated missed intercepts")
		}
	}
	n.Clear()
	return Result{Event: EventArrived}
}

func (n *Navigator) shouldReroute(t *Target, g *grid.Grid, a area.Area) bool {
	return t.InitialDistM > a.MaxDistance()/2 &&
		g.Ready() && len(g.Unvisited) > 1 &&
		g.ExploredFraction() < rerouteExploredMax &&
		n.r.Bool(rerouteChance)
}

// checkStuck samples progress on the check interval and reports
// whether the wind-scaled stuck limit has been reached.
func (n *Navigator) checkStuck(nowMs int64, dist float32, windSpeed float32) bool {
	if nowMs-n.target.AssignedMs < stuckGraceMs ||
		nowMs-n.progressMs < stuckCheckIntervalMs {
		return false
	}

	if n.progressDist-dist < stuckMinProgressM {
		n.stuck++
	} else {
		n.stuck = 0
	}
	n.progressMs = nowMs
	n.progressDist = dist

	limit := int(math.Clamp(windSpeed/4, 2, 5))
	return n.stuck >= limit
}

// reposition parks the current target and heads for an upwind point at
// a wind-scaled distance; arrival there restores the original target.
func (n *Navigator) reposition(nowMs int64, pos math.Point2LL, wind [2]float32, windSpeed float32) {
	repoDist := math.Clamp(windSpeed*60, 150, 700)

	hdg := n.r.Float32() * 360 // calm air: no upwind, any direction breaks the loop
	if windSpeed > 0.1 {
		hdg = math.VectorHeading(math.Scale2f(wind, -1))
	}
	p := math.Offset2LL(pos, hdg, repoDist)

	n.lg.Infof("stuck for %d checks, repositioning %.0f m upwind", n.stuck, repoDist)
	n.saved = n.target
	n.target = &Target{
		Position:     p,
		Source:       SourceReposition,
		AssignedMs:   nowMs,
		InitialDistM: repoDist,
	}
	n.resetProgress(nowMs, repoDist)
	n.ctrl.Reset()
}

func (n *Navigator) adaptiveTimeoutMs(windSpeed float32) int64 {
	mult := math.Min(1+windSpeed/15, float32(timeoutMaxMult))
	return int64(baseTimeoutMs * mult)
}
