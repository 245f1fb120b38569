// soar/status.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package soar

import (
	"fmt"

	"github.com/brunoga/deep"

	"github.com/avsoar/soarnav/gcs"
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/nav"
	"github.com/avsoar/soarnav/thermal"
)

// Status is a self-contained snapshot of the engine for telemetry.
// Everything is copied; holders never alias live engine state.
type Status struct {
	State      State             `json:"state"`
	StateName  string            `json:"state_name"`
	Millis     int64             `json:"millis"`
	Position   math.Point2LL     `json:"position"`
	AltitudeM  float32           `json:"altitude_m"`
	Energy     string            `json:"energy"`
	Wind       [2]float32        `json:"wind"`
	Target     *nav.Target       `json:"target,omitempty"`
	GridReady  bool              `json:"grid_ready"`
	Explored   float32           `json:"explored"`
	Hotspots   []thermal.Hotspot `json:"hotspots"`
	FixFailing int               `json:"fix_failing,omitempty"`
}

// Status snapshots the engine. Call from the same goroutine that calls
// Update; the returned value is a deep copy and safe to hand elsewhere.
func (e *Engine) Status() Status {
	s := Status{
		State:      e.state,
		StateName:  e.state.String(),
		Millis:     e.lastMs,
		Position:   e.lastPos,
		AltitudeM:  e.lastAlt,
		Energy:     e.energy.State().String(),
		Wind:       e.wind,
		GridReady:  e.grid != nil && e.grid.Ready(),
		FixFailing: e.fixFailures,
	}
	if e.grid != nil {
		s.Explored = e.grid.ExploredFraction()
	}
	if t, ok := e.navr.Target(); ok {
		s.Target = &t
	}
	if e.mem != nil {
		s.Hotspots = e.mem.Hotspots(e.lastMs)
	}
	return deep.MustCopy(s)
}

const statusIntervalMs = 30 * 1000

// sendStatus emits the periodic pilot-facing status line at the
// configured verbosity.
func (e *Engine) sendStatus(nowMs int64) {
	if e.cfg.verbosity < 1 || nowMs-e.lastStatusMs < statusIntervalMs {
		return
	}
	e.lastStatusMs = nowMs

	explored := float32(0)
	if e.grid != nil {
		explored = e.grid.ExploredFraction()
	}
	text := fmt.Sprintf("SoarNav: %s %s expl %.0f%% mem %d", e.state,
		e.energy.State(), explored*100, e.mem.Len(nowMs))
	if spd := math.Length2f(e.wind); spd > 0.5 {
		from := math.OppositeHeading(math.VectorHeading(e.wind))
		text += fmt.Sprintf(" wind %.0fm/s %s", spd, math.Compass(from))
	}
	if e.cfg.verbosity >= 2 {
		if t, ok := e.navr.Target(); ok {
			text += fmt.Sprintf(" tgt %s", t.String())
		}
	}
	e.gcs.Send(gcs.SeverityInfo, text)
}
