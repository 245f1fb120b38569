// nav/target.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"fmt"

	"github.com/avsoar/soarnav/math"
)

// Source records how a target was chosen; it drives arrival
// bookkeeping and the log/status text.
type Source int

const (
	SourceNone Source = iota
	SourceThermalBest
	SourceThermalTournament
	SourceGrid
	SourceGridAltDriven // grid fallback after a failed low-energy thermal return
	SourceRandom
	SourceReposition
)

func (s Source) String() string {
	switch s {
	case SourceThermalBest:
		return "thermal best"
	case SourceThermalTournament:
		return "thermal tournament"
	case SourceGrid:
		return "grid"
	case SourceGridAltDriven:
		return "grid (alt-driven)"
	case SourceRandom:
		return "random"
	case SourceReposition:
		return "upwind reposition"
	default:
		return "none"
	}
}

// IsThermal reports whether arrival at this target counts as a thermal
// intercept attempt.
func (s Source) IsThermal() bool {
	return s == SourceThermalBest || s == SourceThermalTournament
}

// Target is the currently commanded waypoint plus the provenance used
// for timeout, reroute and arrival decisions. Exactly one live target
// exists at a time.
type Target struct {
	Position math.Point2LL `json:"position"`
	Source   Source        `json:"source"`

	// Creation timestamp of the hotspot this target derives from, or 0.
	FromHotspotMs int64 `json:"from_hotspot_ms,omitempty"`

	// Grid cell this target explores, or 0.
	CellIndex int `json:"cell_index,omitempty"`

	AssignedMs   int64   `json:"assigned_ms"`
	InitialDistM float32 `json:"initial_dist_m"`

	// Armed at commit; disarmed on the single half-distance reroute
	// evaluation.
	RerouteArmed bool `json:"-"`
}

func (t *Target) String() string {
	if t.CellIndex != 0 {
		return fmt.Sprintf("%s %s cell %d", t.Source, t.Position.DDString(), t.CellIndex)
	}
	return fmt.Sprintf("%s %s", t.Source, t.Position.DDString())
}
