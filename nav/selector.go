// nav/selector.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"errors"
	"fmt"

	"github.com/avsoar/soarnav/area"
	"github.com/avsoar/soarnav/grid"
	"github.com/avsoar/soarnav/log"
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/rand"
	"github.com/avsoar/soarnav/thermal"
)

var ErrNoTarget = errors.New("no target could be selected")

const (
	// Probability of choosing thermal memory over grid exploration at
	// NORMAL energy, scaled between floor and ceiling by recent finds.
	thermalProbFloor = 0.25
	thermalProbCeil  = 0.75

	// Rolling window and normalization count for "recent finds".
	findsWindowMs = 10 * 60 * 1000
	findsScale    = 3
)

// Selector makes the per-target decision: thermal return, tournament,
// grid exploration or random fallback, in energy-dependent order.
type Selector struct {
	lg *log.Logger
	r  *rand.Rand

	// Set when grid exhaustion restarted the exploration cycle;
	// suppresses thermal logic for the next selection.
	forceGrid bool
}

func NewSelector(lg *log.Logger, r *rand.Rand) *Selector {
	return &Selector{lg: lg, r: r}
}

func (s *Selector) Reset() { s.forceGrid = false }

// ChooseTarget picks the next waypoint. The cascade never fails while
// the grid is unbuilt and the area can produce a random point; ErrNoTarget
// is returned only when even that fallback fails.
func (s *Selector) ChooseTarget(nowMs int64, pos math.Point2LL, energy EnergyState,
	mem *thermal.Memory, g *grid.Grid, a area.Area, thermalEnabled bool) (Target, error) {
	thermalEnabled = thermalEnabled && !s.forceGrid
	s.forceGrid = false

	gridSource := SourceGrid
	if energy != EnergyNormal {
		// Low on energy: deterministic return to the strongest
		// remembered lift.
		if thermalEnabled {
			if p, h, err := mem.SelectBest(nowMs, a); err == nil {
				mem.MarkUsed(h)
				return s.commit(nowMs, pos, Target{
					Position:      p,
					Source:        SourceThermalBest,
					FromHotspotMs: h.CreatedMs,
				}), nil
			} else {
				s.lg.Debugf("%s energy thermal return unavailable: %v", energy, err)
			}
		}
		gridSource = SourceGridAltDriven
	} else if thermalEnabled && s.r.Bool(s.thermalProbability(nowMs, mem)) {
		if p, h, err := mem.Tournament(nowMs, a, s.r); err == nil {
			mem.MarkUsed(h)
			return s.commit(nowMs, pos, Target{
				Position:      p,
				Source:        SourceThermalTournament,
				FromHotspotMs: h.CreatedMs,
			}), nil
		} else {
			s.lg.Debugf("tournament selection failed: %v", err)
		}
	}

	if !g.Ready() {
		p, err := a.RandomPoint(s.r)
		if err != nil {
			return Target{}, fmt.Errorf("random fallback: %w", err)
		}
		return s.commit(nowMs, pos, Target{Position: p, Source: SourceRandom}), nil
	}

	if len(g.Unvisited) == 0 {
		g.ResetVisited()
		s.forceGrid = true
		s.lg.Infof("exploration cycle restarted")
	}
	idx := g.TakeRandomUnvisited(s.r)
	if idx == 0 {
		return Target{}, ErrNoTarget
	}
	return s.commit(nowMs, pos, Target{
		Position:  g.RandomPointInCell(idx, s.r),
		Source:    gridSource,
		CellIndex: idx,
	}), nil
}

// thermalProbability scales linearly from floor to ceiling with the
// number of thermals found within the rolling window.
func (s *Selector) thermalProbability(nowMs int64, mem *thermal.Memory) float32 {
	finds := math.Min(mem.RecentFinds(nowMs, findsWindowMs), findsScale)
	return thermalProbFloor + (thermalProbCeil-thermalProbFloor)*float32(finds)/findsScale
}

func (s *Selector) commit(nowMs int64, pos math.Point2LL, t Target) Target {
	t.AssignedMs = nowMs
	t.InitialDistM = math.DistanceM(pos, t.Position)
	t.RerouteArmed = true
	s.lg.Infof("new target: %s, %.0f m out", t.String(), t.InitialDistM)
	return t
}
