// thermal/select.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package thermal

import (
	"github.com/avsoar/soarnav/area"
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/rand"
	"github.com/avsoar/soarnav/util"
)

// TournamentRadiusM bounds the randomized candidate point around the
// tournament winner's drifted position.
const TournamentRadiusM = 250

// pool returns the live hotspots, preferring those other than the
// last-used one; if exclusion would empty the pool, the full set is
// returned instead.
func (m *Memory) pool(nowMs int64) []Hotspot {
	m.purge(nowMs)
	fresh := util.FilterSlice(m.hotspots, func(h Hotspot) bool {
		return h.CreatedMs != m.lastUsedMs
	})
	if len(fresh) > 0 {
		return fresh
	}
	return util.DuplicateSlice(m.hotspots)
}

// SelectBest picks the strongest remembered hotspot for a low-energy
// return and predicts its current position by forward wind drift. It
// fails if no hotspot has positive average strength or if the drifted
// position has left the operational area.
func (m *Memory) SelectBest(nowMs int64, a area.Area) (math.Point2LL, Hotspot, error) {
	candidates := util.FilterSlice(m.pool(nowMs), func(h Hotspot) bool {
		return h.AvgStrength > 0
	})
	if len(candidates) == 0 {
		return math.Point2LL{}, Hotspot{}, ErrNoViableHotspot
	}

	best := candidates[0]
	for _, h := range candidates[1:] {
		if h.AvgStrength > best.AvgStrength {
			best = h
		}
	}

	drifted := best.DriftedPosition(nowMs)
	if !a.Contains(drifted) {
		m.lg.Debugf("best hotspot drifted to %s: outside area", drifted.DDString())
		return math.Point2LL{}, Hotspot{}, ErrOutsideArea
	}
	return drifted, best, nil
}

// Tournament runs the exploratory two-entrant selection: two hotspots
// drawn at random, the stronger one wins, and a randomized candidate
// point near its drifted position is returned.
func (m *Memory) Tournament(nowMs int64, a area.Area, r *rand.Rand) (math.Point2LL, Hotspot, error) {
	pool := m.pool(nowMs)
	if len(pool) == 0 {
		return math.Point2LL{}, Hotspot{}, ErrNoViableHotspot
	}

	first := pool[r.Intn(len(pool))]
	second := pool[r.Intn(len(pool))]

	winner := first
	if second.AvgStrength > first.AvgStrength {
		winner = second
	}

	drifted := winner.DriftedPosition(nowMs)
	d := TournamentRadiusM * math.Sqrt(r.Float32())
	hdg := r.Float32() * 360
	candidate := math.Offset2LL(drifted, hdg, d)

	if !a.Contains(candidate) {
		return math.Point2LL{}, Hotspot{}, ErrOutsideArea
	}
	return candidate, winner, nil
}
