// thermal/memory.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package thermal remembers where the aircraft has found rising air.
// The store is small and bounded: entries age out, the weakest is
// evicted on overflow, and repeatedly missed hotspots are dropped.
package thermal

import (
	"errors"
	"fmt"

	"github.com/avsoar/soarnav/log"
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/util"
)

var (
	ErrNoSamples       = errors.New("no climb samples recorded")
	ErrOutsideArea     = errors.New("hotspot position outside operational area")
	ErrDuplicateCell   = errors.New("hotspot duplicates an existing grid cell")
	ErrNoViableHotspot = errors.New("no viable hotspot")
)

type Consistency int

const (
	Consistent Consistency = iota
	Variable
)

func (c Consistency) String() string {
	return util.Select(c == Consistent, "consistent", "variable")
}

const (
	DefaultCapacity = 10

	// MaxFailedAttempts intercept failures remove a hotspot.
	MaxFailedAttempts = 2

	// Variance of the trailing climb-rate window above which a thermal
	// is labeled variable, (m/s)^2.
	varianceThreshold = 0.5
)

// Hotspot is a remembered thermal. Immutable after insertion except for
// FailedAttempts.
type Hotspot struct {
	Position       math.Point2LL `msgpack:"pos"`
	CreatedMs      int64         `msgpack:"created"`
	AvgStrength    float32       `msgpack:"avg"`
	MaxStrength    float32       `msgpack:"max"`
	Consistency    Consistency   `msgpack:"consistency"`
	DurationMs     int64         `msgpack:"duration"`
	Wind           [2]float32    `msgpack:"wind"` // m/s at capture
	FailedAttempts int           `msgpack:"failed"`
}

// DriftedPosition predicts where the thermal is now: the capture
// position advanced downwind by wind speed times age.
func (h *Hotspot) DriftedPosition(nowMs int64) math.Point2LL {
	ageSec := float32(nowMs-h.CreatedMs) / 1000
	return math.OffsetM2LL(h.Position, math.Scale2f(h.Wind, ageSec))
}

type Memory struct {
	capacity   int
	lifetimeMs int64
	lg         *log.Logger

	hotspots []Hotspot

	// Creation timestamp of the hotspot most recently handed out as a
	// target; selection avoids it when alternatives exist.
	lastUsedMs int64

	// Thermal-entry event times for the rolling "recent finds" window.
	entries []int64

	sampler sampler
}

func NewMemory(capacity int, lifetimeMs int64, lg *log.Logger) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{capacity: capacity, lifetimeMs: lifetimeMs, lg: lg}
}

func (m *Memory) SetLifetime(lifetimeMs int64) { m.lifetimeMs = lifetimeMs }

// purge drops entries whose age has reached the configured lifetime;
// every read path calls it first.
func (m *Memory) purge(nowMs int64) {
	m.hotspots = util.FilterSlice(m.hotspots, func(h Hotspot) bool {
		return nowMs-h.CreatedMs < m.lifetimeMs
	})
}

// Hotspots purges expired entries and returns a copy of the live set.
func (m *Memory) Hotspots(nowMs int64) []Hotspot {
	m.purge(nowMs)
	return util.DuplicateSlice(m.hotspots)
}

func (m *Memory) Len(nowMs int64) int {
	m.purge(nowMs)
	return len(m.hotspots)
}

// insert adds h, evicting the weakest-by-average-strength hotspot if
// the store is over capacity.
func (m *Memory) insert(h Hotspot) {
	m.hotspots = append(m.hotspots, h)
	if len(m.hotspots) <= m.capacity {
		return
	}

	weakest := 0
	for i := 1; i < len(m.hotspots); i++ {
		if m.hotspots[i].AvgStrength < m.hotspots[weakest].AvgStrength {
			weakest = i
		}
	}
	m.lg.Debugf("thermal memory full; evicting hotspot at %s (avg %.1f m/s)",
		m.hotspots[weakest].Position.DDString(), m.hotspots[weakest].AvgStrength)
	m.hotspots = util.DeleteSliceElement(m.hotspots, weakest)
}

// Seed inserts a pre-built hotspot, bypassing climb sampling. Used for
// snapshot restore and test setup; normal capture goes through
// BeginClimb/SampleClimb/EndClimb.
func (m *Memory) Seed(h Hotspot) { m.insert(h) }

// MarkUsed records h as the hotspot currently being flown to so that
// the next selection prefers somewhere else.
func (m *Memory) MarkUsed(h Hotspot) {
	m.lastUsedMs = h.CreatedMs
}

// FailIntercept records a failed intercept of the hotspot created at
// createdMs. Returns whether the hotspot was found and whether the
// accumulated failures removed it.
func (m *Memory) FailIntercept(createdMs int64) (found, removed bool) {
	for i := range m.hotspots {
		if m.hotspots[i].CreatedMs != createdMs {
			continue
		}
		m.hotspots[i].FailedAttempts++
		if m.hotspots[i].FailedAttempts >= MaxFailedAttempts {
			m.lg.Infof("hotspot at %s removed after %d failed intercepts",
				m.hotspots[i].Position.DDString(), m.hotspots[i].FailedAttempts)
			m.hotspots = util.DeleteSliceElement(m.hotspots, i)
			return true, true
		}
		return true, false
	}
	return false, false
}

// RecentFinds counts distinct thermal-entry events younger than the
// window.
func (m *Memory) RecentFinds(nowMs, windowMs int64) int {
	m.entries = util.FilterSlice(m.entries, func(t int64) bool {
		return nowMs-t < windowMs
	})
	return len(m.entries)
}

func (m *Memory) String() string {
	return fmt.Sprintf("%d hotspots (cap %d)", len(m.hotspots), m.capacity)
}
