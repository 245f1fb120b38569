// thermal/sampler.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package thermal

import (
	"github.com/avsoar/soarnav/area"
	"github.com/avsoar/soarnav/math"
)

const (
	// Adaptive sampling interval bounds, milliseconds.
	minSampleIntervalMs = 1000
	maxSampleIntervalMs = 5000

	// Trailing climb-rate window used for the variance/consistency
	// computation.
	trailingWindow = 10
)

// sampler accumulates climb-rate statistics while the aircraft circles
// in a thermal-climb mode.
type sampler struct {
	active  bool
	startMs int64
	lastMs  int64
	sum     float32
	count   int
	max     float32
	window  []float32 // last trailingWindow samples
}

// BeginClimb starts a sampling session and records a thermal-entry
// event for the rolling finds window.
func (m *Memory) BeginClimb(nowMs int64) {
	m.entries = append(m.entries, nowMs)
	m.sampler = sampler{active: true, startMs: nowMs}
}

func (m *Memory) Sampling() bool { return m.sampler.active }

// SampleClimb records the current climb rate if the adaptive sampling
// interval has elapsed: 3000/strength ms, clamped to [1s,5s], so strong
// lift is sampled more often.
func (m *Memory) SampleClimb(nowMs int64, climbRate float32) {
	s := &m.sampler
	if !s.active {
		return
	}

	if s.count > 0 {
		interval := int64(maxSampleIntervalMs)
		if climbRate > 0.6 { // 3000/0.6 hits the upper clamp anyway
			interval = math.Clamp(int64(3000/climbRate), minSampleIntervalMs, maxSampleIntervalMs)
		}
		if nowMs-s.lastMs < interval {
			return
		}
	}

	s.lastMs = nowMs
	s.sum += climbRate
	s.count++
	s.max = math.Max(s.max, climbRate)
	s.window = append(s.window, climbRate)
	if len(s.window) > trailingWindow {
		s.window = s.window[1:]
	}
}

// EndClimb finalizes the sampling session into a hotspot. The captured
// position is corrected upwind to estimate where the thermal's source
// was when the aircraft entered it; the corrected position must lie
// inside the operational area and must not share a grid cell with an
// existing hotspot. cellOf maps a position to a grid cell index (0 for
// none) and windCompBase scales the compensation time.
func (m *Memory) EndClimb(nowMs int64, pos math.Point2LL, wind [2]float32,
	a area.Area, cellOf func(math.Point2LL) int, windCompBase float32) (Hotspot, error) {
	s := m.sampler
	m.sampler = sampler{}

	if !s.active || s.count < 1 {
		return Hotspot{}, ErrNoSamples
	}

	avg := s.sum / float32(s.count)

	consistency := Variable
	if variance(s.window) <= varianceThreshold {
		consistency = Consistent
	}

	// Stronger thermals are entered later in their drift, so compensate
	// further upwind; weak wind barely moves the thermal and gets a
	// fixed floor instead.
	compTime := windCompBase * math.Clamp(avg/1.5, 0.5, 2.0)
	windSpeed := math.Length2f(wind)
	if windSpeed <= 1 {
		compTime = math.Max(compTime, 10)
	}
	corrected := math.OffsetM2LL(pos, math.Scale2f(wind, -compTime))

	if !a.Contains(corrected) {
		m.lg.Debugf("thermal at %s corrected to %s: outside area, discarded",
			pos.DDString(), corrected.DDString())
		return Hotspot{}, ErrOutsideArea
	}

	if cell := cellOf(corrected); cell != 0 {
		m.purge(nowMs)
		for _, h := range m.hotspots {
			if cellOf(h.Position) == cell {
				return Hotspot{}, ErrDuplicateCell
			}
		}
	}

	h := Hotspot{
		Position:    corrected,
		CreatedMs:   nowMs,
		AvgStrength: avg,
		MaxStrength: s.max,
		Consistency: consistency,
		DurationMs:  nowMs - s.startMs,
		Wind:        wind,
	}
	m.insert(h)
	m.lg.Infof("hotspot recorded at %s: avg %.1f max %.1f m/s, %s",
		corrected.DDString(), avg, s.max, consistency)
	return h, nil
}

func variance(samples []float32) float32 {
	if len(samples) < 2 {
		return 0
	}
	var mean float32
	for _, v := range samples {
		mean += v
	}
	mean /= float32(len(samples))

	var sum float32
	for _, v := range samples {
		sum += math.Sqr(v - mean)
	}
	return sum / float32(len(samples))
}
