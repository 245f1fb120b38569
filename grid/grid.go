// grid/grid.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package grid maintains the virtual exploration lattice over the
// operational area. Construction is spread over multiple control-loop
// ticks so that no single tick blows its time budget; callers pump
// BuildStep until Ready reports true.
package grid

import (
	"slices"

	"github.com/avsoar/soarnav/area"
	"github.com/avsoar/soarnav/log"
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/rand"
	"github.com/avsoar/soarnav/util"
)

const (
	// MaxCells bounds the total cell budget; cell size grows to fit.
	MaxCells = 400

	// MinCellSizeM is the smallest useful cell edge; below this the
	// acceptance radius makes distinct cells meaningless.
	MinCellSizeM = 100

	populateBatch = 64
	validateBatch = 32
)

type buildStep int

const (
	stepBounding buildStep = iota
	stepSizing
	stepPopulate
	stepValidate
	stepDone
)

type Cell struct {
	VisitCount int
}

type Grid struct {
	area area.Area
	lg   *log.Logger

	step buildStep

	bounds     math.Extent2D // lat/long
	origin     math.Point2LL // bounds min corner
	widthM     float32
	heightM    float32
	cellSizeM  float32
	rows, cols int

	cells []Cell // row-major, rows*cols once populated

	// Build progress counters; cells allocated / validity-checked so
	// far.
	populated int
	validated int

	// 1-based row-major indices. Unvisited is always a subset of
	// ValidCells.
	ValidCells []int
	Unvisited  []int

	lastCell int // last cell the aircraft was observed in; 0 = none
}

func New(a area.Area, lg *log.Logger) *Grid {
	return &Grid{area: a, lg: lg, step: stepBounding}
}

func (g *Grid) Ready() bool { return g.step == stepDone }

// BuildStep performs one bounded increment of grid construction and
// returns true once the grid is complete.
func (g *Grid) BuildStep() bool {
	switch g.step {
	case stepBounding:
		g.bounds = g.area.Bounds()
		g.origin = math.Point2LL{g.bounds.P0[0], g.bounds.P0[1]}
		size := math.LL2M(math.Point2LL{g.bounds.P1[0], g.bounds.P1[1]}, g.origin)
		g.widthM, g.heightM = size[0], size[1]
		g.step = stepSizing

	case stepSizing:
		areaM2 := g.widthM * g.heightM
		g.cellSizeM = math.Max(float32(MinCellSizeM), math.Sqrt(areaM2/MaxCells))
		g.cols = math.Max(1, int(g.widthM/g.cellSizeM))
		g.rows = math.Max(1, int(g.heightM/g.cellSizeM))
		g.cells = nil
		g.populated, g.validated = 0, 0
		g.ValidCells, g.Unvisited = nil, nil
		g.lastCell = 0
		g.lg.Debugf("grid: %dx%d cells of %.0fm over %.0fx%.0fm", g.rows, g.cols,
			g.cellSizeM, g.widthM, g.heightM)
		g.step = stepPopulate

	case stepPopulate:
		total := g.rows * g.cols
		n := math.Min(populateBatch, total-g.populated)
		g.cells = append(g.cells, make([]Cell, n)...)
		g.populated += n
		if g.populated >= total {
			g.step = stepValidate
		}

	case stepValidate:
		total := g.rows * g.cols
		n := math.Min(validateBatch, total-g.validated)
		for i := 0; i < n; i++ {
			idx := g.validated + i
			if g.area.Contains(g.cellCenter(idx)) {
				g.ValidCells = append(g.ValidCells, idx+1)
			}
		}
		g.validated += n
		if g.validated >= total {
			g.Unvisited = util.DuplicateSlice(g.ValidCells)
			g.lg.Infof("grid ready: %d/%d cells valid", len(g.ValidCells), total)
			g.step = stepDone
		}
	}

	return g.step == stepDone
}

// cellCenter returns the geographic center of the 0-based cell index.
func (g *Grid) cellCenter(idx int) math.Point2LL {
	row, col := idx/g.cols, idx%g.cols
	x := (float32(col) + 0.5) * g.widthM / float32(g.cols)
	y := (float32(row) + 0.5) * g.heightM / float32(g.rows)
	return math.M2LL([2]float32{x, y}, g.origin)
}

// CellCenter returns the geographic center of a 1-based cell index.
func (g *Grid) CellCenter(idx int) math.Point2LL {
	return g.cellCenter(idx - 1)
}

// CellIndexFromLocation maps a point to its 1-based row-major cell
// index, or 0 if the point is outside the bounding box or the grid is
// not ready.
func (g *Grid) CellIndexFromLocation(p math.Point2LL) int {
	if !g.Ready() {
		return 0
	}
	m := math.LL2M(p, g.origin)
	if m[0] < 0 || m[0] > g.widthM || m[1] < 0 || m[1] > g.heightM {
		return 0
	}
	col := math.Min(int(m[0]/g.widthM*float32(g.cols)), g.cols-1)
	row := math.Min(int(m[1]/g.heightM*float32(g.rows)), g.rows-1)
	return row*g.cols + col + 1
}

// UpdateVisited records the aircraft's presence at p. Entering a new
// cell increments its visit count and removes it from the unvisited set
// on first visit; exhausting the unvisited set restarts the exploration
// cycle.
func (g *Grid) UpdateVisited(p math.Point2LL) {
	idx := g.CellIndexFromLocation(p)
	if idx == 0 || idx == g.lastCell {
		return
	}
	g.lastCell = idx

	g.cells[idx-1].VisitCount++
	if g.cells[idx-1].VisitCount == 1 {
		if i := slices.Index(g.Unvisited, idx); i != -1 {
			g.Unvisited = util.DeleteSliceElement(g.Unvisited, i)
			if len(g.Unvisited) == 0 {
				g.lg.Infof("grid: all %d cells visited; restarting exploration", len(g.ValidCells))
				g.ResetVisited()
			}
		}
	}
}

// ResetVisited zeroes all valid cells' visit counts and refills the
// unvisited set.
func (g *Grid) ResetVisited() {
	for _, idx := range g.ValidCells {
		g.cells[idx-1].VisitCount = 0
	}
	g.Unvisited = util.DuplicateSlice(g.ValidCells)
}

// ReturnUnvisited puts a cell back into the unvisited set (used when a
// reroute abandons a target before reaching its cell).
func (g *Grid) ReturnUnvisited(idx int) {
	if idx == 0 || slices.Index(g.ValidCells, idx) == -1 {
		return
	}
	if slices.Index(g.Unvisited, idx) == -1 {
		g.Unvisited = append(g.Unvisited, idx)
	}
}

// TakeRandomUnvisited removes and returns a uniformly chosen unvisited
// cell index; 0 if none remain.
func (g *Grid) TakeRandomUnvisited(r *rand.Rand) int {
	if len(g.Unvisited) == 0 {
		return 0
	}
	i := r.Intn(len(g.Unvisited))
	idx := g.Unvisited[i]
	g.Unvisited = util.DeleteSliceElement(g.Unvisited, i)
	return idx
}

// RandomPointInCell samples a uniform point within the cell's
// sub-rectangle that is inside the operational area. Edge cells have
// their center inside the area but not necessarily all of their
// rectangle, so resample a few times and fall back to the center,
// which is valid by construction.
func (g *Grid) RandomPointInCell(idx int, r *rand.Rand) math.Point2LL {
	row, col := (idx-1)/g.cols, (idx-1)%g.cols
	cw := g.widthM / float32(g.cols)
	ch := g.heightM / float32(g.rows)
	for i := 0; i < 10; i++ {
		x := (float32(col) + r.Float32()) * cw
		y := (float32(row) + r.Float32()) * ch
		if p := math.M2LL([2]float32{x, y}, g.origin); g.area.Contains(p) {
			return p
		}
	}
	return g.CellCenter(idx)
}

// ExploredFraction reports how much of the valid area has been visited
// in the current exploration cycle.
func (g *Grid) ExploredFraction() float32 {
	if len(g.ValidCells) == 0 {
		return 0
	}
	return float32(len(g.ValidCells)-len(g.Unvisited)) / float32(len(g.ValidCells))
}

func (g *Grid) VisitCount(idx int) int {
	return g.cells[idx-1].VisitCount
}
