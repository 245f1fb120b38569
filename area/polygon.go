// area/polygon.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package area

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/rand"
)

// Polygon is an operational area bounded by lat/long vertices. The
// vertex list is closed: the last vertex repeats the first. Planar
// offsets of the vertices from the first vertex are computed once at
// load time so that the per-query containment test never reprojects
// the polygon.
type Polygon struct {
	Vertices []math.Point2LL // closed; first == last

	origin  math.Point2LL
	local   [][2]float32 // planar meter offsets, open ring (no repeated last)
	bounds  math.Extent2D
	maxDist float32
}

func NewPolygon(vertices []math.Point2LL) (*Polygon, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("polygon has %d vertices; need at least 3", len(vertices))
	}

	// Auto-close.
	if vertices[0] != vertices[len(vertices)-1] {
		vertices = append(vertices, vertices[0])
	}

	p := &Polygon{
		Vertices: vertices,
		origin:   vertices[0],
		bounds:   math.Extent2DFromP2LLs(vertices),
	}

	open := vertices[:len(vertices)-1]
	p.local = make([][2]float32, len(open))
	for i, v := range open {
		p.local[i] = math.LL2M(v, p.origin)
	}

	// Longest pairwise vertex distance bounds how far apart any two
	// points of the area can be.
	for i := range open {
		for j := i + 1; j < len(open); j++ {
			if d := math.DistanceM(open[i], open[j]); d > p.maxDist {
				p.maxDist = d
			}
		}
	}

	return p, nil
}

// LoadPolygonFile reads a polygon from a file of whitespace-separated
// lat/lon pairs, one vertex per line, with '#' comments.
func LoadPolygonFile(path string) (*Polygon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vertices []math.Point2LL
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s:%d: expected \"lat lon\", got %q", path, line, text)
		}
		lat, err := strconv.ParseFloat(fields[0], 32)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad latitude: %v", path, line, err)
		}
		lon, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad longitude: %v", path, line, err)
		}
		vertices = append(vertices, math.Point2LL{float32(lon), float32(lat)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return NewPolygon(vertices)
}

func (p *Polygon) Contains(pt math.Point2LL) bool {
	return math.PointInPolygon(math.LL2M(pt, p.origin), p.local)
}

// Center returns the centroid of the bounding box; navigation treats it
// as the polygon's reference point.
func (p *Polygon) Center() math.Point2LL {
	return math.Point2LL(p.bounds.Center())
}

func (p *Polygon) Bounds() math.Extent2D { return p.bounds }

func (p *Polygon) MaxDistance() float32 { return p.maxDist }

func (p *Polygon) RandomPoint(r *rand.Rand) (math.Point2LL, error) {
	// Rejection sample over the bounding box; polygons that cover a
	// tiny fraction of their box will fail and the caller falls back.
	for i := 0; i < 100; i++ {
		pt := math.Point2LL(p.bounds.Lerp([2]float32{r.Float32(), r.Float32()}))
		if p.Contains(pt) {
			return pt, nil
		}
	}
	return math.Point2LL{}, ErrNoPointFound
}
