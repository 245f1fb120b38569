// area/area.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package area implements the operational area the engine confines
// navigation and thermal acceptance to: either a circle around the
// active center or a polygon loaded from a file.
package area

import (
	"errors"

	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/rand"
)

var ErrNoPointFound = errors.New("unable to sample a point inside the area")

// Area is the strategy object selected once at area-mode change; all
// queries go through it rather than re-deciding circle vs. polygon per
// call.
type Area interface {
	Contains(p math.Point2LL) bool
	Center() math.Point2LL

	// Bounds returns the lat/long axis-aligned bounding box.
	Bounds() math.Extent2D

	// MaxDistance returns the longest distance in meters between two
	// points of the area; used to gate mid-flight reroutes.
	MaxDistance() float32

	// RandomPoint samples a uniformly distributed point inside the
	// area.
	RandomPoint(r *rand.Rand) (math.Point2LL, error)
}

///////////////////////////////////////////////////////////////////////////
// Circle

type Circle struct {
	center  math.Point2LL
	radiusM float32
}

func NewCircle(center math.Point2LL, radiusM float32) *Circle {
	return &Circle{center: center, radiusM: radiusM}
}

func (c *Circle) Contains(p math.Point2LL) bool {
	return math.DistanceM(c.center, p) <= c.radiusM
}

func (c *Circle) Center() math.Point2LL { return c.center }

func (c *Circle) Radius() float32 { return c.radiusM }

func (c *Circle) Bounds() math.Extent2D {
	// Axis-aligned box from the corner projections of the circle.
	ne := math.OffsetM2LL(c.center, [2]float32{c.radiusM, c.radiusM})
	sw := math.OffsetM2LL(c.center, [2]float32{-c.radiusM, -c.radiusM})
	return math.Extent2DFromP2LLs([]math.Point2LL{ne, sw})
}

func (c *Circle) MaxDistance() float32 { return 2 * c.radiusM }

func (c *Circle) RandomPoint(r *rand.Rand) (math.Point2LL, error) {
	// sqrt for uniform density over the disk
	d := c.radiusM * math.Sqrt(r.Float32())
	hdg := r.Float32() * 360
	return math.Offset2LL(c.center, hdg, d), nil
}
