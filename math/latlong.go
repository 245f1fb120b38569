// math/latlong.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"fmt"
	gomath "math"
)

// MetersPerDegreeLat is the (approximately constant) north-south length
// of one degree of latitude.
const MetersPerDegreeLat = 111319.5

// Point2LL represents a 2D point on the Earth in latitude-longitude.
// Important: 0 (x) is longitude, 1 (y) is latitude
type Point2LL [2]float32

func (p Point2LL) Longitude() float32 {
	return p[0]
}

func (p Point2LL) Latitude() float32 {
	return p[1]
}

// DDString returns the position in decimal degrees, e.g.:
// (39.860901, -75.274864)
func (p Point2LL) DDString() string {
	return fmt.Sprintf("(%f, %f)", p[1], p[0]) // latitude, longitude
}

func (p Point2LL) IsZero() bool {
	return p[0] == 0 && p[1] == 0
}

func (p Point2LL) IsFinite() bool {
	return IsFinite(p[0]) && IsFinite(p[1])
}

// MetersPerDegreeLon returns the east-west length of one degree of
// longitude at the given latitude.
func MetersPerDegreeLon(lat float32) float32 {
	return MetersPerDegreeLat * Cos(Radians(lat))
}

// DistanceM returns the great-circle distance in meters between two
// provided lat-long coordinates.
func DistanceM(a Point2LL, b Point2LL) float32 {
	// https://www.movable-type.co.uk/scripts/latlong.html
	const R = 6371000 // metres
	rad := func(d float32) float64 { return float64(d) / 180 * gomath.Pi }
	lat1, lon1 := rad(a[1]), rad(a[0])
	lat2, lon2 := rad(b[1]), rad(b[0])
	dlat, dlon := lat2-lat1, lon2-lon1

	x := Sqr(gomath.Sin(dlat/2)) + gomath.Cos(lat1)*gomath.Cos(lat2)*Sqr(gomath.Sin(dlon/2))
	c := 2 * gomath.Atan2(gomath.Sqrt(x), gomath.Sqrt(1-x))
	return float32(R * c)
}

// Bearing2LL returns the heading in degrees from the point |from| to the
// point |to|. Non-finite input coordinates give a zero bearing; callers
// that care should check IsFinite first and log.
func Bearing2LL(from Point2LL, to Point2LL) float32 {
	if !from.IsFinite() || !to.IsFinite() {
		return 0
	}

	v := [2]float32{to[0] - from[0], to[1] - from[1]}

	// Note that atan2() normally measures w.r.t. the +x axis and angles
	// are positive for counter-clockwise. We want to measure w.r.t. +y and
	// to have positive angles be clockwise. Happily, swapping the order of
	// values passed to atan2()--passing (x,y), gives what we want.
	angle := Degrees(Atan2(v[0]*MetersPerDegreeLon(from[1]), v[1]*MetersPerDegreeLat))
	return NormalizeHeading(angle)
}

// LL2M converts a lat-long point to planar meter coordinates relative to
// the given origin; this is useful for reasoning about distances, since
// both axes then have the same measure.
func LL2M(p Point2LL, origin Point2LL) [2]float32 {
	x := (p[0] - origin[0]) * MetersPerDegreeLon(origin[1])
	y := (p[1] - origin[1]) * MetersPerDegreeLat
	return [2]float32{x, y}
}

// M2LL converts a point expressed in meter coordinates relative to origin
// back to lat-long.
func M2LL(p [2]float32, origin Point2LL) Point2LL {
	return Point2LL{
		origin[0] + p[0]/MetersPerDegreeLon(origin[1]),
		origin[1] + p[1]/MetersPerDegreeLat,
	}
}

// Offset2LL returns the point at distance dist meters along the vector
// with heading hdg from the given point. It assumes a (locally) flat
// earth.
func Offset2LL(pll Point2LL, hdg float32, dist float32) Point2LL {
	v := Scale2f(SinCos(Radians(hdg)), dist)
	return OffsetM2LL(pll, v)
}

// OffsetM2LL returns the point displaced from pll by the given vector
// expressed in meters.
func OffsetM2LL(pll Point2LL, v [2]float32) Point2LL {
	return Point2LL{
		pll[0] + v[0]/MetersPerDegreeLon(pll[1]),
		pll[1] + v[1]/MetersPerDegreeLat,
	}
}
