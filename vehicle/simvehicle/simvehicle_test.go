// vehicle/simvehicle/simvehicle_test.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package simvehicle

import (
	"testing"

	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/vehicle"
)

var testHome = math.Point2LL{-119.5, 44.25}

func TestStraightGlide(t *testing.T) {
	v := New(Options{Home: testHome, AltM: 300})

	for i := 0; i < 50; i++ { // 10s
		v.Step(200)
	}

	if v.Yaw() != 0 {
		t.Errorf("yaw drifted to %f with wings level", v.Yaw())
	}
	pos, _ := v.Position()
	if d := math.DistanceM(testHome, pos); math.Abs(d-120) > 5 {
		t.Errorf("flew %f m in 10s at 12 m/s", d)
	}
	if alt := v.RelativeAltitude(); math.Abs(alt-(300-7)) > 0.5 {
		t.Errorf("altitude %f after 10s of 0.7 m/s sink", alt)
	}
	if v.Millis() != 10_000 {
		t.Errorf("clock at %d ms", v.Millis())
	}
}

func TestWindDrift(t *testing.T) {
	v := New(Options{Home: testHome, AltM: 300, Wind: [2]float32{5, 0}})
	for i := 0; i < 50; i++ {
		v.Step(200)
	}
	pos, _ := v.Position()
	// Heading north at 12 m/s with 5 m/s easterly drift.
	if b := math.Bearing2LL(testHome, pos); math.HeadingDifference(b, math.Degrees(math.Atan2(5, 12))) > 3 {
		t.Errorf("track bearing %f, expected wind-drifted", b)
	}
}

func TestRollOverrideTurns(t *testing.T) {
	v := New(Options{Home: testHome, AltM: 300})
	v.SetRollOverride(2000) // full right

	for i := 0; i < 25; i++ { // 5s
		v.Step(200)
	}
	if v.Yaw() < 45 {
		t.Errorf("yaw only %f after 5s of full right roll", v.Yaw())
	}

	v.ClearRollOverride()
	for i := 0; i < 25; i++ {
		v.Step(200)
	}
	if math.Abs(v.roll) > 1 {
		t.Errorf("roll %f did not level after override cleared", v.roll)
	}
}

func TestThermalLatchAndClimb(t *testing.T) {
	// A strong thermal right on track, just ahead.
	th := Thermal{Position: math.Offset2LL(testHome, 0, 150), RadiusM: 200, Strength: 3}
	v := New(Options{Home: testHome, AltM: 200, Thermals: []Thermal{th}, MinAltM: 100, MaxAltM: 260})

	sawThermal := false
	for i := 0; i < 3000 && v.RelativeAltitude() < 255; i++ {
		v.Step(200)
		if v.Mode() == vehicle.ModeThermal {
			sawThermal = true
		}
	}
	if !sawThermal {
		t.Fatalf("soaring controller never latched the thermal")
	}
	if v.RelativeAltitude() < 230 {
		t.Errorf("no climb: altitude %f", v.RelativeAltitude())
	}

	// The climb releases at the top of the band.
	for i := 0; i < 500 && v.Mode() == vehicle.ModeThermal; i++ {
		v.Step(200)
	}
	if v.Mode() == vehicle.ModeThermal {
		t.Errorf("thermal mode never released")
	}
}
