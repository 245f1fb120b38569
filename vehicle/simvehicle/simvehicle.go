// vehicle/simvehicle/simvehicle.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package simvehicle is a small kinematic glider used to run the
// engine headless: roll-rate-limited heading dynamics, wind drift,
// seeded thermals and an emulated soaring controller that takes over
// in lift the way the real autopilot would.
package simvehicle

import (
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/vehicle"
)

// Thermal is a stationary column of lift with a gaussian-ish profile.
type Thermal struct {
	Position math.Point2LL
	RadiusM  float32
	Strength float32 // core lift, m/s
}

type Options struct {
	Home       math.Point2LL
	AltM       float32
	AirspeedMS float32 // defaults to 12
	Wind       [2]float32
	Thermals   []Thermal

	// Altitude band for the emulated soaring controller.
	MinAltM, MaxAltM float32
}

const (
	baseSinkMS     = 0.7
	rollRateDegS   = 60
	airframeRoll   = 45
	thermalRollDeg = 40

	// Vario thresholds for the emulated soaring controller.
	liftTriggerMS = 0.7
	liftQuitMS    = 0.2
)

type Vehicle struct {
	opts Options

	ms   int64
	posM [2]float64 // planar meters from home; lat/long quantizes too coarsely per step
	alt  float32
	yaw  float32
	roll float32 // actual bank, deg

	mode   vehicle.FlightMode
	armed  bool
	soarOn bool
	vario  float32

	weakLiftMs int64 // time spent below the quit threshold while thermalling

	pitchStick, rollStick, yawStick float32

	overridePWM uint16
	overrideSet bool
	limits      vehicle.RollChannelLimits
}

func New(opts Options) *Vehicle {
	if opts.AirspeedMS == 0 {
		opts.AirspeedMS = 12
	}
	if opts.MaxAltM == 0 {
		opts.MinAltM, opts.MaxAltM = 100, 400
	}
	return &Vehicle{
		opts:   opts,
		alt:    opts.AltM,
		mode:   vehicle.ModeFlyByWireB,
		armed:  true,
		soarOn: true,
		limits: vehicle.RollChannelLimits{Min: 1000, Trim: 1500, Max: 2000},
	}
}

// Step advances the simulation by dtMs.
func (v *Vehicle) Step(dtMs int64) {
	dt := float32(dtMs) / 1000
	v.ms += dtMs

	v.updateSoaringController(dtMs)
	v.updateRoll(dt)

	// Standard-rate turn physics: turn rate grows with bank.
	turnRate := math.Degrees(9.81 * math.Tan(math.Radians(v.roll)) / v.opts.AirspeedMS)
	v.yaw = math.NormalizeHeading(v.yaw + turnRate*dt)

	// Ground track: airspeed along heading plus wind drift.
	sc := math.SinCos(math.Radians(v.yaw))
	vel := [2]float32{
		sc[0]*v.opts.AirspeedMS + v.opts.Wind[0],
		sc[1]*v.opts.AirspeedMS + v.opts.Wind[1],
	}
	v.posM[0] += float64(vel[0]) * float64(dt)
	v.posM[1] += float64(vel[1]) * float64(dt)

	v.vario = v.liftAt(v.position()) - baseSinkMS
	v.alt += v.vario * dt
}

func (v *Vehicle) position() math.Point2LL {
	return math.OffsetM2LL(v.opts.Home, [2]float32{float32(v.posM[0]), float32(v.posM[1])})
}

// updateSoaringController emulates the autopilot's thermal controller:
// latch into a climb on strong lift, circle until the band top or the
// lift dies, then hand back to cruise.
func (v *Vehicle) updateSoaringController(dtMs int64) {
	if !v.soarOn {
		return
	}
	switch v.mode {
	case vehicle.ModeFlyByWireB, vehicle.ModeCruise:
		if v.vario > liftTriggerMS && v.alt < v.opts.MaxAltM {
			v.mode = vehicle.ModeThermal
			v.weakLiftMs = 0
		}
	case vehicle.ModeThermal:
		if v.vario < liftQuitMS {
			v.weakLiftMs += dtMs
		} else {
			v.weakLiftMs = 0
		}
		if v.alt >= v.opts.MaxAltM || v.weakLiftMs > 10_000 {
			v.mode = vehicle.ModeFlyByWireB
		}
	}
}

func (v *Vehicle) updateRoll(dt float32) {
	target := float32(0)
	switch {
	case v.mode == vehicle.ModeThermal:
		target = thermalRollDeg
	case v.overrideSet:
		pwm := float32(v.overridePWM)
		trim := float32(v.limits.Trim)
		if pwm >= trim {
			target = (pwm - trim) / float32(v.limits.Max-v.limits.Trim) * airframeRoll
		} else {
			target = (pwm - trim) / float32(v.limits.Trim-v.limits.Min) * airframeRoll
		}
	}
	v.roll += math.Clamp(target-v.roll, -rollRateDegS*dt, rollRateDegS*dt)
}

func (v *Vehicle) liftAt(p math.Point2LL) float32 {
	var lift float32
	for _, th := range v.opts.Thermals {
		d := math.DistanceM(p, th.Position)
		if d < th.RadiusM {
			frac := 1 - d/th.RadiusM
			lift += th.Strength * frac * frac
		}
	}
	return lift
}

// SetSticks injects pilot input for tests and interactive hosts.
func (v *Vehicle) SetSticks(roll, pitch, yaw float32) {
	v.rollStick, v.pitchStick, v.yawStick = roll, pitch, yaw
}

func (v *Vehicle) SetMode(m vehicle.FlightMode) { v.mode = m }
func (v *Vehicle) SetSoaring(on bool)           { v.soarOn = on }
func (v *Vehicle) Vario() float32               { return v.vario }

// Backend implementation.

func (v *Vehicle) Position() (math.Point2LL, bool) { return v.position(), true }
func (v *Vehicle) Yaw() float32                    { return v.yaw }
func (v *Vehicle) RelativeAltitude() float32       { return v.alt }
func (v *Vehicle) Home() (math.Point2LL, bool)     { return v.opts.Home, true }
func (v *Vehicle) Wind() ([2]float32, bool)        { return v.opts.Wind, true }
func (v *Vehicle) Armed() bool                     { return v.armed }
func (v *Vehicle) Mode() vehicle.FlightMode        { return v.mode }
func (v *Vehicle) SoaringActive() bool             { return v.soarOn }
func (v *Vehicle) Millis() int64                   { return v.ms }

// RC implementation.

func (v *Vehicle) PitchNorm() float32                    { return v.pitchStick }
func (v *Vehicle) RollNorm() float32                     { return v.rollStick }
func (v *Vehicle) YawNorm() float32                      { return v.yawStick }
func (v *Vehicle) RollLimits() vehicle.RollChannelLimits { return v.limits }
func (v *Vehicle) SetRollOverride(pwm uint16)            { v.overrideSet, v.overridePWM = true, pwm }
func (v *Vehicle) ClearRollOverride()                    { v.overrideSet = false }
