// vehicle/vehicle.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package vehicle defines the flight-controller services the navigation
// engine consumes. These are thin boundaries over the autopilot's own
// estimators and I/O; the engine never reaches past them.
package vehicle

import (
	"github.com/avsoar/soarnav/math"
)

type FlightMode int

const (
	ModeUnknown FlightMode = iota
	ModeManual
	ModeFlyByWireB
	ModeCruise
	ModeAuto
	ModeLoiter
	ModeThermal
	ModeRTL
)

func (m FlightMode) String() string {
	switch m {
	case ModeManual:
		return "MANUAL"
	case ModeFlyByWireB:
		return "FBWB"
	case ModeCruise:
		return "CRUISE"
	case ModeAuto:
		return "AUTO"
	case ModeLoiter:
		return "LOITER"
	case ModeThermal:
		return "THERMAL"
	case ModeRTL:
		return "RTL"
	default:
		return "UNKNOWN"
	}
}

// IsSoaringCapable reports whether autonomous soaring navigation may
// steer the aircraft in this mode.
func (m FlightMode) IsSoaringCapable() bool {
	return m == ModeFlyByWireB || m == ModeCruise
}

// IsThermalClimb reports whether the soaring controller is actively
// circling in lift.
func (m FlightMode) IsThermalClimb() bool {
	return m == ModeThermal || m == ModeLoiter
}

// Backend is the state estimation and vehicle status surface.
type Backend interface {
	// Position returns the current location; ok is false when there is
	// no position fix.
	Position() (p math.Point2LL, ok bool)

	// Yaw returns the current yaw in degrees [0,360).
	Yaw() float32

	// RelativeAltitude returns height above home in meters.
	RelativeAltitude() float32

	// Home returns the home location; ok is false before home is set.
	Home() (p math.Point2LL, ok bool)

	// Wind returns the estimated wind velocity in m/s as an east/north
	// vector pointing in the direction the air mass moves; ok is false
	// when no estimate is available.
	Wind() (v [2]float32, ok bool)

	Armed() bool
	Mode() FlightMode

	// SoaringActive reports the pilot's soaring-enable auxiliary switch.
	SoaringActive() bool

	// Millis is the autopilot's monotonic millisecond clock.
	Millis() int64
}

// RollChannelLimits describes the raw receiver envelope of the roll
// channel; commanded override PWM must stay inside [Min,Max].
type RollChannelLimits struct {
	Min, Trim, Max uint16
}

// RC provides normalized stick reads and the roll servo override.
type RC interface {
	// PitchNorm/RollNorm/YawNorm return stick deflection in [-1,1],
	// zero at trim.
	PitchNorm() float32
	RollNorm() float32
	YawNorm() float32

	RollLimits() RollChannelLimits

	// SetRollOverride commands the roll channel; ClearRollOverride
	// returns it to the pilot/mode controller.
	SetRollOverride(pwm uint16)
	ClearRollOverride()
}

// ParameterStore is the autopilot's key-value tunable store.
type ParameterStore interface {
	Get(name string) (float32, bool)
	Set(name string, value float32) bool
}
