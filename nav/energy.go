// nav/energy.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package nav turns energy state, thermal memory and the exploration
// grid into waypoint choices and roll commands.
package nav

type EnergyState int

const (
	EnergyNormal EnergyState = iota
	EnergyLow
	EnergyCritical
)

func (e EnergyState) String() string {
	switch e {
	case EnergyLow:
		return "LOW"
	case EnergyCritical:
		return "CRITICAL"
	default:
		return "NORMAL"
	}
}

const (
	// The LOW/NORMAL boundary sits this fraction up the configured
	// soaring altitude band.
	lowBoundaryFrac = 0.3

	// Hysteresis half-width around both energy boundaries, meters.
	energyHysteresisM = 5
)

// EnergyTracker classifies altitude against the soaring band with
// hysteresis so the state cannot chatter across a boundary.
type EnergyTracker struct {
	state EnergyState
}

func (t *EnergyTracker) State() EnergyState { return t.state }

func (t *EnergyTracker) Reset() { t.state = EnergyNormal }

// Update reclassifies for the given altitude above home and the
// configured band [altMin,altMax]. A transition only happens once the
// altitude clears the boundary by the hysteresis margin on the far
// side, so oscillation within the gap holds the current state.
func (t *EnergyTracker) Update(alt, altMin, altMax float32) EnergyState {
	lowBoundary := altMin + lowBoundaryFrac*(altMax-altMin)

	switch t.state {
	case EnergyNormal:
		if alt <= altMin-energyHysteresisM {
			t.state = EnergyCritical
		} else if alt <= lowBoundary-energyHysteresisM {
			t.state = EnergyLow
		}

	case EnergyLow:
		if alt <= altMin-energyHysteresisM {
			t.state = EnergyCritical
		} else if alt >= lowBoundary+energyHysteresisM {
			t.state = EnergyNormal
		}

	case EnergyCritical:
		if alt >= lowBoundary+energyHysteresisM {
			t.state = EnergyNormal
		} else if alt >= altMin+energyHysteresisM {
			t.state = EnergyLow
		}
	}
	return t.state
}
