// soar/state.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package soar

type State int

const (
	StateIdle State = iota
	StateNavigating
	StatePilotOverride
	StateThermalPause
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateNavigating:
		return "NAVIGATING"
	case StatePilotOverride:
		return "PILOT_OVERRIDE"
	case StateThermalPause:
		return "THERMAL_PAUSE"
	case StateError:
		return "ERROR"
	default:
		return "INVALID"
	}
}
