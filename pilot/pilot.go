// pilot/pilot.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package pilot watches the sticks: deadzone override detection,
// centered-stick resume timing, and the two gesture recognizers that
// toggle persistent override and re-center the operational area.
package pilot

import (
	"github.com/avsoar/soarnav/log"
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/util"
)

const (
	// Deadzone on normalized stick input; anything beyond it while
	// navigating hands control back to the pilot.
	Deadzone = 0.15

	// Normalized deflection that counts as a gesture crossing.
	gestureThreshold = 0.6

	// A crossing must follow the previous one within this window or
	// the recognizer resets.
	gestureCrossTimeoutMs = 1500

	// Alternating crossings needed to fire a gesture.
	gestureCrossings = 4

	// Centered sticks must hold this long before navigation resumes.
	resumeDelayMs = 3000
)

// recognizer counts alternating threshold crossings of one stick axis.
// Its state advances idle -> 1 -> 2 -> 3 -> fire, resetting whenever
// the inter-crossing timeout lapses.
type recognizer struct {
	count       int
	lastSign    int
	lastCrossMs int64
}

func (g *recognizer) reset() { *g = recognizer{} }

// update feeds one stick sample; returns true when the gesture fires.
func (g *recognizer) update(nowMs int64, v float32) bool {
	if g.count > 0 && nowMs-g.lastCrossMs > gestureCrossTimeoutMs {
		g.reset()
	}

	sign := 0
	if v > gestureThreshold {
		sign = 1
	} else if v < -gestureThreshold {
		sign = -1
	}
	if sign == 0 || sign == g.lastSign {
		return false
	}

	g.count++
	g.lastSign = sign
	g.lastCrossMs = nowMs
	if g.count < gestureCrossings {
		return false
	}
	g.reset()
	return true
}

// Event reports a fired gesture.
type Event int

const (
	EventNone Event = iota

	// EventOverrideToggled: roll gesture; persistent manual override
	// flipped.
	EventOverrideToggled

	// EventRecenter: pitch gesture; move the area center to the current
	// position (radius mode only; the caller checks).
	EventRecenter
)

// Pilot tracks override state across one or more override episodes.
type Pilot struct {
	lg *log.Logger

	roll  recognizer
	pitch recognizer

	manualOverride bool

	// The pitch gesture is armable once per override episode.
	recenterArmed bool

	centeredSinceMs int64 // 0 while any stick is deflected
}

func New(lg *log.Logger) *Pilot {
	return &Pilot{lg: lg}
}

// InputActive reports non-deadzone pitch or yaw input, the trigger for
// handing control back to the pilot mid-navigation.
func (p *Pilot) InputActive(pitch, yaw float32) bool {
	return math.Abs(pitch) > Deadzone || math.Abs(yaw) > Deadzone
}

// ManualOverride reports the sticky override flag; while set, centered
// sticks never auto-resume navigation.
func (p *Pilot) ManualOverride() bool { return p.manualOverride }

// EnterOverride starts an override episode: recognizers cleared, the
// re-center gesture re-armed, resume timer restarted.
func (p *Pilot) EnterOverride(nowMs int64) {
	p.roll.reset()
	p.pitch.reset()
	p.recenterArmed = true
	p.centeredSinceMs = 0
}

// Reset fully clears gesture and override state, including the sticky
// flag; called when the override episode ends without a resume.
func (p *Pilot) Reset() {
	p.roll.reset()
	p.pitch.reset()
	p.manualOverride = false
	p.recenterArmed = false
	p.centeredSinceMs = 0
}

// Update feeds one tick of stick input during an override episode and
// returns the gesture fired, if any. Also advances the centered-stick
// resume timer.
func (p *Pilot) Update(nowMs int64, roll, pitch, yaw float32) Event {
	if math.Abs(roll) <= Deadzone && math.Abs(pitch) <= Deadzone && math.Abs(yaw) <= Deadzone {
		if p.centeredSinceMs == 0 {
			p.centeredSinceMs = nowMs
		}
	} else {
		p.centeredSinceMs = 0
	}

	if p.roll.update(nowMs, roll) {
		p.manualOverride = !p.manualOverride
		p.lg.Infof("roll gesture: manual override %s",
			util.Select(p.manualOverride, "engaged", "released"))
		return EventOverrideToggled
	}

	if p.pitch.update(nowMs, pitch) && p.recenterArmed {
		p.recenterArmed = false
		p.lg.Infof("pitch gesture: area re-center requested")
		return EventRecenter
	}
	return EventNone
}

// ResumeReady reports whether the sticks have been centered past the
// resume delay and no sticky override blocks auto-resume.
func (p *Pilot) ResumeReady(nowMs int64) bool {
	return !p.manualOverride &&
		p.centeredSinceMs != 0 &&
		nowMs-p.centeredSinceMs >= resumeDelayMs
}
