// nav/controller.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/vehicle"
)

const (
	// Heading-error derivative scale factor applied per controller step.
	derivativeScale = 5

	// Low-pass factor applied when the raw command grows past the
	// previous one; shrinking commands pass through unfiltered so the
	// wings level promptly.
	smoothingAlpha = 0.1
)

// Controller is the PD heading-to-roll loop. Zero value is ready to
// use; Reset clears the error and roll history between targets.
type Controller struct {
	prevErr  float32
	prevRoll float32
}

func (c *Controller) Reset() {
	c.prevErr = 0
	c.prevRoll = 0
}

// RollCommand converts a signed heading error in degrees into a roll
// command clamped to ±rollLimit.
func (c *Controller) RollCommand(headingErr, kp, kd, rollLimit float32) float32 {
	deriv := (headingErr - c.prevErr) * derivativeScale
	raw := headingErr*kp + deriv*kd

	cmd := raw
	if math.Abs(raw) > math.Abs(c.prevRoll) {
		cmd = smoothingAlpha*raw + (1-smoothingAlpha)*c.prevRoll
	}
	cmd = math.Clamp(cmd, -rollLimit, rollLimit)

	c.prevErr = headingErr
	c.prevRoll = cmd
	return cmd
}

// RollToPWM maps a roll command to a raw override on the roll channel.
// The command is expressed as a fraction of the airframe's roll limit
// and scaled into the trim-to-max or trim-to-min span by sign; the
// result never leaves the receiver's [Min,Max] envelope.
func RollToPWM(roll, airframeLimit float32, lim vehicle.RollChannelLimits) uint16 {
	if airframeLimit <= 0 {
		return lim.Trim
	}
	ratio := math.Clamp(roll/airframeLimit, -1, 1)

	var pwm float32
	if ratio >= 0 {
		pwm = float32(lim.Trim) + ratio*float32(lim.Max-lim.Trim)
	} else {
		pwm = float32(lim.Trim) + ratio*float32(lim.Trim-lim.Min)
	}
	return uint16(math.Clamp(pwm, float32(lim.Min), float32(lim.Max)))
}
