// Package spin integrates the joystick velocity into avatar yaw.
package spin

import (
	"math"

	"fitroom/internal/registry"
)

// Gain converts joystick velocity to radians per second.
const Gain = 2.5

// Driver advances the avatar's Y rotation each frame.
type Driver struct {
	gain float64
}

// New returns a driver with the given gain; non-positive means Gain.
func New(gain float64) *Driver {
	if gain <= 0 {
		gain = Gain
	}
	return &Driver{gain: gain}
}

func (d *Driver) Gain() float64 { return d.gain }

// Step adds velocity × dt × gain to the avatar yaw unless the avatar is
// busy (selected, dragged or gizmo-held). dt is in seconds. It reports
// whether the rotation changed.
func (d *Driver) Step(avatar *registry.Instance, velocity, dt float64, busy bool) bool {
	if avatar == nil || busy || velocity == 0 || dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return false
	}
	avatar.Transform.Rotation[1] += velocity * dt * d.gain
	return true
}
