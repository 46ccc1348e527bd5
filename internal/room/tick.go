package room

import (
	"math"

	"fitroom/internal/mathutil"
	"fitroom/internal/registry"
)

// Tick advances the room by elapsed seconds. A pending centering request
// is consumed first, then the avatar spins by the joystick velocity unless
// it is merged away, selected or held. It reports whether state changed.
func (r *Room) Tick(elapsed float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	changed := false
	if r.reg.TakeCentering() {
		r.recenter()
		changed = true
	}
	busy := r.merge.Merged() ||
		r.reg.Selected() == registry.AvatarID ||
		r.ctrl.Interacting(registry.AvatarID)
	if r.spin.Step(r.reg.Avatar(), r.ctrl.Velocity(), elapsed, busy) {
		changed = true
	}
	if changed {
		r.rev++
	}
	return changed
}

// recenter recomputes the framing sphere from what is currently shown.
func (r *Room) recenter() {
	b := r.sceneBounds()
	if b.IsEmpty() || !b.Min.IsFinite() || !b.Max.IsFinite() {
		r.framing = Framing{Empty: true}
		return
	}
	r.framing = Framing{Center: b.Center(), Radius: math.Max(b.Radius(), 0)}
}

func (r *Room) sceneBounds() mathutil.Box3 {
	if c := r.merge.Combined(); c != nil {
		return c.Node.Bounds(mathutil.Mat4Identity())
	}
	return r.reg.SceneBounds()
}
