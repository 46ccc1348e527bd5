// Package controller turns pointer, gizmo and joystick input into instance
// transform changes.
package controller

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"fitroom/internal/mathutil"
	"fitroom/internal/registry"
)

var (
	ErrBusy         = errors.New("controller: another manipulation is active")
	ErrNoSelection  = errors.New("controller: nothing selected")
	ErrNoGizmo      = errors.New("controller: no gizmo active")
	ErrNotDraggable = errors.New("controller: instance is not draggable")
)

// GizmoMode selects which transform component a gizmo edits.
type GizmoMode string

const (
	GizmoTranslate GizmoMode = "translate"
	GizmoRotate    GizmoMode = "rotate"
)

// ParseGizmoMode validates a mode name.
func ParseGizmoMode(s string) (GizmoMode, error) {
	switch GizmoMode(s) {
	case GizmoTranslate, GizmoRotate:
		return GizmoMode(s), nil
	case "":
		return GizmoTranslate, nil
	}
	return "", fmt.Errorf("controller: unknown gizmo mode %q", s)
}

// Pointer is a pointer event in normalized device coordinates. Target,
// when set, names the instance the client already hit-tested.
type Pointer struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Target string  `json:"target,omitempty"`
}

type drag struct {
	id    string
	plane mathutil.Plane
	last  mathutil.Vec3
}

type gizmo struct {
	id   string
	mode GizmoMode
}

// State is a read-only view of the controller.
type State struct {
	Dragging     string    `json:"dragging,omitempty"`
	Gizmo        string    `json:"gizmo,omitempty"`
	GizmoMode    GizmoMode `json:"gizmoMode,omitempty"`
	OrbitEnabled bool      `json:"orbitEnabled"`
	Velocity     float64   `json:"rotationVelocity"`
}

// Controller holds the manipulation state of one room. At most one
// instance is dragged or gizmo-held at a time. Not safe for concurrent
// use; the room serializes access.
type Controller struct {
	reg      *registry.Registry
	orbit    Orbit
	drag     *drag
	gizmo    *gizmo
	velocity float64
	logger   *zap.Logger
}

func New(reg *registry.Registry, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{reg: reg, logger: logger.With(zap.String("component", "controller"))}
}

func (c *Controller) State() State {
	s := State{OrbitEnabled: c.orbit.Enabled(), Velocity: c.velocity}
	if c.drag != nil {
		s.Dragging = c.drag.id
	}
	if c.gizmo != nil {
		s.Gizmo = c.gizmo.id
		s.GizmoMode = c.gizmo.mode
	}
	return s
}

func (c *Controller) OrbitEnabled() bool { return c.orbit.Enabled() }

// Interacting reports whether id is being dragged or gizmo-held.
func (c *Controller) Interacting(id string) bool {
	return (c.drag != nil && c.drag.id == id) || (c.gizmo != nil && c.gizmo.id == id)
}

// PointerDown starts dragging the nearest visible wearable under the
// pointer, or the explicit Target when one is given. It returns
// the dragged id, or "" when the pointer hit nothing draggable.
func (c *Controller) PointerDown(cam Camera, p Pointer) (string, error) {
	if c.reg.Locked() {
		return "", registry.ErrMerged
	}
	if c.drag != nil || c.gizmo != nil {
		return "", ErrBusy
	}
	ray := cam.Ray(p.X, p.Y)

	var target *registry.Instance
	var dist float64
	if p.Target != "" {
		inst, ok := c.reg.Get(p.Target)
		if !ok {
			return "", registry.ErrNotFound
		}
		if inst.IsAvatar() || !inst.Visible {
			return "", ErrNotDraggable
		}
		target = inst
		var hit bool
		if dist, hit = ray.IntersectBox(inst.Bounds()); !hit {
			dist = math.Max(0, inst.Bounds().Center().Sub(ray.Origin).Dot(ray.Dir))
		}
	} else {
		// The avatar is never a drag target, and worn wearables sit inside
		// its box, so it takes no part in the pick.
		dist = math.Inf(1)
		for _, inst := range c.reg.Wearables() {
			if !inst.Visible {
				continue
			}
			if t, ok := ray.IntersectBox(inst.Bounds()); ok && t < dist {
				target, dist = inst, t
			}
		}
		if target == nil {
			return "", nil
		}
	}

	owner := "drag:" + target.ID
	if !c.orbit.Acquire(owner) {
		return "", ErrBusy
	}
	contact := ray.At(dist)
	c.drag = &drag{
		id:    target.ID,
		plane: mathutil.PlaneFromPoint(cam.Forward().Neg(), contact),
		last:  contact,
	}
	c.logger.Debug("drag started", zap.String("id", target.ID))
	return target.ID, nil
}

// PointerMove moves the dragged instance by the displacement of the
// pointer's intersection with the drag plane. It reports whether the
// instance moved.
func (c *Controller) PointerMove(cam Camera, p Pointer) bool {
	if c.drag == nil {
		return false
	}
	inst, ok := c.reg.Get(c.drag.id)
	if !ok {
		c.endDrag()
		return false
	}
	hit, ok := cam.Ray(p.X, p.Y).IntersectPlane(c.drag.plane)
	if !ok {
		return false
	}
	inst.Transform.Position = inst.Transform.Position.Add(hit.Sub(c.drag.last))
	c.drag.last = hit
	return true
}

// PointerUp ends the drag and returns the released id.
func (c *Controller) PointerUp() string { return c.endDrag() }

// PointerLeave ends the drag when the pointer leaves the surface.
func (c *Controller) PointerLeave() string { return c.endDrag() }

func (c *Controller) endDrag() string {
	if c.drag == nil {
		return ""
	}
	id := c.drag.id
	c.orbit.Release("drag:" + id)
	c.drag = nil
	c.logger.Debug("drag ended", zap.String("id", id))
	return id
}

// Select changes the selection, detaching any gizmo from the previous one.
func (c *Controller) Select(id string) error {
	if c.reg.Locked() {
		return registry.ErrMerged
	}
	if err := c.reg.Select(id); err != nil {
		return err
	}
	if c.gizmo != nil && c.gizmo.id != id {
		c.EndGizmo()
	}
	return nil
}

// BeginGizmo attaches a gizmo to the selected instance.
func (c *Controller) BeginGizmo(mode GizmoMode) error {
	if c.reg.Locked() {
		return registry.ErrMerged
	}
	id := c.reg.Selected()
	if id == "" {
		return ErrNoSelection
	}
	if c.drag != nil {
		return ErrBusy
	}
	if c.gizmo != nil {
		if c.gizmo.id == id {
			c.gizmo.mode = mode
			return nil
		}
		return ErrBusy
	}
	if !c.orbit.Acquire("gizmo:" + id) {
		return ErrBusy
	}
	c.gizmo = &gizmo{id: id, mode: mode}
	return nil
}

// UpdateGizmo applies the component of t that the gizmo mode edits.
func (c *Controller) UpdateGizmo(t registry.Transform) error {
	if c.gizmo == nil {
		return ErrNoGizmo
	}
	inst, ok := c.reg.Get(c.gizmo.id)
	if !ok {
		c.EndGizmo()
		return registry.ErrNotFound
	}
	if !t.Position.IsFinite() || !t.Rotation.IsFinite() {
		return fmt.Errorf("controller: non-finite transform")
	}
	switch c.gizmo.mode {
	case GizmoTranslate:
		inst.Transform.Position = t.Position
	case GizmoRotate:
		inst.Transform.Rotation = t.Rotation
	}
	return nil
}

// EndGizmo detaches the gizmo and returns the orbit control.
func (c *Controller) EndGizmo() {
	if c.gizmo == nil {
		return
	}
	c.orbit.Release("gizmo:" + c.gizmo.id)
	c.gizmo = nil
}

// SetVelocity sets the joystick rotation velocity, clamped to [-1, 1].
func (c *Controller) SetVelocity(v float64) {
	if math.IsNaN(v) {
		v = 0
	}
	c.velocity = math.Max(-1, math.Min(1, v))
}

func (c *Controller) Velocity() float64 { return c.velocity }

// ResetTransform zeroes an instance's position and rotation.
func (c *Controller) ResetTransform(id string) error {
	if c.reg.Locked() {
		return registry.ErrMerged
	}
	inst, ok := c.reg.Get(id)
	if !ok {
		return registry.ErrNotFound
	}
	inst.Transform = registry.Transform{}
	return nil
}

// Forget drops manipulation state that refers to id.
func (c *Controller) Forget(id string) {
	if c.drag != nil && c.drag.id == id {
		c.endDrag()
	}
	if c.gizmo != nil && c.gizmo.id == id {
		c.EndGizmo()
	}
}

// Suspend ends every manipulation and clears the selection.
func (c *Controller) Suspend() {
	c.endDrag()
	c.EndGizmo()
	_ = c.reg.Select("")
}
