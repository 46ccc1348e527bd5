package room

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fitroom/internal/controller"
	"fitroom/internal/merge"
	"fitroom/internal/registry"
)

// UnloadWearable removes one wearable and releases its resources.
func (r *Room) UnloadWearable(id string) error {
	return r.act("unloadWearable", "Could not remove wearable", func() error {
		if id == registry.AvatarID {
			return ErrNotWearable
		}
		inst, ok := r.reg.Get(id)
		if !ok {
			return registry.ErrNotFound
		}
		if r.reg.Locked() {
			return registry.ErrMerged
		}
		name := inst.Name
		r.ctrl.Forget(id)
		if err := r.reg.Remove(id); err != nil {
			return err
		}
		r.notify(LevelSuccess, "Wearable removed", name)
		return nil
	})
}

// UnloadAll removes every wearable and drops wearable loads in flight.
// The avatar stays.
func (r *Room) UnloadAll() error {
	return r.act("unloadAll", "Could not remove wearables", func() error {
		if r.reg.Locked() {
			return registry.ErrMerged
		}
		for _, w := range r.reg.Wearables() {
			r.ctrl.Forget(w.ID)
		}
		n, err := r.reg.RemoveWearables()
		if err != nil {
			return err
		}
		r.wearableGen++
		for k, p := range r.pending {
			if p.Slot == SlotWearable {
				delete(r.pending, k)
			}
		}
		r.notify(LevelSuccess, "All wearables removed", fmt.Sprintf("%d item(s) unloaded", n))
		return nil
	})
}

// Select changes the selection; "" clears it.
func (r *Room) Select(id string) error {
	return r.act("select", "Could not select", func() error {
		if id == registry.AvatarID {
			if _, loading := r.pending[string(SlotAvatar)]; loading {
				return ErrLoading
			}
		}
		return r.ctrl.Select(id)
	})
}

// SetWearableVisible shows or hides a wearable. Hidden wearables are left
// out of merges.
func (r *Room) SetWearableVisible(id string, visible bool) error {
	return r.act("setWearableVisible", "Could not change visibility", func() error {
		if id == registry.AvatarID {
			return ErrNotWearable
		}
		if err := r.reg.SetVisible(id, visible); err != nil {
			return err
		}
		if !visible {
			r.ctrl.Forget(id)
		}
		return nil
	})
}

// SetRotationVelocity sets the joystick velocity in [-1, 1].
func (r *Room) SetRotationVelocity(v float64) error {
	return r.act("setRotationVelocity", "Could not rotate", func() error {
		r.ctrl.SetVelocity(v)
		return nil
	})
}

// ResetTransform returns an instance to the origin with no rotation.
func (r *Room) ResetTransform(id string) error {
	return r.act("resetTransform", "Could not reset transform", func() error {
		if err := r.ctrl.ResetTransform(id); err != nil {
			return err
		}
		r.reg.MarkCentering()
		return nil
	})
}

// MergeLook bakes the avatar and visible wearables into one object. On
// success the registry is locked and manipulation ends.
func (r *Room) MergeLook() error {
	return r.act("mergeLook", "Merge failed", func() error {
		start := time.Now()
		res, err := r.merge.Merge(r.reg.Avatar(), r.reg.Wearables())
		if err != nil {
			r.metrics.RecordMerge(mergeOutcome(err), 0)
			r.logger.Warn("merge rejected", zap.Error(err))
			return err
		}
		r.metrics.RecordMerge("ok", time.Since(start))
		r.ctrl.Suspend()
		r.reg.SetLocked(true)
		r.reg.MarkCentering()
		r.notify(LevelSuccess, "Models merged successfully",
			fmt.Sprintf("Combined avatar with %d wearable(s)", res.Wearables))
		return nil
	})
}

// UnmergeLook discards the combined object and restores the contributors.
func (r *Room) UnmergeLook() error {
	return r.act("unmergeLook", "Unmerge failed", func() error {
		if err := r.merge.Unmerge(); err != nil {
			return err
		}
		r.reg.SetLocked(false)
		r.reg.MarkCentering()
		r.notify(LevelSuccess, "Look unmerged", "Avatar and wearables restored")
		return nil
	})
}

// ResetCameraFraming frames the camera on the current scene bounds.
func (r *Room) ResetCameraFraming() error {
	return r.act("resetCameraFraming", "Could not re-center", func() error {
		r.reg.TakeCentering()
		r.recenter()
		if r.framing.Empty {
			r.camera = controller.DefaultCamera()
		} else {
			r.camera = r.camera.Frame(r.framing.Center, r.framing.Radius)
		}
		r.notify(LevelSuccess, "Scene re-centered", "")
		return nil
	})
}

// SetCamera replaces the camera used for pointer picking, as reported by
// the client after it orbits.
func (r *Room) SetCamera(cam controller.Camera) error {
	return r.act("setCamera", "Invalid camera", func() error {
		if !cam.Position.IsFinite() || !cam.Target.IsFinite() || !cam.Up.IsFinite() {
			return fmt.Errorf("room: camera has non-finite components")
		}
		r.camera = cam
		return nil
	})
}

// PointerDown starts dragging the wearable under the pointer and returns
// its id, or "" when nothing draggable was hit.
func (r *Room) PointerDown(p controller.Pointer) (string, error) {
	var id string
	err := r.act("pointerDown", "Could not move item", func() error {
		var err error
		id, err = r.ctrl.PointerDown(r.camera, p)
		return err
	})
	return id, err
}

// PointerMove continues a drag. It reports whether anything moved.
func (r *Room) PointerMove(p controller.Pointer) bool {
	var moved bool
	_ = r.act("pointerMove", "Could not move item", func() error {
		moved = r.ctrl.PointerMove(r.camera, p)
		return nil
	})
	return moved
}

// PointerUp ends a drag and returns the released id.
func (r *Room) PointerUp() string {
	var id string
	_ = r.act("pointerUp", "Could not move item", func() error {
		if id = r.ctrl.PointerUp(); id != "" {
			r.reg.MarkCentering()
		}
		return nil
	})
	return id
}

// PointerLeave ends a drag when the pointer leaves the viewport.
func (r *Room) PointerLeave() string {
	var id string
	_ = r.act("pointerLeave", "Could not move item", func() error {
		if id = r.ctrl.PointerLeave(); id != "" {
			r.reg.MarkCentering()
		}
		return nil
	})
	return id
}

// BeginGizmo attaches a translate or rotate gizmo to the selection.
func (r *Room) BeginGizmo(mode string) error {
	return r.act("gizmoBegin", "Could not attach gizmo", func() error {
		m, err := controller.ParseGizmoMode(mode)
		if err != nil {
			return err
		}
		return r.ctrl.BeginGizmo(m)
	})
}

// UpdateGizmo applies a gizmo edit to the held instance.
func (r *Room) UpdateGizmo(t registry.Transform) error {
	return r.act("gizmoUpdate", "Could not transform item", func() error {
		return r.ctrl.UpdateGizmo(t)
	})
}

// EndGizmo releases the gizmo.
func (r *Room) EndGizmo() error {
	return r.act("gizmoEnd", "Could not release gizmo", func() error {
		r.ctrl.EndGizmo()
		r.reg.MarkCentering()
		return nil
	})
}

func mergeOutcome(err error) string {
	var me *merge.Error
	if errors.As(err, &me) {
		return string(me.Reason)
	}
	return "error"
}
