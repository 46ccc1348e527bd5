package room

import (
	"context"
	"errors"
	"fmt"

	"fitroom/internal/controller"
	"fitroom/internal/registry"
)

var (
	ErrUnknownAction = errors.New("room: unknown action")
	ErrInvalidAction = errors.New("room: invalid action")
)

// Action is a user action as sent by clients over HTTP or WebSocket.
type Action struct {
	Action    string              `json:"action"`
	URL       string              `json:"url,omitempty"`
	Name      string              `json:"name,omitempty"`
	ID        string              `json:"id,omitempty"`
	Visible   *bool               `json:"visible,omitempty"`
	Velocity  float64             `json:"velocity,omitempty"`
	Mode      string              `json:"mode,omitempty"`
	Pointer   *controller.Pointer `json:"pointer,omitempty"`
	Camera    *controller.Camera  `json:"camera,omitempty"`
	Transform *registry.Transform `json:"transform,omitempty"`
}

// Result is returned by actions that produce an id.
type Result struct {
	ID    string `json:"id,omitempty"`
	Moved bool   `json:"moved,omitempty"`
}

// Dispatch runs a named action. Loads block until the asset is ready or
// ctx is done.
func (r *Room) Dispatch(ctx context.Context, a Action) (Result, error) {
	if a.Camera != nil {
		if err := r.SetCamera(*a.Camera); err != nil {
			return Result{}, err
		}
	}
	switch a.Action {
	case "loadAvatar":
		if a.URL == "" {
			return Result{}, fmt.Errorf("%w: loadAvatar: url is required", ErrInvalidAction)
		}
		return Result{ID: registry.AvatarID}, r.LoadAvatar(ctx, a.URL)
	case "loadWearable":
		if a.URL == "" {
			return Result{}, fmt.Errorf("%w: loadWearable: url is required", ErrInvalidAction)
		}
		var at registry.Transform
		if a.Transform != nil {
			at = *a.Transform
		}
		id, err := r.LoadWearableAt(ctx, a.URL, a.Name, at)
		return Result{ID: id}, err
	case "unloadWearable":
		return Result{}, r.UnloadWearable(a.ID)
	case "unloadAll":
		return Result{}, r.UnloadAll()
	case "select":
		return Result{ID: a.ID}, r.Select(a.ID)
	case "setWearableVisible":
		if a.Visible == nil {
			return Result{}, fmt.Errorf("%w: setWearableVisible: visible is required", ErrInvalidAction)
		}
		return Result{}, r.SetWearableVisible(a.ID, *a.Visible)
	case "setRotationVelocity":
		return Result{}, r.SetRotationVelocity(a.Velocity)
	case "resetTransform":
		return Result{}, r.ResetTransform(a.ID)
	case "mergeLook":
		return Result{}, r.MergeLook()
	case "unmergeLook":
		return Result{}, r.UnmergeLook()
	case "resetCameraFraming":
		return Result{}, r.ResetCameraFraming()
	case "setCamera":
		if a.Camera == nil {
			return Result{}, fmt.Errorf("%w: setCamera: camera is required", ErrInvalidAction)
		}
		return Result{}, nil
	case "pointerDown":
		if a.Pointer == nil {
			return Result{}, fmt.Errorf("%w: pointerDown: pointer is required", ErrInvalidAction)
		}
		id, err := r.PointerDown(*a.Pointer)
		return Result{ID: id}, err
	case "pointerMove":
		if a.Pointer == nil {
			return Result{}, fmt.Errorf("%w: pointerMove: pointer is required", ErrInvalidAction)
		}
		return Result{Moved: r.PointerMove(*a.Pointer)}, nil
	case "pointerUp":
		return Result{ID: r.PointerUp()}, nil
	case "pointerLeave":
		return Result{ID: r.PointerLeave()}, nil
	case "gizmoBegin":
		return Result{}, r.BeginGizmo(a.Mode)
	case "gizmoUpdate":
		if a.Transform == nil {
			return Result{}, fmt.Errorf("%w: gizmoUpdate: transform is required", ErrInvalidAction)
		}
		return Result{}, r.UpdateGizmo(*a.Transform)
	case "gizmoEnd":
		return Result{}, r.EndGizmo()
	}
	return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, a.Action)
}
