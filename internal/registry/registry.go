// Package registry tracks the avatar and wearable instances of a room.
package registry

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
)

// AvatarID is the fixed id of the avatar slot.
const AvatarID = "avatar"

var (
	ErrMerged   = errors.New("registry: not allowed while merged")
	ErrNotFound = errors.New("registry: instance not found")
)

// Transform is the user-controlled placement of an instance. Rotation is
// XYZ Euler in radians.
type Transform struct {
	Position mathutil.Vec3 `json:"position"`
	Rotation mathutil.Vec3 `json:"rotation"`
}

func (t Transform) Matrix() mathutil.Mat4 {
	return mathutil.Compose(t.Position, t.Rotation, mathutil.One)
}

// Instance is a placed fragment. Its fragment is exclusively owned and is
// disposed when the instance is removed or replaced.
type Instance struct {
	ID        string
	Name      string
	SourceURL string
	Transform Transform
	Visible   bool
	Fragment  *mesh.Node
}

func (i *Instance) IsAvatar() bool { return i.ID == AvatarID }

// UpdateWorld refreshes the fragment's world matrices under the instance
// transform.
func (i *Instance) UpdateWorld() {
	i.Fragment.UpdateWorld(i.Transform.Matrix())
}

// Bounds returns the world-space box of the fragment.
func (i *Instance) Bounds() mathutil.Box3 {
	return i.Fragment.Bounds(i.Transform.Matrix())
}

// Registry owns the avatar slot and the ordered wearable list. It is not
// safe for concurrent use; the owning room serializes access.
type Registry struct {
	avatar    *Instance
	wearables map[string]*Instance
	order     []string
	selected  string
	locked    bool
	centering bool
	newID     func() string
	logger    *zap.Logger
}

func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		wearables: make(map[string]*Instance),
		newID:     uuid.NewString,
		logger:    logger.With(zap.String("component", "registry")),
	}
}

// SetLocked freezes structural mutation while a merged object exists.
func (r *Registry) SetLocked(v bool) { r.locked = v }
func (r *Registry) Locked() bool     { return r.locked }

// RegisterAvatar replaces the avatar fragment. The previous fragment is
// disposed; the avatar transform carries over. On error the caller keeps
// ownership of frag.
func (r *Registry) RegisterAvatar(frag *mesh.Node, url string) (*Instance, error) {
	if r.locked {
		return nil, ErrMerged
	}
	if r.avatar != nil {
		r.avatar.Fragment.Dispose()
		r.avatar.Fragment = frag
		r.avatar.SourceURL = url
		if r.selected == AvatarID {
			r.selected = ""
		}
	} else {
		r.avatar = &Instance{ID: AvatarID, Name: "Avatar", SourceURL: url, Visible: true, Fragment: frag}
	}
	r.centering = true
	r.logger.Debug("avatar registered", zap.String("url", url))
	return r.avatar, nil
}

// RegisterWearable adds a wearable with a fresh id at transform at.
func (r *Registry) RegisterWearable(frag *mesh.Node, url, name string, at Transform) (*Instance, error) {
	if r.locked {
		return nil, ErrMerged
	}
	id := r.newID()
	for id == AvatarID || r.wearables[id] != nil {
		id = r.newID()
	}
	inst := &Instance{ID: id, Name: name, SourceURL: url, Transform: at, Visible: true, Fragment: frag}
	r.wearables[id] = inst
	r.order = append(r.order, id)
	r.centering = true
	r.logger.Debug("wearable registered", zap.String("id", id), zap.String("url", url))
	return inst, nil
}

// Remove disposes and forgets an instance. Removing the selected instance
// clears the selection.
func (r *Registry) Remove(id string) error {
	if r.locked {
		return ErrMerged
	}
	if id == AvatarID {
		if r.avatar == nil {
			return ErrNotFound
		}
		r.avatar.Fragment.Dispose()
		r.avatar = nil
	} else {
		inst, ok := r.wearables[id]
		if !ok {
			return ErrNotFound
		}
		inst.Fragment.Dispose()
		delete(r.wearables, id)
		for i, oid := range r.order {
			if oid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	if r.selected == id {
		r.selected = ""
	}
	r.centering = true
	return nil
}

// RemoveWearables removes every wearable and returns how many were removed.
func (r *Registry) RemoveWearables() (int, error) {
	if r.locked {
		return 0, ErrMerged
	}
	n := len(r.order)
	for _, id := range append([]string(nil), r.order...) {
		if err := r.Remove(id); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (r *Registry) Get(id string) (*Instance, bool) {
	if id == AvatarID {
		return r.avatar, r.avatar != nil
	}
	inst, ok := r.wearables[id]
	return inst, ok
}

func (r *Registry) Avatar() *Instance { return r.avatar }

// Wearables returns wearables in registration order.
func (r *Registry) Wearables() []*Instance {
	out := make([]*Instance, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.wearables[id])
	}
	return out
}

// All returns the avatar (if any) followed by the wearables.
func (r *Registry) All() []*Instance {
	var out []*Instance
	if r.avatar != nil {
		out = append(out, r.avatar)
	}
	return append(out, r.Wearables()...)
}

// SetVisible toggles a wearable's visibility.
func (r *Registry) SetVisible(id string, v bool) error {
	if r.locked {
		return ErrMerged
	}
	inst, ok := r.Get(id)
	if !ok {
		return ErrNotFound
	}
	inst.Visible = v
	r.centering = true
	return nil
}

// Select sets the selection; "" clears it.
func (r *Registry) Select(id string) error {
	if id != "" {
		if _, ok := r.Get(id); !ok {
			return ErrNotFound
		}
	}
	r.selected = id
	return nil
}

func (r *Registry) Selected() string { return r.selected }

// MarkCentering requests a framing recompute on the next frame.
func (r *Registry) MarkCentering() { r.centering = true }

// TakeCentering reports and clears the pending centering flag.
func (r *Registry) TakeCentering() bool {
	v := r.centering
	r.centering = false
	return v
}

// SceneBounds is the world box of every visible instance.
func (r *Registry) SceneBounds() mathutil.Box3 {
	b := mathutil.EmptyBox3()
	for _, inst := range r.All() {
		if inst.Visible {
			b = b.Union(inst.Bounds())
		}
	}
	return b
}
