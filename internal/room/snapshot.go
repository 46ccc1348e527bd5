package room

import (
	"image"
	"sort"
	"time"

	"fitroom/internal/asset"
	"fitroom/internal/controller"
	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
	"fitroom/internal/preview"
	"fitroom/internal/registry"
)

// Box is a world-space bounding box.
type Box struct {
	Min mathutil.Vec3 `json:"min"`
	Max mathutil.Vec3 `json:"max"`
}

func boxOf(b mathutil.Box3) *Box {
	if b.IsEmpty() {
		return nil
	}
	return &Box{Min: b.Min, Max: b.Max}
}

// InstanceView is the client-facing state of one instance.
type InstanceView struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	URL       string             `json:"url"`
	Transform registry.Transform `json:"transform"`
	Visible   bool               `json:"visible"`
	Selected  bool               `json:"selected"`
	Rigged    bool               `json:"rigged"`
	Meshes    int                `json:"meshes"`
	Vertices  int                `json:"vertices"`
	Triangles int                `json:"triangles"`
	Bounds    *Box               `json:"bounds,omitempty"`
}

// CombinedView describes the merged object.
type CombinedView struct {
	Contributors []string `json:"contributors"`
	Wearables    int      `json:"wearables"`
	Vertices     int      `json:"vertices"`
	Triangles    int      `json:"triangles"`
	Bounds       *Box     `json:"bounds,omitempty"`
}

// Resources counts live owned resources.
type Resources struct {
	Geometries int `json:"geometries"`
	Materials  int `json:"materials"`
}

// Snapshot is a consistent copy of the room state.
type Snapshot struct {
	ID         string            `json:"id"`
	Revision   uint64            `json:"revision"`
	Avatar     *InstanceView     `json:"avatar,omitempty"`
	Wearables  []InstanceView    `json:"wearables"`
	Pending    []Pending         `json:"pending"`
	Selected   string            `json:"selected,omitempty"`
	Merged     bool              `json:"merged"`
	Combined   *CombinedView     `json:"combined,omitempty"`
	Camera     controller.Camera `json:"camera"`
	Framing    Framing           `json:"framing"`
	Controller controller.State  `json:"controller"`
	Resources  Resources         `json:"resources"`
	Created    time.Time         `json:"created"`
}

// Snapshot copies the current state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		ID:         r.ID,
		Revision:   r.rev,
		Wearables:  []InstanceView{},
		Pending:    []Pending{},
		Selected:   r.reg.Selected(),
		Merged:     r.merge.Merged(),
		Camera:     r.camera,
		Framing:    r.framing,
		Controller: r.ctrl.State(),
		Created:    r.created,
		Resources: Resources{
			Geometries: r.tracker.Live(mesh.KindGeometry),
			Materials:  r.tracker.Live(mesh.KindMaterial),
		},
	}
	if av := r.reg.Avatar(); av != nil {
		v := r.view(av)
		s.Avatar = &v
	}
	for _, w := range r.reg.Wearables() {
		s.Wearables = append(s.Wearables, r.view(w))
	}
	for _, p := range r.pending {
		s.Pending = append(s.Pending, p)
	}
	sort.Slice(s.Pending, func(i, j int) bool { return s.Pending[i].Started.Before(s.Pending[j].Started) })
	if c := r.merge.Combined(); c != nil {
		s.Combined = &CombinedView{
			Contributors: append([]string(nil), c.Contributors...),
			Wearables:    c.Wearables,
			Vertices:     c.Vertices,
			Triangles:    c.Triangles,
			Bounds:       boxOf(c.Node.Bounds(mathutil.Mat4Identity())),
		}
	}
	return s
}

func (r *Room) view(inst *registry.Instance) InstanceView {
	class := asset.Classify(inst.Fragment)
	return InstanceView{
		ID:        inst.ID,
		Name:      inst.Name,
		URL:       inst.SourceURL,
		Transform: inst.Transform,
		Visible:   inst.Visible,
		Selected:  r.reg.Selected() == inst.ID,
		Rigged:    class.Rigged(),
		Meshes:    class.Meshes,
		Vertices:  class.Vertices,
		Triangles: class.Triangles,
		Bounds:    boxOf(inst.Bounds()),
	}
}

// PreviewItems snapshots what is currently shown: the merged object, or
// every visible instance under its transform.
func (r *Room) PreviewItems() []preview.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.merge.Combined(); c != nil {
		return preview.Collect(c.Node, mathutil.Mat4Identity())
	}
	var items []preview.Item
	for _, inst := range r.reg.All() {
		if inst.Visible {
			items = append(items, preview.Collect(inst.Fragment, inst.Transform.Matrix())...)
		}
	}
	return items
}

// Preview renders the room. Rendering happens outside the room lock.
func (r *Room) Preview(opts preview.Options) *image.NRGBA {
	return preview.Render(r.PreviewItems(), opts)
}
