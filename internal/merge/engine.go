// Package merge collapses an avatar and its visible wearables into one
// combined object and restores them on unmerge.
package merge

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fitroom/internal/mesh"
	"fitroom/internal/registry"
)

// Combined is the merged object.
type Combined struct {
	Node         *mesh.Node
	Contributors []string
	Wearables    int
	Vertices     int
	Triangles    int
}

type concatFunc func([]*mesh.Geometry, bool, *mesh.Tracker) (*mesh.Geometry, error)

// Engine owns the combined object and the visibility snapshot needed to
// undo a merge. Not safe for concurrent use.
type Engine struct {
	tracker  *mesh.Tracker
	logger   *zap.Logger
	concat   concatFunc
	combined *Combined
	// restore maps each contributor to its visibility before the merge.
	restore map[*registry.Instance]bool
}

func NewEngine(tracker *mesh.Tracker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tracker: tracker,
		logger:  logger.With(zap.String("component", "merge")),
		concat:  mesh.MergeGeometries,
	}
}

func (e *Engine) Merged() bool { return e.combined != nil }

// Combined returns the merged object, or nil.
func (e *Engine) Combined() *Combined { return e.combined }

// Merge bakes the avatar and every visible wearable into world space,
// reconciles their layouts, concatenates them and hides the contributors.
// On any failure no state changes and every transient resource is freed.
func (e *Engine) Merge(avatar *registry.Instance, wearables []*registry.Instance) (res *Combined, err error) {
	if e.combined != nil {
		return nil, &Error{Reason: ReasonAlreadyMerged}
	}
	if avatar == nil || avatar.Fragment == nil {
		return nil, &Error{Reason: ReasonNoAvatar}
	}
	var visible []*registry.Instance
	for _, w := range wearables {
		if w.Visible && w.Fragment != nil {
			visible = append(visible, w)
		}
	}
	if len(visible) == 0 {
		return nil, &Error{Reason: ReasonNoWearables}
	}

	start := time.Now()
	contributors := append([]*registry.Instance{avatar}, visible...)

	var transient []*mesh.Geometry
	var out *mesh.Geometry
	var mat *mesh.Material
	defer func() {
		for _, g := range transient {
			g.Dispose()
		}
		if r := recover(); r != nil {
			err = &Error{Reason: ReasonFailed, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			out.Dispose()
			mat.Dispose()
			res = nil
		}
	}()

	var material *mesh.Material
	for _, c := range contributors {
		c.UpdateWorld()
		for _, n := range c.Fragment.MeshNodes() {
			g := n.Mesh.Geometry.Clone()
			transient = append(transient, g)
			g.ApplyMatrix(n.World)
			if material == nil && n.Mesh.Material != nil {
				material = n.Mesh.Material
			}
		}
	}
	if len(transient) == 0 {
		return nil, &Error{Reason: ReasonFailed, Err: errors.New("contributors have no meshes")}
	}

	Reconcile(transient)
	out, err = e.concat(transient, true, e.tracker)
	if err != nil {
		return nil, &Error{Reason: ReasonFailed, Err: err}
	}

	if material != nil {
		mat = material.Clone()
	} else {
		mat = mesh.DefaultMaterial(e.tracker)
	}
	node := mesh.NewNode("merged-look")
	node.Mesh = &mesh.Mesh{Name: "merged-look", Geometry: out, Material: mat, CastShadow: true, ReceiveShadow: true}

	e.restore = make(map[*registry.Instance]bool, len(contributors))
	ids := make([]string, 0, len(contributors))
	for _, c := range contributors {
		e.restore[c] = c.Visible
		c.Visible = false
		ids = append(ids, c.ID)
	}
	e.combined = &Combined{
		Node:         node,
		Contributors: ids,
		Wearables:    len(visible),
		Vertices:     out.VertexCount(),
		Triangles:    out.TriangleCount(),
	}
	e.logger.Info("merged look",
		zap.Int("wearables", len(visible)),
		zap.Int("vertices", out.VertexCount()),
		zap.Duration("took", time.Since(start)),
	)
	return e.combined, nil
}

// Unmerge disposes the combined object and restores each contributor's
// pre-merge visibility.
func (e *Engine) Unmerge() error {
	if e.combined == nil {
		return &Error{Reason: ReasonNotMerged}
	}
	e.combined.Node.Dispose()
	for inst, v := range e.restore {
		inst.Visible = v
	}
	e.combined = nil
	e.restore = nil
	e.logger.Info("unmerged look")
	return nil
}
