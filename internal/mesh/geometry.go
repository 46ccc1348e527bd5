package mesh

import (
	"errors"
	"fmt"
	"sort"

	"fitroom/internal/mathutil"
)

// Standard channel names.
const (
	Position = "position"
	Normal   = "normal"
	UV       = "uv"
	Color    = "color"
)

// ErrIncompatibleLayout is returned by MergeGeometries when inputs differ in
// channel set, indexing or morph targets.
var ErrIncompatibleLayout = errors.New("mesh: incompatible attribute layout")

// Group is a draw range over the index stream (or vertex stream when the
// geometry is not indexed).
type Group struct {
	Start         int
	Count         int
	MaterialIndex int
}

// Geometry holds per-vertex channels and an optional index buffer.
// Channels other than Positions are nil when absent.
type Geometry struct {
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Colors    [][4]float32
	Indices   []uint32

	// Extra carries channels outside the standard set (tangents, skin
	// joints and weights, secondary UVs), keyed by lowercase glTF name.
	Extra map[string][][4]float32
	// Morph maps a channel name to its targets' per-vertex deltas.
	Morph  map[string][][][3]float32
	Groups []Group

	h        *handle
	disposed bool
}

// NewGeometry returns an empty geometry owned by t.
func NewGeometry(t *Tracker) *Geometry {
	return &Geometry{h: t.acquire(KindGeometry)}
}

func (g *Geometry) VertexCount() int { return len(g.Positions) }

// TriangleCount counts complete triangles.
func (g *Geometry) TriangleCount() int {
	if g.Indices != nil {
		return len(g.Indices) / 3
	}
	return len(g.Positions) / 3
}

func (g *Geometry) Indexed() bool { return g.Indices != nil }

// Disposed reports whether Dispose has been called.
func (g *Geometry) Disposed() bool { return g.disposed }

// Dispose releases the geometry. Calling it twice is a no-op.
func (g *Geometry) Dispose() {
	if g == nil || g.disposed {
		return
	}
	g.disposed = true
	g.h.release()
	g.Positions, g.Normals, g.UVs, g.Colors, g.Indices = nil, nil, nil, nil, nil
	g.Extra, g.Morph, g.Groups = nil, nil, nil
}

// Has reports whether the named channel is present.
func (g *Geometry) Has(name string) bool {
	switch name {
	case Position:
		return g.Positions != nil
	case Normal:
		return g.Normals != nil
	case UV:
		return g.UVs != nil
	case Color:
		return g.Colors != nil
	}
	_, ok := g.Extra[name]
	return ok
}

// Layout lists present channel names, sorted.
func (g *Geometry) Layout() []string {
	var out []string
	for _, name := range []string{Position, Normal, UV, Color} {
		if g.Has(name) {
			out = append(out, name)
		}
	}
	for name := range g.Extra {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Delete removes a channel.
func (g *Geometry) Delete(name string) {
	switch name {
	case Position:
		g.Positions = nil
	case Normal:
		g.Normals = nil
	case UV:
		g.UVs = nil
	case Color:
		g.Colors = nil
	default:
		delete(g.Extra, name)
	}
}

// Clone deep-copies the geometry into a new resource owned by the same
// tracker.
func (g *Geometry) Clone() *Geometry {
	c := NewGeometry(g.h.owner())
	c.Positions = clone3(g.Positions)
	c.Normals = clone3(g.Normals)
	if g.UVs != nil {
		c.UVs = append(make([][2]float32, 0, len(g.UVs)), g.UVs...)
	}
	if g.Colors != nil {
		c.Colors = append(make([][4]float32, 0, len(g.Colors)), g.Colors...)
	}
	if g.Indices != nil {
		c.Indices = append(make([]uint32, 0, len(g.Indices)), g.Indices...)
	}
	if g.Extra != nil {
		c.Extra = make(map[string][][4]float32, len(g.Extra))
		for k, v := range g.Extra {
			c.Extra[k] = append([][4]float32(nil), v...)
		}
	}
	if g.Morph != nil {
		c.Morph = make(map[string][][][3]float32, len(g.Morph))
		for k, targets := range g.Morph {
			cp := make([][][3]float32, len(targets))
			for i, t := range targets {
				cp[i] = clone3(t)
			}
			c.Morph[k] = cp
		}
	}
	if g.Groups != nil {
		c.Groups = append([]Group(nil), g.Groups...)
	}
	return c
}

func clone3(s [][3]float32) [][3]float32 {
	if s == nil {
		return nil
	}
	return append(make([][3]float32, 0, len(s)), s...)
}

// ApplyMatrix bakes m into positions and normals.
func (g *Geometry) ApplyMatrix(m mathutil.Mat4) {
	for i, p := range g.Positions {
		g.Positions[i] = m.MulPoint(mathutil.Vec3From32(p)).To32()
	}
	if g.Normals != nil {
		nm := m.NormalMatrix()
		for i, n := range g.Normals {
			g.Normals[i] = nm.MulVec3(mathutil.Vec3From32(n)).Normalize().To32()
		}
	}
}

// Triangles calls fn with the vertex indices of each triangle.
func (g *Geometry) Triangles(fn func(a, b, c int)) {
	if g.Indices != nil {
		for i := 0; i+2 < len(g.Indices); i += 3 {
			fn(int(g.Indices[i]), int(g.Indices[i+1]), int(g.Indices[i+2]))
		}
		return
	}
	for i := 0; i+2 < len(g.Positions); i += 3 {
		fn(i, i+1, i+2)
	}
}

// ComputeVertexNormals replaces the normal channel with area-weighted face
// normals accumulated per vertex.
func (g *Geometry) ComputeVertexNormals() {
	acc := make([]mathutil.Vec3, len(g.Positions))
	g.Triangles(func(a, b, c int) {
		pa := mathutil.Vec3From32(g.Positions[a])
		pb := mathutil.Vec3From32(g.Positions[b])
		pc := mathutil.Vec3From32(g.Positions[c])
		n := pc.Sub(pb).Cross(pa.Sub(pb))
		acc[a] = acc[a].Add(n)
		acc[b] = acc[b].Add(n)
		acc[c] = acc[c].Add(n)
	})
	g.Normals = make([][3]float32, len(g.Positions))
	for i, n := range acc {
		g.Normals[i] = n.Normalize().To32()
	}
}

// Bounds returns the box around all positions transformed by m.
func (g *Geometry) Bounds(m mathutil.Mat4) mathutil.Box3 {
	b := mathutil.EmptyBox3()
	for _, p := range g.Positions {
		b = b.Expand(m.MulPoint(mathutil.Vec3From32(p)))
	}
	return b
}

// Validate checks channel lengths and index range.
func (g *Geometry) Validate() error {
	n := len(g.Positions)
	if g.Normals != nil && len(g.Normals) != n {
		return fmt.Errorf("mesh: normal count %d != vertex count %d", len(g.Normals), n)
	}
	if g.UVs != nil && len(g.UVs) != n {
		return fmt.Errorf("mesh: uv count %d != vertex count %d", len(g.UVs), n)
	}
	if g.Colors != nil && len(g.Colors) != n {
		return fmt.Errorf("mesh: color count %d != vertex count %d", len(g.Colors), n)
	}
	for name, ch := range g.Extra {
		if len(ch) != n {
			return fmt.Errorf("mesh: %s count %d != vertex count %d", name, len(ch), n)
		}
	}
	for _, idx := range g.Indices {
		if int(idx) >= n {
			return fmt.Errorf("mesh: index %d out of range (%d vertices)", idx, n)
		}
	}
	return nil
}
