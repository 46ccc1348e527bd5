// Package preview rasterizes scene fragments to images on the CPU.
package preview

import (
	"image"
	"image/color"
	"math"

	"fitroom/internal/mathutil"
	"fitroom/internal/mesh"
)

// Item is one drawable with world-space positions. Items are snapshots:
// they share no mutable state with the scene they were collected from.
type Item struct {
	Positions [][3]float32
	UVs       [][2]float32
	Colors    [][4]float32
	Indices   []uint32
	BaseColor [4]float32
	Texture   *image.NRGBA
}

// Collect snapshots every mesh under root using world matrices computed
// from parent. Hidden nodes and their subtrees are skipped.
func Collect(root *mesh.Node, parent mathutil.Mat4) []Item {
	root.UpdateWorld(parent)
	var items []Item
	var walk func(n *mesh.Node)
	walk = func(n *mesh.Node) {
		if !n.Visible {
			return
		}
		if n.Mesh != nil && n.Mesh.Geometry != nil && !n.Mesh.Geometry.Disposed() {
			items = append(items, itemFor(n))
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return items
}

func itemFor(n *mesh.Node) Item {
	g := n.Mesh.Geometry
	it := Item{
		Positions: make([][3]float32, len(g.Positions)),
		BaseColor: [4]float32{0.63, 0.63, 0.67, 1},
	}
	for i, p := range g.Positions {
		it.Positions[i] = n.World.MulPoint(mathutil.Vec3From32(p)).To32()
	}
	if g.Indices != nil {
		it.Indices = append([]uint32(nil), g.Indices...)
	}
	if g.UVs != nil {
		it.UVs = append([][2]float32(nil), g.UVs...)
	}
	if g.Colors != nil {
		it.Colors = append([][4]float32(nil), g.Colors...)
	}
	if m := n.Mesh.Material; m != nil {
		it.BaseColor = m.BaseColor
		it.Texture = m.Texture
	}
	return it
}

// Options control framing and output size.
type Options struct {
	Width       int
	Height      int
	Supersample int
	// Yaw and Pitch orbit the view around the scene, in degrees.
	Yaw         float64
	Pitch       float64
	Perspective bool
	FOV         float64
	Margin      int
	Background  color.NRGBA
}

// DefaultOptions is a square transparent thumbnail seen slightly from
// above, as in the wardrobe previews.
func DefaultOptions() Options {
	return Options{Width: 256, Height: 256, Supersample: 2, Yaw: 20, Pitch: 12, Perspective: true, FOV: 30, Margin: 12}
}

func (o Options) normalized() Options {
	if o.Width <= 0 {
		o.Width = 256
	}
	if o.Height <= 0 {
		o.Height = o.Width
	}
	if o.Supersample <= 0 {
		o.Supersample = 1
	}
	if o.Margin < 0 {
		o.Margin = 0
	}
	return o
}

// Render draws items and returns an Options.Width × Options.Height image.
// Empty input yields a background-filled image.
func Render(items []Item, opts Options) *image.NRGBA {
	opts = opts.normalized()
	rw, rh := opts.Width*opts.Supersample, opts.Height*opts.Supersample
	fb := NewFrameBuffer(rw, rh, opts.Background)

	view := mathutil.Mat3Mul(mathutil.RotX(mathutil.Deg2Rad(opts.Pitch)), mathutil.RotY(mathutil.Deg2Rad(-opts.Yaw)))

	viewPos := make([][]mathutil.Vec3, len(items))
	bounds := mathutil.EmptyBox3()
	for i, it := range items {
		vp := make([]mathutil.Vec3, len(it.Positions))
		for j, p := range it.Positions {
			vp[j] = view.MulVec3(mathutil.Vec3From32(p))
			bounds = bounds.Expand(vp[j])
		}
		viewPos[i] = vp
	}
	if bounds.IsEmpty() {
		return Downsample(fb.Image(), opts.Width, opts.Height)
	}

	proj := fitProjection(bounds, rw, rh, opts.Margin*opts.Supersample, opts.Perspective, opts.FOV)
	lc := DefaultLightConfig()

	for i, it := range items {
		vp := viewPos[i]
		screen := make([]vertex, len(vp))
		for j, t := range vp {
			x, y, z := proj.project(t)
			screen[j] = vertex{x: x, y: y, z: z}
			if it.UVs != nil && j < len(it.UVs) {
				screen[j].u, screen[j].v = float64(it.UVs[j][0]), float64(it.UVs[j][1])
			}
		}
		tex := it.Texture
		if it.UVs == nil {
			tex = nil
		}
		eachTriangle(it, func(a, b, c int) {
			if a >= len(vp) || b >= len(vp) || c >= len(vp) {
				return
			}
			n := vp[b].Sub(vp[a]).Cross(vp[c].Sub(vp[a])).Normalize()
			if n == (mathutil.Vec3{}) {
				return
			}
			rasterizeTriangle(fb, [3]vertex{screen[a], screen[b], screen[c]}, n, tex, faceColor(it, a, b, c), &lc)
		})
	}
	return Downsample(fb.Image(), opts.Width, opts.Height)
}

func eachTriangle(it Item, fn func(a, b, c int)) {
	if it.Indices != nil {
		for i := 0; i+2 < len(it.Indices); i += 3 {
			fn(int(it.Indices[i]), int(it.Indices[i+1]), int(it.Indices[i+2]))
		}
		return
	}
	for i := 0; i+2 < len(it.Positions); i += 3 {
		fn(i, i+1, i+2)
	}
}

// faceColor combines the material base color with the mean vertex color.
// Colors are linear, alpha is scaled to 0..1.
func faceColor(it Item, a, b, c int) [4]float64 {
	out := [4]float64{float64(it.BaseColor[0]), float64(it.BaseColor[1]), float64(it.BaseColor[2]), float64(it.BaseColor[3])}
	if it.Colors != nil && a < len(it.Colors) && b < len(it.Colors) && c < len(it.Colors) {
		for k := 0; k < 4; k++ {
			out[k] *= float64(it.Colors[a][k]+it.Colors[b][k]+it.Colors[c][k]) / 3
		}
	}
	for k := 0; k < 4; k++ {
		out[k] = math.Max(0, out[k])
	}
	return out
}
