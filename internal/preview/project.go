package preview

import (
	"math"

	"fitroom/internal/mathutil"
)

// projection maps view-space points to screen pixels.
type projection struct {
	center      mathutil.Vec3
	scale       float64
	halfW       float64
	halfH       float64
	perspective bool
	camDist     float64
	zCenter     float64
}

// fitProjection frames the view-space box b into a w×h target with margin
// pixels on each side. With perspective, the camera distance is chosen so
// the widest extent fills the given field of view.
func fitProjection(b mathutil.Box3, w, h, margin int, perspective bool, fovDeg float64) projection {
	size := b.Size()
	spanX := math.Max(size[0], 0.001)
	spanY := math.Max(size[1], 0.001)
	availW := float64(max(w-2*margin, 1))
	availH := float64(max(h-2*margin, 1))
	p := projection{
		center: b.Center(),
		scale:  math.Min(availW/spanX, availH/spanY),
		halfW:  float64(w) / 2,
		halfH:  float64(h) / 2,
	}
	if perspective {
		if fovDeg <= 0 {
			fovDeg = 30
		}
		half := math.Max(spanX, spanY) / 2
		p.perspective = true
		p.camDist = half/math.Tan(mathutil.Deg2Rad(fovDeg/2)) + size[2]/2
		p.zCenter = p.center[2]
	}
	return p
}

// project returns screen x, y (y down) and depth (larger is nearer).
func (p projection) project(t mathutil.Vec3) (float64, float64, float64) {
	x, y := t[0]-p.center[0], t[1]-p.center[1]
	if p.perspective {
		depth := math.Max(p.camDist-(t[2]-p.zCenter), 0.1)
		f := p.camDist / depth
		x *= f
		y *= f
	}
	return x*p.scale + p.halfW, -y*p.scale + p.halfH, t[2]
}
