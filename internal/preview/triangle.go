package preview

import (
	"image"
	"math"

	"fitroom/internal/mathutil"
)

// vertex is a projected vertex: screen x/y, depth z, and texture coords.
type vertex struct {
	x, y, z float64
	u, v    float64
}

// rasterizeTriangle fills one flat-shaded triangle with z-buffering,
// sRGB decode, ACES tone mapping and sRGB encode. base is the linear-space
// multiplier from the material and vertex colors.
func rasterizeTriangle(fb *FrameBuffer, p [3]vertex, normal mathutil.Vec3, tex *image.NRGBA, base [4]float64, lc *LightConfig) {
	shade := lc.Shade(normal) * lc.Exposure

	minX := int(math.Floor(math.Min(math.Min(p[0].x, p[1].x), p[2].x)))
	maxX := int(math.Ceil(math.Max(math.Max(p[0].x, p[1].x), p[2].x)))
	minY := int(math.Floor(math.Min(math.Min(p[0].y, p[1].y), p[2].y)))
	maxY := int(math.Ceil(math.Max(math.Max(p[0].y, p[1].y), p[2].y)))
	minX = max(minX, 0)
	minY = max(minY, 0)
	maxX = min(maxX, fb.Width-1)
	maxY = min(maxY, fb.Height-1)
	if minX > maxX || minY > maxY {
		return
	}

	x0, y0 := p[0].x, p[0].y
	x1, y1 := p[1].x, p[1].y
	x2, y2 := p[2].x, p[2].y
	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det
	dy12, dx21 := y1-y2, x2-x1
	dy20, dx02 := y2-y0, x0-x2

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) + 0.5 - y2
		row := sy * fb.Width
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) + 0.5 - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*p[0].z + w1*p[1].z + w2*p[2].z
			zi := row + sx
			if z <= fb.ZBuf[zi] {
				continue
			}

			var cr, cg, cb, ca uint8 = 255, 255, 255, 255
			if tex != nil {
				u := w0*p[0].u + w1*p[1].u + w2*p[2].u
				v := w0*p[0].v + w1*p[1].v + w2*p[2].v
				cr, cg, cb, ca = SampleTexture(tex, u, v)
			}
			alpha := float64(ca) * base[3]
			if alpha < 8 {
				continue
			}
			fb.ZBuf[zi] = z

			lr := ACESTonemap(srgbToLinear[cr] * base[0] * shade)
			lg := ACESTonemap(srgbToLinear[cg] * base[1] * shade)
			lb := ACESTonemap(srgbToLinear[cb] * base[2] * shade)

			pi := zi * 4
			fb.Color[pi] = clamp255(math.Pow(lr, lc.InvGamma) * 255)
			fb.Color[pi+1] = clamp255(math.Pow(lg, lc.InvGamma) * 255)
			fb.Color[pi+2] = clamp255(math.Pow(lb, lc.InvGamma) * 255)
			fb.Color[pi+3] = clamp255(alpha)
		}
	}
}
