package preview

import (
	"math"

	"fitroom/internal/mathutil"
)

// LightConfig holds precomputed lighting parameters in view space (camera
// looking down -Z, Y up).
type LightConfig struct {
	LightDir mathutil.Vec3
	RimDir   mathutil.Vec3
	HalfMain mathutil.Vec3 // Blinn-Phong half-vector for the key light
	Ambient  float64
	Hemi     float64
	Direct   float64
	Rim      float64
	SpecInt  float64
	SpecPow  float64
	Exposure float64
	InvGamma float64
}

// DefaultLightConfig approximates the studio setup of the fitting room:
// a key light from the upper right front, a cool rim from behind and a
// hemisphere fill.
func DefaultLightConfig() LightConfig {
	lightDir := mathutil.Vec3{5, 5, 5}.Normalize()
	rimDir := mathutil.Vec3{-4, 3, -5}.Normalize()
	viewDir := mathutil.Vec3{0, 0, 1}

	return LightConfig{
		LightDir: lightDir,
		RimDir:   rimDir,
		HalfMain: lightDir.Add(viewDir).Normalize(),
		Ambient:  0.45,
		Hemi:     0.40,
		Direct:   1.20,
		Rim:      0.35,
		SpecInt:  0.25,
		SpecPow:  16.0,
		Exposure: 1.0,
		InvGamma: 1.0 / 2.2,
	}
}

// Shade returns the lighting scalar for a unit face normal. Both faces are
// lit so double-sided cloth renders correctly.
func (lc *LightConfig) Shade(n mathutil.Vec3) float64 {
	ndlMain := math.Abs(n.Dot(lc.LightDir))
	ndlRim := math.Abs(n.Dot(lc.RimDir))
	hemi := (n[1]*0.5 + 0.5) * lc.Hemi
	ndh := math.Abs(n.Dot(lc.HalfMain))
	spec := math.Pow(ndh, lc.SpecPow) * lc.SpecInt
	return lc.Ambient + hemi + ndlMain*lc.Direct + ndlRim*lc.Rim + spec
}

// Precomputed sRGB-to-linear lookup table.
var srgbToLinear [256]float64

func init() {
	for i := 0; i < 256; i++ {
		srgbToLinear[i] = math.Pow(float64(i)/255.0, 2.2)
	}
}

// ACESTonemap applies ACES filmic tone mapping to a linear value.
func ACESTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
