package mathutil

import "math"

// Ray is a half-line from Origin along the unit direction Dir.
type Ray struct {
	Origin, Dir Vec3
}

// At returns the point at distance t.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Dir.Scale(t))
}

// Plane is the set of points p with Normal·p + D = 0.
type Plane struct {
	Normal Vec3
	D      float64
}

// PlaneFromPoint builds the plane through p with normal n.
func PlaneFromPoint(n, p Vec3) Plane {
	n = n.Normalize()
	return Plane{Normal: n, D: -n.Dot(p)}
}

// IntersectPlane returns the hit point; false when the ray is parallel to
// the plane or the plane lies behind the origin.
func (r Ray) IntersectPlane(pl Plane) (Vec3, bool) {
	denom := pl.Normal.Dot(r.Dir)
	if math.Abs(denom) < 1e-12 {
		return Vec3{}, false
	}
	t := -(r.Origin.Dot(pl.Normal) + pl.D) / denom
	if t < 0 {
		return Vec3{}, false
	}
	return r.At(t), true
}

// IntersectBox returns the entry distance of the ray into b (slab test).
func (r Ray) IntersectBox(b Box3) (float64, bool) {
	if b.IsEmpty() {
		return 0, false
	}
	tmin, tmax := math.Inf(-1), math.Inf(1)
	for i := 0; i < 3; i++ {
		if math.Abs(r.Dir[i]) < 1e-12 {
			if r.Origin[i] < b.Min[i] || r.Origin[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / r.Dir[i]
		t0 := (b.Min[i] - r.Origin[i]) * inv
		t1 := (b.Max[i] - r.Origin[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return 0, false
		}
	}
	if tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return 0, true
	}
	return tmin, true
}
