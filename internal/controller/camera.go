package controller

import (
	"math"

	"fitroom/internal/mathutil"
)

// Camera is a perspective camera looking at Target.
type Camera struct {
	Position mathutil.Vec3 `json:"position"`
	Target   mathutil.Vec3 `json:"target"`
	Up       mathutil.Vec3 `json:"up"`
	FOV      float64       `json:"fov"` // vertical, degrees
	Aspect   float64       `json:"aspect"`
}

// Orbit distance limits applied when framing a scene.
const (
	MinDistance = 3.0
	MaxDistance = 10.0
)

func DefaultCamera() Camera {
	return Camera{
		Position: mathutil.Vec3{0, 0, 5},
		Up:       mathutil.Vec3{0, 1, 0},
		FOV:      45,
		Aspect:   1,
	}
}

// Frame returns the camera moved along its current view axis so a sphere
// of the given radius around center fills the view, clamped to the orbit
// distance limits.
func (c Camera) Frame(center mathutil.Vec3, radius float64) Camera {
	dir := c.Position.Sub(c.Target).Normalize()
	if dir == (mathutil.Vec3{}) {
		dir = mathutil.Vec3{0, 0, 1}
	}
	half := mathutil.Deg2Rad(c.fov()) / 2
	dist := MinDistance
	if radius > 0 {
		dist = radius / math.Sin(half)
	}
	dist = math.Max(MinDistance, math.Min(MaxDistance, dist))
	c.Target = center
	c.Position = center.Add(dir.Scale(dist))
	return c
}

func (c Camera) fov() float64 {
	if c.FOV <= 0 || c.FOV >= 180 {
		return 45
	}
	return c.FOV
}

// Forward is the unit view direction.
func (c Camera) Forward() mathutil.Vec3 {
	f := c.Target.Sub(c.Position).Normalize()
	if f == (mathutil.Vec3{}) {
		return mathutil.Vec3{0, 0, -1}
	}
	return f
}

// Ray returns the world ray through normalized device coordinates
// (x right, y up, both in [-1, 1]).
func (c Camera) Ray(ndcX, ndcY float64) mathutil.Ray {
	f := c.Forward()
	up := c.Up
	if up == (mathutil.Vec3{}) {
		up = mathutil.Vec3{0, 1, 0}
	}
	right := f.Cross(up).Normalize()
	if right == (mathutil.Vec3{}) {
		right = mathutil.Vec3{1, 0, 0}
	}
	trueUp := right.Cross(f)
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	t := math.Tan(mathutil.Deg2Rad(c.fov()) / 2)
	dir := f.Add(right.Scale(ndcX * t * aspect)).Add(trueUp.Scale(ndcY * t))
	return mathutil.Ray{Origin: c.Position, Dir: dir.Normalize()}
}
