package mathutil

import "math"

// RotX returns a 3×3 rotation matrix around the X axis. Angle in radians.
func RotX(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}
}

// RotY returns a 3×3 rotation matrix around the Y axis.
func RotY(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}
}

// RotZ returns a 3×3 rotation matrix around the Z axis.
func RotZ(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// EulerXYZ returns Rx × Ry × Rz for the angles in e (radians).
func EulerXYZ(e Vec3) Mat3 {
	return Mat3Mul(Mat3Mul(RotX(e[0]), RotY(e[1])), RotZ(e[2]))
}

// EulerFromMat3 extracts XYZ Euler angles from a pure rotation matrix.
func EulerFromMat3(m Mat3) Vec3 {
	m13 := math.Max(-1, math.Min(1, m[2]))
	y := math.Asin(m13)
	if math.Abs(m13) < 0.9999999 {
		return Vec3{math.Atan2(-m[5], m[8]), y, math.Atan2(-m[1], m[0])}
	}
	return Vec3{math.Atan2(m[7], m[4]), y, 0}
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}
