package mathutil

import "math"

// Quat represents a quaternion (x, y, z, w).
type Quat [4]float64

// QuatFrom32 widens a glTF rotation and renormalizes it in float64. The
// all-zero quaternion maps to identity so missing rotations behave.
func QuatFrom32(q [4]float32) Quat {
	w := Quat{float64(q[0]), float64(q[1]), float64(q[2]), float64(q[3])}
	n := math.Sqrt(w[0]*w[0] + w[1]*w[1] + w[2]*w[2] + w[3]*w[3])
	if n == 0 {
		return Quat{0, 0, 0, 1}
	}
	return Quat{w[0] / n, w[1] / n, w[2] / n, w[3] / n}
}

// QuatToMat3 converts a quaternion to a 3×3 rotation matrix.
func QuatToMat3(q Quat) Mat3 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Mat3{
		1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy),
		2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx),
		2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy),
	}
}
