package geometry

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// eulerSingularity bounds sin(theta) below which the two Z rotations of a
// ZYZ/ZXZ triple collapse into one and the split becomes arbitrary.
const eulerSingularity = 1e-10

func unitQuat(q quat.Number) (quat.Number, bool) {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{}, false
	}
	return quat.Scale(1/n, q), true
}

func rotX(a float64) quat.Number {
	return quat.Number{Real: math.Cos(a / 2), Imag: math.Sin(a / 2)}
}

func rotY(a float64) quat.Number {
	return quat.Number{Real: math.Cos(a / 2), Jmag: math.Sin(a / 2)}
}

func rotZ(a float64) quat.Number {
	return quat.Number{Real: math.Cos(a / 2), Kmag: math.Sin(a / 2)}
}

// AxisAngleToQuaternion builds the unit quaternion rotating by angle
// around axis.
func AxisAngleToQuaternion(axis r3.Vec, angle float64) (quat.Number, error) {
	u, err := Normalize(axis)
	if err != nil {
		return quat.Number{}, err
	}
	s := math.Sin(angle / 2)
	return quat.Number{
		Real: math.Cos(angle / 2),
		Imag: s * u.X,
		Jmag: s * u.Y,
		Kmag: s * u.Z,
	}, nil
}

// QuaternionToAxisAngle extracts the rotation axis and the angle in
// [0, pi]. The identity rotation reports the Z axis with a zero angle.
func QuaternionToAxisAngle(q quat.Number) (r3.Vec, float64) {
	u, ok := unitQuat(q)
	if !ok {
		return r3.Vec{Z: 1}, 0
	}
	if u.Real < 0 {
		u = quat.Scale(-1, u)
	}
	vecNorm := math.Sqrt(u.Imag*u.Imag + u.Jmag*u.Jmag + u.Kmag*u.Kmag)
	if vecNorm < 1e-15 {
		return r3.Vec{Z: 1}, 0
	}
	axis := r3.Scale(1/vecNorm, r3.Vec{X: u.Imag, Y: u.Jmag, Z: u.Kmag})
	return axis, 2 * math.Atan2(vecNorm, u.Real)
}

// RotateVector applies the rotation q to v. The zero quaternion leaves v
// unchanged.
func RotateVector(q quat.Number, v r3.Vec) r3.Vec {
	u, ok := unitQuat(q)
	if !ok {
		return v
	}
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(u, p), quat.Conj(u))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// EulerZYZToQuaternion composes intrinsic Z-Y-Z rotations phi, theta, psi.
func EulerZYZToQuaternion(phi, theta, psi float64) quat.Number {
	return quat.Mul(rotZ(phi), quat.Mul(rotY(theta), rotZ(psi)))
}

// EulerZXZToQuaternion composes intrinsic Z-X-Z rotations phi, theta, psi.
func EulerZXZToQuaternion(phi, theta, psi float64) quat.Number {
	return quat.Mul(rotZ(phi), quat.Mul(rotX(theta), rotZ(psi)))
}

// rotMatrix expands a quaternion into rotation matrix entries, row after
// row. q must be a unit quaternion.
func rotMatrix(q quat.Number) [3][3]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// QuaternionToEulerZYZ decomposes a rotation into intrinsic Z-Y-Z angles.
// At the singularity (theta near 0 or pi) the whole Z rotation is folded
// into phi and psi is zero. The zero quaternion yields zero angles.
func QuaternionToEulerZYZ(q quat.Number) (phi, theta, psi float64) {
	u, ok := unitQuat(q)
	if !ok {
		return 0, 0, 0
	}
	m := rotMatrix(u)
	sinTheta := math.Hypot(m[2][0], m[2][1])
	theta = math.Atan2(sinTheta, m[2][2])
	if sinTheta < eulerSingularity {
		if m[2][2] > 0 {
			return math.Atan2(m[1][0], m[0][0]), 0, 0
		}
		return math.Atan2(-m[0][1], -m[0][0]), math.Pi, 0
	}
	phi = math.Atan2(m[1][2], m[0][2])
	psi = math.Atan2(m[2][1], -m[2][0])
	return phi, theta, psi
}

// QuaternionToEulerZXZ decomposes a rotation into intrinsic Z-X-Z angles,
// with the same singularity convention as QuaternionToEulerZYZ.
func QuaternionToEulerZXZ(q quat.Number) (phi, theta, psi float64) {
	u, ok := unitQuat(q)
	if !ok {
		return 0, 0, 0
	}
	m := rotMatrix(u)
	sinTheta := math.Hypot(m[2][0], m[2][1])
	theta = math.Atan2(sinTheta, m[2][2])
	if sinTheta < eulerSingularity {
		// Theta 0 and pi both leave a single Z rotation; phi carries it.
		return math.Atan2(m[1][0], m[0][0]), theta, 0
	}
	phi = math.Atan2(m[0][2], -m[1][2])
	psi = math.Atan2(m[2][0], m[2][1])
	return phi, theta, psi
}
