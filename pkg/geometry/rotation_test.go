package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// assertSameRotation compares two quaternions by their action on the basis
// vectors, which is insensitive to the q/-q sign ambiguity.
func assertSameRotation(t *testing.T, a, b quat.Number) {
	t.Helper()
	basis := []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	for _, v := range basis {
		va := RotateVector(a, v)
		vb := RotateVector(b, v)
		assert.InDelta(t, va.X, vb.X, 1e-9)
		assert.InDelta(t, va.Y, vb.Y, 1e-9)
		assert.InDelta(t, va.Z, vb.Z, 1e-9)
	}
}

func TestAxisAngleRoundTrip(t *testing.T) {
	axis, _ := Normalize(r3.Vec{X: 1, Y: 2, Z: 3})
	q, err := AxisAngleToQuaternion(axis, 0.8)
	require.NoError(t, err)

	gotAxis, gotAngle := QuaternionToAxisAngle(q)
	assert.InDelta(t, 0.8, gotAngle, 1e-12)
	assert.InDelta(t, axis.X, gotAxis.X, 1e-12)
	assert.InDelta(t, axis.Y, gotAxis.Y, 1e-12)
	assert.InDelta(t, axis.Z, gotAxis.Z, 1e-12)

	_, err = AxisAngleToQuaternion(r3.Vec{}, 1)
	assert.Error(t, err, "zero axis")
}

func TestQuaternionToAxisAngle_Canonical(t *testing.T) {
	// Rotating by -0.6 about X equals rotating by +0.6 about -X; the
	// reported angle stays in [0, pi].
	q, err := AxisAngleToQuaternion(r3.Vec{X: 1}, -0.6)
	require.NoError(t, err)
	axis, angle := QuaternionToAxisAngle(q)
	assert.InDelta(t, 0.6, angle, 1e-12)
	assert.InDelta(t, -1, axis.X, 1e-12)

	axis, angle = QuaternionToAxisAngle(quat.Number{Real: 1})
	assert.Equal(t, 0.0, angle)
	assert.Equal(t, r3.Vec{Z: 1}, axis, "identity reports the Z axis")
}

func TestRotateVector(t *testing.T) {
	qz90, err := AxisAngleToQuaternion(r3.Vec{Z: 1}, math.Pi/2)
	require.NoError(t, err)
	got := RotateVector(qz90, r3.Vec{X: 1})
	assert.InDelta(t, 0, got.X, 1e-12)
	assert.InDelta(t, 1, got.Y, 1e-12)
	assert.InDelta(t, 0, got.Z, 1e-12)

	// Norm is preserved for an arbitrary rotation.
	q, err := AxisAngleToQuaternion(r3.Vec{X: 0.3, Y: -1, Z: 2}, 1.234)
	require.NoError(t, err)
	v := r3.Vec{X: -2.5, Y: 0.7, Z: 4.1}
	assert.InDelta(t, r3.Norm(v), r3.Norm(RotateVector(q, v)), 1e-12)

	// Non-unit quaternions rotate the same as their normalized form.
	assertSameRotation(t, q, quat.Scale(3.7, q))
}

func TestEulerZYZRoundTrip(t *testing.T) {
	phi, theta, psi := 30*math.Pi/180, 60*math.Pi/180, 45*math.Pi/180
	q := EulerZYZToQuaternion(phi, theta, psi)

	gotPhi, gotTheta, gotPsi := QuaternionToEulerZYZ(q)
	assert.InDelta(t, phi, gotPhi, 1e-12)
	assert.InDelta(t, theta, gotTheta, 1e-12)
	assert.InDelta(t, psi, gotPsi, 1e-12)
}

func TestEulerZYZ_Singularities(t *testing.T) {
	// Identity.
	phi, theta, psi := QuaternionToEulerZYZ(quat.Number{Real: 1})
	assert.Equal(t, 0.0, phi)
	assert.Equal(t, 0.0, theta)
	assert.Equal(t, 0.0, psi)

	// Pure Z rotation: phi carries the whole angle.
	phi, theta, psi = QuaternionToEulerZYZ(EulerZYZToQuaternion(0.3, 0, 0.4))
	assert.InDelta(t, 0.7, phi, 1e-9)
	assert.InDelta(t, 0, theta, 1e-9)
	assert.InDelta(t, 0, psi, 1e-9)

	// Theta at pi: the split is arbitrary, the rotation must survive.
	q := EulerZYZToQuaternion(0.3, math.Pi, 0.2)
	gotPhi, gotTheta, gotPsi := QuaternionToEulerZYZ(q)
	assert.InDelta(t, math.Pi, gotTheta, 1e-9)
	assert.InDelta(t, 0, gotPsi, 1e-9)
	assertSameRotation(t, q, EulerZYZToQuaternion(gotPhi, gotTheta, gotPsi))
}

func TestEulerZXZRoundTrip(t *testing.T) {
	phi, theta, psi := 0.3, 0.9, -0.4
	q := EulerZXZToQuaternion(phi, theta, psi)

	gotPhi, gotTheta, gotPsi := QuaternionToEulerZXZ(q)
	assert.InDelta(t, phi, gotPhi, 1e-12)
	assert.InDelta(t, theta, gotTheta, 1e-12)
	assert.InDelta(t, psi, gotPsi, 1e-12)

	// The two conventions describe the same rotation through their own
	// angles.
	zyz := EulerZYZToQuaternion(QuaternionToEulerZYZ(q))
	assertSameRotation(t, q, zyz)
}

func TestEulerZXZ_Singular(t *testing.T) {
	phi, theta, psi := QuaternionToEulerZXZ(EulerZXZToQuaternion(-0.5, 0, 0.3))
	assert.InDelta(t, -0.2, phi, 1e-9)
	assert.InDelta(t, 0, theta, 1e-9)
	assert.InDelta(t, 0, psi, 1e-9)
}
