// Package geometry implements the numeric utilities behind the modeler:
// vector and rotation math, polygon predicates, inscribed-rectangle search
// and arc construction. Everything here is stateless and operates on plain
// values; 3D vectors are gonum's r3.Vec and rotations are gonum quaternions.
// Angles are radians throughout, lengths are whatever unit the caller is
// working in.
package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultTolerance is the comparison tolerance used when a caller passes
// a non-positive one. It matches the host's model-units resolution.
const DefaultTolerance = 1e-6

var errZeroVector = errors.New("geometry: zero vector")

func tolerance(tol float64) float64 {
	if tol <= 0 {
		return DefaultTolerance
	}
	return tol
}

// Normalize returns the unit vector of v, or an error for a zero vector.
func Normalize(v r3.Vec) (r3.Vec, error) {
	n := r3.Norm(v)
	if n == 0 {
		return r3.Vec{}, errZeroVector
	}
	return r3.Scale(1/n, v), nil
}

// PointsDistance is the euclidean distance between two points.
func PointsDistance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// MidPoint is the point halfway between a and b.
func MidPoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

// DistanceVector returns the vector from p to its orthogonal projection on
// the line through a and b. Its norm is the point-to-line distance.
func DistanceVector(p, a, b r3.Vec) (r3.Vec, error) {
	dir, err := Normalize(r3.Sub(b, a))
	if err != nil {
		return r3.Vec{}, err
	}
	foot := r3.Add(a, r3.Scale(r3.Dot(r3.Sub(p, a), dir), dir))
	return r3.Sub(foot, p), nil
}

// AngleBetween is the unsigned angle between two vectors in [0, pi].
func AngleBetween(a, b r3.Vec) (float64, error) {
	if r3.Norm(a) == 0 || r3.Norm(b) == 0 {
		return 0, errZeroVector
	}
	// atan2 form, stable near 0 and pi.
	return math.Atan2(r3.Norm(r3.Cross(a, b)), r3.Dot(a, b)), nil
}

// IsParallel reports whether segments a1->a2 and b1->b2 run in parallel
// (either direction) within tol.
func IsParallel(a1, a2, b1, b2 r3.Vec, tol float64) bool {
	da, err := Normalize(r3.Sub(a2, a1))
	if err != nil {
		return false
	}
	db, err := Normalize(r3.Sub(b2, b1))
	if err != nil {
		return false
	}
	return r3.Norm(r3.Cross(da, db)) <= tolerance(tol)
}

// IsCollinear reports whether three points lie on one line within tol.
// The test is scale-aware: the triangle height, not its area, is compared
// against tol.
func IsCollinear(a, b, c r3.Vec, tol float64) bool {
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	base := math.Max(r3.Norm(ab), r3.Norm(ac))
	if base == 0 {
		return true
	}
	return r3.Norm(r3.Cross(ab, ac))/base <= tolerance(tol)
}

// ProjectOnPlane projects p onto the plane through origin with the given
// normal.
func ProjectOnPlane(p, origin, normal r3.Vec) (r3.Vec, error) {
	n, err := Normalize(normal)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Sub(p, r3.Scale(r3.Dot(r3.Sub(p, origin), n), n)), nil
}

// IsProjectionInside reports whether the orthogonal projection of p onto
// the line through a and b falls within the segment span.
func IsProjectionInside(p, a, b r3.Vec) bool {
	ab := r3.Sub(b, a)
	n2 := r3.Norm2(ab)
	if n2 == 0 {
		return false
	}
	t := r3.Dot(r3.Sub(p, a), ab) / n2
	return t >= 0 && t <= 1
}
