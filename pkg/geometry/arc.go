package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Plane identifies one of the host's principal planes.
type Plane int

const (
	PlaneXY Plane = iota
	PlaneYZ
	PlaneZX
)

func (p Plane) String() string {
	switch p {
	case PlaneXY:
		return "XY"
	case PlaneYZ:
		return "YZ"
	case PlaneZX:
		return "ZX"
	}
	return fmt.Sprintf("Plane(%d)", int(p))
}

// ParsePlane reads a principal plane name as the host spells it.
func ParsePlane(s string) (Plane, error) {
	switch s {
	case "XY", "xy":
		return PlaneXY, nil
	case "YZ", "yz":
		return PlaneYZ, nil
	case "ZX", "zx":
		return PlaneZX, nil
	}
	return 0, fmt.Errorf("geometry: unknown plane %q", s)
}

// uv maps a vector to in-plane coordinates (u, v) and the off-plane rest w.
func (p Plane) uv(vec r3.Vec) (u, v, w float64) {
	switch p {
	case PlaneYZ:
		return vec.Y, vec.Z, vec.X
	case PlaneZX:
		return vec.Z, vec.X, vec.Y
	default:
		return vec.X, vec.Y, vec.Z
	}
}

func (p Plane) fromUV(u, v, w float64) r3.Vec {
	switch p {
	case PlaneYZ:
		return r3.Vec{X: w, Y: u, Z: v}
	case PlaneZX:
		return r3.Vec{X: v, Y: w, Z: u}
	default:
		return r3.Vec{X: u, Y: v, Z: w}
	}
}

// ArcCenterFrom3Points computes the circumcenter of the circle through
// three points. Collinear points have no finite center.
func ArcCenterFrom3Points(p1, p2, p3 r3.Vec) (r3.Vec, error) {
	a := r3.Sub(p1, p3)
	b := r3.Sub(p2, p3)
	axb := r3.Cross(a, b)
	d := 2 * r3.Norm2(axb)
	if IsCollinear(p1, p2, p3, 0) || d == 0 {
		return r3.Vec{}, errors.New("geometry: arc points are collinear")
	}
	num := r3.Cross(r3.Sub(r3.Scale(r3.Norm2(a), b), r3.Scale(r3.Norm2(b), a)), axb)
	return r3.Add(p3, r3.Scale(1/d, num)), nil
}

// ArcSweepAngle is the signed in-plane angle from center->start to
// center->end, counter-clockwise positive, in (-pi, pi].
func ArcSweepAngle(center, start, end r3.Vec, plane Plane) float64 {
	su, sv, _ := plane.uv(r3.Sub(start, center))
	eu, ev, _ := plane.uv(r3.Sub(end, center))
	return math.Atan2(su*ev-sv*eu, su*eu+sv*ev)
}

// ArcPointAt rotates start about center by angle within the plane. The
// off-plane coordinate is kept, so planar arcs stay in their plane.
func ArcPointAt(center, start r3.Vec, angle float64, plane Plane) r3.Vec {
	u, v, w := plane.uv(r3.Sub(start, center))
	c, s := math.Cos(angle), math.Sin(angle)
	return r3.Add(center, plane.fromUV(u*c-v*s, u*s+v*c, w))
}

// ArcMidPoint is the point halfway along the arc from start to end around
// center, following the shorter signed sweep.
func ArcMidPoint(center, start, end r3.Vec, plane Plane) r3.Vec {
	sweep := ArcSweepAngle(center, start, end, plane)
	return ArcPointAt(center, start, sweep/2, plane)
}
