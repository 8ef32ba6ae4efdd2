package geometry

import (
	"errors"
	"math"
)

// Point2D is a point in an XY-plane polygon. Polygon slices are open:
// the closing edge from the last point back to the first is implicit.
type Point2D struct {
	X, Y float64
}

var errDegeneratePolygon = errors.New("geometry: polygon needs at least 3 points")

// PointInPolygon classifies p against a simple polygon:
// +1 inside, 0 on an edge or vertex within tol, -1 outside.
func PointInPolygon(p Point2D, poly []Point2D, tol float64) (int, error) {
	if len(poly) < 3 {
		return 0, errDegeneratePolygon
	}
	tol = tolerance(tol)

	// Boundary first. The crossing count below uses a half-open rule that
	// is consistent but meaningless for points sitting on the border.
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		if pointSegmentDistance(p, a, b) <= tol {
			return 0, nil
		}
	}

	inside := false
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
	}
	if inside {
		return 1, nil
	}
	return -1, nil
}

func pointSegmentDistance(p, a, b Point2D) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	n2 := dx*dx + dy*dy
	if n2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / n2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// PolygonArea is the signed shoelace area: positive for counter-clockwise
// winding, negative for clockwise.
func PolygonArea(poly []Point2D) float64 {
	var sum float64
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

// IsClockwise reports the polygon's winding.
func IsClockwise(poly []Point2D) bool {
	return PolygonArea(poly) < 0
}

// Centroid is the area centroid of a simple polygon. Near-zero-area
// polygons fall back to the vertex mean.
func Centroid(poly []Point2D) (Point2D, error) {
	if len(poly) < 3 {
		return Point2D{}, errDegeneratePolygon
	}
	area := PolygonArea(poly)
	if math.Abs(area) < 1e-12 {
		var c Point2D
		for _, p := range poly {
			c.X += p.X
			c.Y += p.Y
		}
		c.X /= float64(len(poly))
		c.Y /= float64(len(poly))
		return c, nil
	}
	var cx, cy float64
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		cross := a.X*b.Y - b.X*a.Y
		cx += (a.X + b.X) * cross
		cy += (a.Y + b.Y) * cross
	}
	return Point2D{X: cx / (6 * area), Y: cy / (6 * area)}, nil
}

// BoundingBox is the axis-aligned bounds of a point set.
func BoundingBox(poly []Point2D) (Rect, error) {
	if len(poly) == 0 {
		return Rect{}, errors.New("geometry: empty point set")
	}
	r := Rect{Min: poly[0], Max: poly[0]}
	for _, p := range poly[1:] {
		r.Min.X = math.Min(r.Min.X, p.X)
		r.Min.Y = math.Min(r.Min.Y, p.Y)
		r.Max.X = math.Max(r.Max.X, p.X)
		r.Max.Y = math.Max(r.Max.Y, p.Y)
	}
	return r, nil
}
