package geometry

import (
	"errors"
	"math"
	"sort"

	"github.com/akavel/polyclip-go"
)

// Rect is an axis-aligned rectangle.
type Rect struct {
	Min, Max Point2D
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }
func (r Rect) Area() float64   { return r.Width() * r.Height() }

// Corners lists the rectangle corners counter-clockwise from Min.
func (r Rect) Corners() [4]Point2D {
	return [4]Point2D{
		r.Min,
		{X: r.Max.X, Y: r.Min.Y},
		r.Max,
		{X: r.Min.X, Y: r.Max.Y},
	}
}

// LargestRectangle finds the largest axis-aligned rectangle inscribed in a
// simple polygon. The bounding box is rasterized on a 2^gridOrder square
// grid (order clamped to [2,10]), cells whose four corner nodes all lie
// inside are kept, and the best cell rectangle per the maximal-rectangle
// histogram sweep is clipped against the polygon to confirm full coverage.
// Candidates that the grid marked inside but the boundary actually cuts
// are discarded and the next largest is tried.
//
// The result is grid-quantized: a finer grid tightens it toward the true
// optimum at O(4^gridOrder) point tests.
func LargestRectangle(poly []Point2D, gridOrder int) (Rect, error) {
	if len(poly) < 3 {
		return Rect{}, errDegeneratePolygon
	}
	if PolygonArea(poly) == 0 {
		return Rect{}, errors.New("geometry: polygon has zero area")
	}
	if gridOrder < 2 {
		gridOrder = 2
	}
	if gridOrder > 10 {
		gridOrder = 10
	}

	bbox, err := BoundingBox(poly)
	if err != nil {
		return Rect{}, err
	}
	if bbox.Width() == 0 || bbox.Height() == 0 {
		return Rect{}, errors.New("geometry: polygon has zero extent")
	}

	n := 1 << gridOrder
	cellW := bbox.Width() / float64(n)
	cellH := bbox.Height() / float64(n)
	tol := 1e-9 * math.Max(bbox.Width(), bbox.Height())

	nodeIn := make([][]bool, n+1)
	for j := 0; j <= n; j++ {
		nodeIn[j] = make([]bool, n+1)
		y := bbox.Min.Y + float64(j)*cellH
		for i := 0; i <= n; i++ {
			x := bbox.Min.X + float64(i)*cellW
			side, err := PointInPolygon(Point2D{X: x, Y: y}, poly, tol)
			if err != nil {
				return Rect{}, err
			}
			nodeIn[j][i] = side >= 0
		}
	}
	cellIn := func(r, c int) bool {
		return nodeIn[r][c] && nodeIn[r][c+1] && nodeIn[r+1][c] && nodeIn[r+1][c+1]
	}

	// Row sweep: heights[c] counts consecutive inside cells ending at the
	// current row; every bar popped from the histogram stack is a candidate.
	type candidate struct {
		c0, r0, c1, r1 int
		area           float64
	}
	var cands []candidate
	heights := make([]int, n)
	stack := make([]int, 0, n+1)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if cellIn(r, c) {
				heights[c]++
			} else {
				heights[c] = 0
			}
		}
		stack = stack[:0]
		for c := 0; c <= n; c++ {
			h := 0
			if c < n {
				h = heights[c]
			}
			for len(stack) > 0 && heights[stack[len(stack)-1]] >= h {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				hh := heights[top]
				if hh == 0 {
					continue
				}
				left := 0
				if len(stack) > 0 {
					left = stack[len(stack)-1] + 1
				}
				cands = append(cands, candidate{
					c0: left, r0: r - hh + 1, c1: c - 1, r1: r,
					area: float64((c - left) * hh),
				})
			}
			stack = append(stack, c)
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].area > cands[j].area })

	for _, cd := range cands {
		rect := Rect{
			Min: Point2D{X: bbox.Min.X + float64(cd.c0)*cellW, Y: bbox.Min.Y + float64(cd.r0)*cellH},
			Max: Point2D{X: bbox.Min.X + float64(cd.c1+1)*cellW, Y: bbox.Min.Y + float64(cd.r1+1)*cellH},
		}
		if rectCoveredByPolygon(rect, poly) {
			return rect, nil
		}
	}
	return Rect{}, errors.New("geometry: no inscribed rectangle found, try a higher grid order")
}

// rectCoveredByPolygon clips the rectangle against the polygon and checks
// the intersection area equals the rectangle area.
func rectCoveredByPolygon(r Rect, poly []Point2D) bool {
	rc := polyclip.Contour{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
	}
	pc := make(polyclip.Contour, len(poly))
	for i, p := range poly {
		pc[i] = polyclip.Point{X: p.X, Y: p.Y}
	}
	inter := polyclip.Polygon{rc}.Construct(polyclip.INTERSECTION, polyclip.Polygon{pc})
	var area float64
	for _, c := range inter {
		area += math.Abs(contourArea(c))
	}
	return math.Abs(area-r.Area()) <= 1e-9*math.Max(1, r.Area())
}

func contourArea(c polyclip.Contour) float64 {
	var sum float64
	for i := range c {
		a := c[i]
		b := c[(i+1)%len(c)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}
