package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertRectInside(t *testing.T, r Rect, poly []Point2D) {
	t.Helper()
	for _, c := range r.Corners() {
		side, err := PointInPolygon(c, poly, 1e-9)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, side, 0, "corner %v must not be outside", c)
	}
}

func TestLargestRectangle_Diamond(t *testing.T) {
	// |x-2| + |y-2| <= 2. The best axis-aligned rectangle is the inscribed
	// square with corners on the edge midpoints.
	diamond := []Point2D{{2, 0}, {4, 2}, {2, 4}, {0, 2}}

	r, err := LargestRectangle(diamond, 4)
	require.NoError(t, err)
	assert.Equal(t, Point2D{1, 1}, r.Min)
	assert.Equal(t, Point2D{3, 3}, r.Max)
	assert.InDelta(t, 4, r.Area(), 1e-12)
	assertRectInside(t, r, diamond)
}

func TestLargestRectangle_Triangle(t *testing.T) {
	tri := []Point2D{{0, 0}, {4, 0}, {0, 4}}

	r, err := LargestRectangle(tri, 4)
	require.NoError(t, err)
	assert.InDelta(t, 4, r.Area(), 1e-12, "half the cathetus on each side")
	assertRectInside(t, r, tri)
}

func TestLargestRectangle_ConcaveAvoidsNotch(t *testing.T) {
	r, err := LargestRectangle(lShape(), 4)
	require.NoError(t, err)
	assert.InDelta(t, 8, r.Area(), 1e-12, "one full leg of the L")
	assertRectInside(t, r, lShape())

	// The notch interior must stay uncovered.
	side, err := PointInPolygon(Point2D{3.5, 3.5}, lShape(), 1e-9)
	require.NoError(t, err)
	require.Equal(t, -1, side)
	assert.False(t, r.Min.X < 3.5 && 3.5 < r.Max.X && r.Min.Y < 3.5 && 3.5 < r.Max.Y)
}

func TestLargestRectangle_GridOrderClamped(t *testing.T) {
	diamond := []Point2D{{2, 0}, {4, 2}, {2, 4}, {0, 2}}

	// Below the minimum order the search still runs on the 4x4 grid.
	r, err := LargestRectangle(diamond, 0)
	require.NoError(t, err)
	assert.Greater(t, r.Area(), 0.0)
	assert.LessOrEqual(t, r.Area(), 4.0+1e-12)
	assertRectInside(t, r, diamond)
}

func TestLargestRectangle_Degenerate(t *testing.T) {
	_, err := LargestRectangle([]Point2D{{0, 0}, {1, 1}}, 4)
	assert.Error(t, err)

	_, err = LargestRectangle([]Point2D{{0, 0}, {2, 0}, {4, 0}}, 4)
	assert.Error(t, err, "collinear points have no area")
}
