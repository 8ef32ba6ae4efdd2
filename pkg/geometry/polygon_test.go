package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lShape is concave: a 4x4 square with the (2,2)..(4,4) corner removed.
func lShape() []Point2D {
	return []Point2D{
		{0, 0}, {4, 0}, {4, 2}, {2, 2}, {2, 4}, {0, 4},
	}
}

func TestPointInPolygon(t *testing.T) {
	poly := lShape()
	tests := []struct {
		name string
		p    Point2D
		want int
	}{
		{"interior", Point2D{1, 1}, 1},
		{"inside notch", Point2D{3, 3}, -1},
		{"outside bbox", Point2D{5, 1}, -1},
		{"on bottom edge", Point2D{2, 0}, 0},
		{"on vertex", Point2D{4, 2}, 0},
		{"on notch edge", Point2D{3, 2}, 0},
		{"ray through horizontal edge", Point2D{1, 2}, 1},
		{"near edge within tolerance", Point2D{1, 4 + 1e-8}, 0},
	}
	for _, tt := range tests {
		got, err := PointInPolygon(tt.p, poly, 1e-6)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := PointInPolygon(Point2D{}, []Point2D{{0, 0}, {1, 1}}, 0)
	assert.Error(t, err, "two points are not a polygon")
}

func TestPolygonAreaAndWinding(t *testing.T) {
	poly := lShape()
	assert.InDelta(t, 12, PolygonArea(poly), 1e-12)
	assert.False(t, IsClockwise(poly))

	reversed := make([]Point2D, len(poly))
	for i, p := range poly {
		reversed[len(poly)-1-i] = p
	}
	assert.InDelta(t, -12, PolygonArea(reversed), 1e-12)
	assert.True(t, IsClockwise(reversed))
}

func TestCentroid(t *testing.T) {
	c, err := Centroid(lShape())
	require.NoError(t, err)
	assert.InDelta(t, 5.0/3.0, c.X, 1e-12)
	assert.InDelta(t, 5.0/3.0, c.Y, 1e-12)

	// Zero-area polygon falls back to the vertex mean.
	c, err = Centroid([]Point2D{{0, 0}, {2, 0}, {4, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 2, c.X, 1e-12)

	_, err = Centroid([]Point2D{{0, 0}})
	assert.Error(t, err)
}

func TestBoundingBox(t *testing.T) {
	bbox, err := BoundingBox([]Point2D{{3, -1}, {-2, 5}, {0, 0}})
	require.NoError(t, err)
	assert.Equal(t, Point2D{-2, -1}, bbox.Min)
	assert.Equal(t, Point2D{3, 5}, bbox.Max)

	_, err = BoundingBox(nil)
	assert.Error(t, err)
}
