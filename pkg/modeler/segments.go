package modeler

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/geometry"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/quantity"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// SegmentType names a polyline segment kind as the host spells it.
type SegmentType string

const (
	SegmentLine       SegmentType = "Line"
	SegmentArc        SegmentType = "Arc"
	SegmentSpline     SegmentType = "Spline"
	SegmentAngularArc SegmentType = "AngularArc"
)

// Segment describes one polyline segment. Line and Arc take their points
// from the point list; Spline carries its point count; AngularArc is given
// by center, sweep angle and plane, and synthesizes its mid and end points
// from the current path end.
type Segment struct {
	Type      SegmentType
	NumPoints int

	ArcCenter [3]quantity.Quantity
	ArcAngle  quantity.Quantity
	ArcPlane  geometry.Plane
}

// LineSegment is a straight segment between two consecutive points.
func LineSegment() Segment {
	return Segment{Type: SegmentLine, NumPoints: 2}
}

// ArcSegment is a circular arc through three consecutive points.
func ArcSegment() Segment {
	return Segment{Type: SegmentArc, NumPoints: 3}
}

// SplineSegment is a spline through n consecutive points, n at least 4.
func SplineSegment(n int) Segment {
	return Segment{Type: SegmentSpline, NumPoints: n}
}

// AngularArcSegment is an arc starting at the current path end, swept by
// angle about center within the given plane.
func AngularArcSegment(center [3]quantity.Quantity, angle quantity.Quantity, plane geometry.Plane) Segment {
	return Segment{Type: SegmentAngularArc, NumPoints: 3, ArcCenter: center, ArcAngle: angle, ArcPlane: plane}
}

// pointSpan returns how many path points the segment covers, endpoints
// included.
func (s Segment) pointSpan() (int, error) {
	switch s.Type {
	case SegmentLine:
		return 2, nil
	case SegmentArc, SegmentAngularArc:
		return 3, nil
	case SegmentSpline:
		if s.NumPoints < 4 {
			return 0, fmt.Errorf("modeler: spline needs at least 4 points, got %d", s.NumPoints)
		}
		return s.NumPoints, nil
	}
	return 0, fmt.Errorf("modeler: unknown segment type %q", string(s.Type))
}

// plRecord is a segment bound to its start index in the flattened point
// list.
type plRecord struct {
	seg   Segment
	start int
	n     int
}

// renumberRecords rebuilds every start index from the shared-joint rule:
// each segment begins where the previous one ended.
func renumberRecords(recs []plRecord) {
	acc := 0
	for i := range recs {
		recs[i].start = acc
		acc += recs[i].n - 1
	}
}

// sweepPoints synthesizes the mid and end points of an angular arc
// starting at start. A negative direction sweeps backwards, yielding the
// points that precede the anchor.
func (m *Modeler) sweepPoints(seg Segment, start r3.Vec, direction float64) (mid, end r3.Vec, err error) {
	center, err := m.toModelVec(seg.ArcCenter)
	if err != nil {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("modeler: arc center: %w", err)
	}
	if geometry.PointsDistance(center, start) <= geometry.DefaultTolerance {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("modeler: arc center coincides with its start point")
	}
	angle, err := seg.ArcAngle.In("rad")
	if err != nil {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("modeler: arc angle: %w", err)
	}
	sweep := direction * angle.Value
	if sweep == 0 {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("modeler: zero arc angle")
	}
	mid = geometry.ArcPointAt(center, start, sweep/2, seg.ArcPlane)
	end = geometry.ArcPointAt(center, start, sweep, seg.ArcPlane)
	return mid, end, nil
}

// buildPath flattens user points and semantic segments into the host's
// point list plus indexed records. Angular arcs consume no extra user
// points; their synthesized points are appended in place.
func (m *Modeler) buildPath(pts []r3.Vec, segs []Segment) ([]r3.Vec, []plRecord, error) {
	if len(pts) == 0 {
		return nil, nil, fmt.Errorf("modeler: polyline needs points")
	}
	out := make([]r3.Vec, 0, len(pts))
	out = append(out, pts[0])
	recs := make([]plRecord, 0, len(segs))
	cursor := 0
	for i, seg := range segs {
		span, err := seg.pointSpan()
		if err != nil {
			return nil, nil, err
		}
		start := len(out) - 1
		if seg.Type == SegmentAngularArc {
			mid, end, err := m.sweepPoints(seg, out[start], 1)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, mid, end)
		} else {
			need := span - 1
			if cursor+need > len(pts)-1 {
				return nil, nil, fmt.Errorf("modeler: segment %d needs %d more points, %d left", i, need, len(pts)-1-cursor)
			}
			out = append(out, pts[cursor+1:cursor+1+need]...)
			cursor += need
		}
		recs = append(recs, plRecord{seg: seg, start: start, n: span})
	}
	if cursor != len(pts)-1 {
		return nil, nil, fmt.Errorf("modeler: %d points left over after the last segment", len(pts)-1-cursor)
	}
	for i := 1; i < len(out); i++ {
		if geometry.PointsDistance(out[i-1], out[i]) <= geometry.DefaultTolerance {
			return nil, nil, fmt.Errorf("modeler: coincident consecutive points at index %d", i)
		}
	}
	return out, recs, nil
}

func (m *Modeler) plPoint(p r3.Vec) *variant.Value {
	return variant.NewBlock("PLPoint").
		PairString("X", m.lengthString(p.X)).
		PairString("Y", m.lengthString(p.Y)).
		PairString("Z", m.lengthString(p.Z)).
		Value()
}

func (m *Modeler) plSegmentBlock(r plRecord) *variant.Value {
	b := variant.NewBlock("PLSegment").
		PairString("SegmentType", string(r.seg.Type)).
		PairInt("StartIndex", r.start).
		PairInt("NoOfPoints", r.n)
	if r.seg.Type == SegmentAngularArc {
		b.PairString("ArcAngle", r.seg.ArcAngle.String()).
			PairString("ArcCenterX", m.units.Format(r.seg.ArcCenter[0])).
			PairString("ArcCenterY", m.units.Format(r.seg.ArcCenter[1])).
			PairString("ArcCenterZ", m.units.Format(r.seg.ArcCenter[2])).
			PairString("ArcPlane", r.seg.ArcPlane.String())
	}
	return b.Value()
}
