package modeler

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/geometry"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/quantity"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// CrossSection describes the profile swept along a polyline. The zero
// value means no cross section.
type CrossSection struct {
	Type        string // None, Line, Circle, Rectangle, Isosceles Trapezoid
	Orientation string // Auto, X, Y or Z
	Width       quantity.Quantity
	TopWidth    quantity.Quantity
	Height      quantity.Quantity
	NumSegments int
	BendType    string // Corner or Curved
}

func (m *Modeler) xsectionBlock(cs CrossSection) *variant.Value {
	typ := cs.Type
	if typ == "" {
		typ = "None"
	}
	orient := cs.Orientation
	if orient == "" {
		orient = "Auto"
	}
	bend := cs.BendType
	if bend == "" {
		bend = "Corner"
	}
	return variant.NewBlock("PolylineXSection").
		PairString("XSectionType", typ).
		PairString("XSectionOrient", orient).
		PairString("XSectionWidth", m.units.Format(cs.Width)).
		PairString("XSectionTopWidth", m.units.Format(cs.TopWidth)).
		PairString("XSectionHeight", m.units.Format(cs.Height)).
		PairInt("XSectionNumSegments", cs.NumSegments).
		PairString("XSectionBendType", bend).
		Value()
}

// PolylineOption customizes CreatePolyline.
type PolylineOption func(*polylineSpec)

type polylineSpec struct {
	closed   bool
	covered  bool
	segments []Segment
	xsect    *CrossSection
	attrs    []Attribute
}

// Closed joins the last point back to the first.
func Closed() PolylineOption {
	return func(s *polylineSpec) { s.closed = true }
}

// Covered fills the enclosed area, turning the polyline into a sheet. A
// covered polyline is closed by definition.
func Covered() PolylineOption {
	return func(s *polylineSpec) { s.closed, s.covered = true, true }
}

// WithSegments sets the segment list. Without it every consecutive point
// pair becomes a line segment.
func WithSegments(segs ...Segment) PolylineOption {
	return func(s *polylineSpec) { s.segments = segs }
}

// WithCrossSection sweeps the given profile along the polyline.
func WithCrossSection(cs CrossSection) PolylineOption {
	return func(s *polylineSpec) { s.xsect = &cs }
}

// WithAttributes forwards create attributes such as name and material.
func WithAttributes(attrs ...Attribute) PolylineOption {
	return func(s *polylineSpec) { s.attrs = append(s.attrs, attrs...) }
}

// Polyline mirrors an editor polyline together with its point list and
// segment bookkeeping. Start indexes are derived from the segments, never
// stored independently.
type Polyline struct {
	*Object3D
	points  []r3.Vec
	records []plRecord
	closed  bool
	covered bool
	xsect   *CrossSection
}

// CreatePolyline creates a polyline through the given points. Angular arc
// segments take their start from the path and synthesize the rest, so they
// consume no entries of points.
func (m *Modeler) CreatePolyline(ctx context.Context, points [][3]quantity.Quantity, opts ...PolylineOption) (*Polyline, error) {
	var spec polylineSpec
	for _, opt := range opts {
		opt(&spec)
	}
	attrs, err := m.newAttributes("Polyline", spec.attrs)
	if err != nil {
		return nil, err
	}
	pts := make([]r3.Vec, len(points))
	for i := range points {
		if pts[i], err = m.toModelVec(points[i]); err != nil {
			return nil, fmt.Errorf("modeler: point %d: %w", i, err)
		}
	}
	segs := spec.segments
	if len(segs) == 0 {
		if len(pts) < 2 {
			return nil, errors.New("modeler: polyline needs at least 2 points")
		}
		segs = make([]Segment, len(pts)-1)
		for i := range segs {
			segs[i] = LineSegment()
		}
	}
	path, recs, err := m.buildPath(pts, segs)
	if err != nil {
		return nil, err
	}
	if len(path) < 2 {
		return nil, errors.New("modeler: polyline needs at least 2 points")
	}
	if spec.closed && geometry.PointsDistance(path[0], path[len(path)-1]) <= geometry.DefaultTolerance {
		return nil, errors.New("modeler: closed polyline must not repeat its first point")
	}

	params := variant.NewBlock("PolylineParameters").
		PairBool("IsPolylineCovered", spec.covered).
		PairBool("IsPolylineClosed", spec.closed)
	ptsB := variant.NewBlock("PolylinePoints")
	for _, p := range path {
		ptsB.Add(m.plPoint(p))
	}
	segB := variant.NewBlock("PolylineSegments")
	for _, r := range recs {
		segB.Add(m.plSegmentBlock(r))
	}
	params.Add(ptsB.Value(), segB.Value())
	if spec.xsect != nil {
		params.Add(m.xsectionBlock(*spec.xsect))
	}

	kind := KindLine
	if spec.covered {
		kind = KindSheet
	}
	obj, err := m.create(ctx, "CreatePolyline", kind, variant.List(params.Value(), attrs.block()))
	if err != nil {
		return nil, err
	}
	return &Polyline{
		Object3D: obj,
		points:   path,
		records:  recs,
		closed:   spec.closed,
		covered:  spec.covered,
		xsect:    spec.xsect,
	}, nil
}

// Points returns the flattened point list in model units.
func (p *Polyline) Points() []r3.Vec {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	return slices.Clone(p.points)
}

// Segments returns the segment list.
func (p *Polyline) Segments() []Segment {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	segs := make([]Segment, len(p.records))
	for i, r := range p.records {
		segs[i] = r.seg
	}
	return segs
}

// StartIndexes returns each segment's start index into Points.
func (p *Polyline) StartIndexes() []int {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	starts := make([]int, len(p.records))
	for i, r := range p.records {
		starts[i] = r.start
	}
	return starts
}

// IsClosed reports whether the last point joins back to the first.
func (p *Polyline) IsClosed() bool {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	return p.closed
}

// IsCovered reports whether the enclosed area is filled.
func (p *Polyline) IsCovered() bool {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	return p.covered
}

// InsertSegment grafts a new segment onto the polyline. The span lists the
// segment's points in path order and must touch the polyline at exactly one
// end: ending at the first vertex prepends, starting at the last vertex
// appends, and starting at an interior joint inserts between segments.
// Angular arcs pass only their anchor point and synthesize the rest.
func (p *Polyline) InsertSegment(ctx context.Context, span [][3]quantity.Quantity, seg Segment) error {
	if err := p.aliveErr(); err != nil {
		return err
	}
	want, err := seg.pointSpan()
	if err != nil {
		return err
	}
	vecs := make([]r3.Vec, len(span))
	for i := range span {
		if vecs[i], err = p.m.toModelVec(span[i]); err != nil {
			return fmt.Errorf("modeler: span point %d: %w", i, err)
		}
	}
	angular := seg.Type == SegmentAngularArc
	if angular {
		if len(vecs) != 1 {
			return fmt.Errorf("modeler: angular arc insert takes only its anchor point, got %d", len(vecs))
		}
	} else if len(vecs) != want {
		return fmt.Errorf("modeler: %s insert needs %d points, got %d", string(seg.Type), want, len(vecs))
	}

	const tol = geometry.DefaultTolerance
	p.m.mu.RLock()
	pts := slices.Clone(p.points)
	recs := slices.Clone(p.records)
	p.m.mu.RUnlock()
	last := len(pts) - 1

	var pos, at int
	var newPts []r3.Vec
	switch {
	case geometry.PointsDistance(vecs[0], pts[last]) <= tol:
		pos, at = len(recs), last
		if angular {
			mid, end, err := p.m.sweepPoints(seg, pts[last], 1)
			if err != nil {
				return err
			}
			newPts = []r3.Vec{mid, end}
		} else {
			newPts = vecs[1:]
		}
	case !angular && geometry.PointsDistance(vecs[len(vecs)-1], pts[0]) <= tol:
		pos, at = 0, 0
		newPts = vecs[:len(vecs)-1]
	case angular && geometry.PointsDistance(vecs[0], pts[0]) <= tol:
		// swept backwards so the synthesized points precede the anchor
		pos, at = 0, 0
		mid, end, err := p.m.sweepPoints(seg, pts[0], -1)
		if err != nil {
			return err
		}
		newPts = []r3.Vec{end, mid}
	default:
		idx := -1
		for i, q := range pts {
			if geometry.PointsDistance(vecs[0], q) <= tol {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.New("modeler: span does not touch the polyline")
		}
		if idx == 0 {
			return errors.New("modeler: to extend past the head, order the span to end at the head point")
		}
		rec := -1
		for i := range recs {
			if recs[i].start == idx {
				rec = i
				break
			}
		}
		if rec < 0 {
			return fmt.Errorf("modeler: point %d is interior to a segment, inserts must start at a joint", idx)
		}
		pos, at = rec, idx
		if angular {
			mid, end, err := p.m.sweepPoints(seg, pts[idx], 1)
			if err != nil {
				return err
			}
			newPts = []r3.Vec{mid, end}
		} else {
			newPts = vecs[1:]
		}
	}

	if pos == 0 {
		if geometry.PointsDistance(newPts[len(newPts)-1], pts[0]) <= tol {
			return errors.New("modeler: inserted segment has zero length at its anchor")
		}
	} else if geometry.PointsDistance(newPts[0], pts[at]) <= tol {
		return errors.New("modeler: inserted segment has zero length at its anchor")
	}
	for i := 1; i < len(newPts); i++ {
		if geometry.PointsDistance(newPts[i-1], newPts[i]) <= tol {
			return fmt.Errorf("modeler: coincident inserted points at index %d", i)
		}
	}

	rec := plRecord{seg: seg, start: at, n: want}
	ins := variant.NewBlock("Insert").
		PairString("Selections", p.Name()).
		PairInt("SegmentIndex", pos).
		PairInt("AtPoint", at).
		Add(p.m.plSegmentBlock(rec))
	ptsB := variant.NewBlock("PolylinePoints")
	for _, q := range newPts {
		ptsB.Add(p.m.plPoint(q))
	}
	ins.Add(ptsB.Value())
	if _, err := p.m.inv.Invoke(ctx, remote.TargetEditor, "InsertPolylineSegment", variant.List(ins.Value())); err != nil {
		return fmt.Errorf("modeler: insert segment into %s: %w", p.Name(), err)
	}

	insertAt := at + 1
	if pos == 0 {
		insertAt = 0
	}
	p.m.mu.Lock()
	p.points = slices.Insert(p.points, insertAt, newPts...)
	p.records = slices.Insert(p.records, pos, rec)
	renumberRecords(p.records)
	p.dropTopoLocked()
	p.m.mu.Unlock()
	return nil
}

// RemoveSegment deletes the segment at the given index together with the
// points only it used.
func (p *Polyline) RemoveSegment(ctx context.Context, index int) error {
	if err := p.aliveErr(); err != nil {
		return err
	}
	p.m.mu.RLock()
	count := len(p.records)
	p.m.mu.RUnlock()
	if index < 0 || index >= count {
		return fmt.Errorf("modeler: segment index %d out of range", index)
	}
	if count == 1 {
		return errors.New("modeler: cannot remove the only segment")
	}
	args := variant.List(variant.NewBlock("Delete Segment").
		PairString("Selections", p.Name()).
		Pair("Segment Indices", variant.List(variant.Int(index))).
		Value())
	if _, err := p.m.inv.Invoke(ctx, remote.TargetEditor, "DeletePolylinePoint", args); err != nil {
		return fmt.Errorf("modeler: remove segment %d of %s: %w", index, p.Name(), err)
	}

	p.m.mu.Lock()
	rec := p.records[index]
	lo, hi := rec.start+1, rec.start+rec.n-1
	if index == 0 {
		lo, hi = rec.start, rec.start+rec.n-2
	}
	p.points = slices.Delete(p.points, lo, hi+1)
	p.records = slices.Delete(p.records, index, index+1)
	renumberRecords(p.records)
	p.dropTopoLocked()
	p.m.mu.Unlock()
	return nil
}

// RemovePoint deletes a terminal vertex by removing the segment that ends
// there. Interior vertices cannot be removed on their own.
func (p *Polyline) RemovePoint(ctx context.Context, position [3]quantity.Quantity) error {
	v, err := p.m.toModelVec(position)
	if err != nil {
		return fmt.Errorf("modeler: %w", err)
	}
	p.m.mu.RLock()
	idx := -1
	for i, q := range p.points {
		if geometry.PointsDistance(v, q) <= geometry.DefaultTolerance {
			idx = i
			break
		}
	}
	lastIdx := len(p.points) - 1
	segCount := len(p.records)
	p.m.mu.RUnlock()
	switch {
	case idx < 0:
		return errors.New("modeler: no polyline vertex at the given position")
	case idx == 0:
		return p.RemoveSegment(ctx, 0)
	case idx == lastIdx:
		return p.RemoveSegment(ctx, segCount-1)
	}
	return errors.New("modeler: only end points can be removed")
}

// Cover fills the enclosed area, turning the closed polyline into a sheet.
func (p *Polyline) Cover(ctx context.Context) error {
	if err := p.aliveErr(); err != nil {
		return err
	}
	p.m.mu.RLock()
	covered, closed := p.covered, p.closed
	p.m.mu.RUnlock()
	if covered {
		return nil
	}
	if !closed {
		return errors.New("modeler: only closed polylines can be covered")
	}
	args := variant.List(variant.NewBlock("Selections").PairString("Selections", p.Name()).Value())
	if _, err := p.m.inv.Invoke(ctx, remote.TargetEditor, "CoverLines", args); err != nil {
		return fmt.Errorf("modeler: cover %s: %w", p.Name(), err)
	}
	p.m.mu.Lock()
	p.covered = true
	p.kind = KindSheet
	p.dropTopoLocked()
	p.m.mu.Unlock()
	return nil
}
