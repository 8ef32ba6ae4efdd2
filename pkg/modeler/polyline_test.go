package modeler

import (
	"context"
	"math"
	"slices"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/geometry"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/quantity"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
)

// hostPositions reads the polyline's vertex positions back from the host.
// Comparing them against the local mirror proves the emitted payloads mean
// the same thing on both sides.
func hostPositions(t *testing.T, ctx context.Context, obj *Object3D) []r3.Vec {
	t.Helper()
	verts, err := obj.Vertices(ctx)
	if err != nil {
		t.Fatalf("Failed to get vertices: %v", err)
	}
	out := make([]r3.Vec, len(verts))
	for i, v := range verts {
		p, err := v.Position(ctx)
		if err != nil {
			t.Fatalf("Failed to get vertex position: %v", err)
		}
		out[i] = p
	}
	return out
}

func checkMirror(t *testing.T, ctx context.Context, p *Polyline, wantStarts []int) {
	t.Helper()
	if got := p.StartIndexes(); !slices.Equal(got, wantStarts) {
		t.Fatalf("StartIndexes = %v, want %v", got, wantStarts)
	}
	host := hostPositions(t, ctx, p.Object3D)
	mirror := p.Points()
	if len(host) != len(mirror) {
		t.Fatalf("Host has %d points, mirror has %d", len(host), len(mirror))
	}
	for i := range host {
		if !vecClose(host[i], mirror[i]) {
			t.Fatalf("Point %d: host %v, mirror %v", i, host[i], mirror[i])
		}
	}
}

func TestCreatePolyline(t *testing.T) {
	m, rec := newTestRig(t)
	ctx := context.Background()

	pl, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{
		mm3(0, 0, 0), mm3(10, 0, 0), mm3(10, 10, 0),
	}, WithAttributes(WithName("Trace")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}
	if got := pl.Kind(); got != KindLine {
		t.Errorf("Kind = %q, want %q", got, KindLine)
	}
	segs := pl.Segments()
	if len(segs) != 2 || segs[0].Type != SegmentLine || segs[1].Type != SegmentLine {
		t.Fatalf("Segments = %+v, want two lines", segs)
	}
	checkMirror(t, ctx, pl, []int{0, 1})

	calls := rec.CallsTo(remote.TargetEditor, "CreatePolyline")
	if len(calls) != 1 {
		t.Fatalf("CreatePolyline calls = %d, want 1", len(calls))
	}
	params := calls[0].Args.FindBlock("PolylineParameters")
	if params == nil {
		t.Fatal("Payload has no PolylineParameters block")
	}
	if closed, _ := params.LookupBool("IsPolylineClosed"); closed {
		t.Error("IsPolylineClosed = true, want false")
	}
	pts := params.FindBlock("PolylinePoints")
	if pts == nil || len(pts.Blocks()) != 3 {
		t.Fatalf("PolylinePoints = %v, want 3 PLPoint blocks", pts)
	}
	if x, _ := pts.Blocks()[1].LookupString("X"); x != "10mm" {
		t.Errorf("Second point X = %q, want %q", x, "10mm")
	}
	segBlocks := params.FindBlock("PolylineSegments")
	if segBlocks == nil || len(segBlocks.Blocks()) != 2 {
		t.Fatalf("PolylineSegments = %v, want 2 PLSegment blocks", segBlocks)
	}
	if start, _ := segBlocks.Blocks()[1].LookupInt("StartIndex"); start != 1 {
		t.Errorf("Second segment StartIndex = %d, want 1", start)
	}
}

func TestCreatePolylineArc(t *testing.T) {
	m, _ := newTestRig(t)
	ctx := context.Background()

	pl, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{
		mm3(0, 0, 0), mm3(10, 0, 0), mm3(15, 5, 0), mm3(20, 0, 0),
	}, WithSegments(LineSegment(), ArcSegment()), WithAttributes(WithName("Bend")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}
	checkMirror(t, ctx, pl, []int{0, 1})
	edges, err := pl.Edges(ctx)
	if err != nil {
		t.Fatalf("Failed to get edges: %v", err)
	}
	if len(edges) != 2 {
		t.Errorf("Edges = %d, want 2", len(edges))
	}
}

func TestAngularArcSynthesis(t *testing.T) {
	m, rec := newTestRig(t)
	ctx := context.Background()

	arc := AngularArcSegment(mm3(0, 0, 0), quantity.Deg(90), geometry.PlaneXY)
	pl, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{mm3(10, 0, 0)},
		WithSegments(arc), WithAttributes(WithName("Sweep")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}
	pts := pl.Points()
	if len(pts) != 3 {
		t.Fatalf("Points = %d, want 3 (start, mid, end)", len(pts))
	}
	s := 10 / math.Sqrt2
	if want := (r3.Vec{X: s, Y: s}); !vecClose(pts[1], want) {
		t.Errorf("Synthesized mid point = %v, want %v", pts[1], want)
	}
	if want := (r3.Vec{Y: 10}); !vecClose(pts[2], want) {
		t.Errorf("Synthesized end point = %v, want %v", pts[2], want)
	}
	checkMirror(t, ctx, pl, []int{0})

	call := rec.CallsTo(remote.TargetEditor, "CreatePolyline")[0]
	seg := call.Args.FindBlock("PolylineParameters").FindBlock("PolylineSegments").Blocks()[0]
	if typ, _ := seg.LookupString("SegmentType"); typ != "AngularArc" {
		t.Errorf("SegmentType = %q, want AngularArc", typ)
	}
	if angle, _ := seg.LookupString("ArcAngle"); angle != "90deg" {
		t.Errorf("ArcAngle = %q, want %q", angle, "90deg")
	}
	if plane, _ := seg.LookupString("ArcPlane"); plane != "XY" {
		t.Errorf("ArcPlane = %q, want %q", plane, "XY")
	}

	// Appending another quarter turn continues from the synthesized end.
	if err := pl.InsertSegment(ctx, [][3]quantity.Quantity{mm3(0, 10, 0)},
		AngularArcSegment(mm3(0, 0, 0), quantity.Deg(90), geometry.PlaneXY)); err != nil {
		t.Fatalf("Failed to append angular arc: %v", err)
	}
	pts = pl.Points()
	if len(pts) != 5 {
		t.Fatalf("Points after append = %d, want 5", len(pts))
	}
	if want := (r3.Vec{X: -10}); !vecClose(pts[4], want) {
		t.Errorf("End after append = %v, want %v", pts[4], want)
	}
	checkMirror(t, ctx, pl, []int{0, 2})

	// Prepending sweeps backwards from the head anchor.
	if err := pl.InsertSegment(ctx, [][3]quantity.Quantity{mm3(10, 0, 0)},
		AngularArcSegment(mm3(0, 0, 0), quantity.Deg(90), geometry.PlaneXY)); err != nil {
		t.Fatalf("Failed to prepend angular arc: %v", err)
	}
	pts = pl.Points()
	if len(pts) != 7 {
		t.Fatalf("Points after prepend = %d, want 7", len(pts))
	}
	if want := (r3.Vec{Y: -10}); !vecClose(pts[0], want) {
		t.Errorf("Head after prepend = %v, want %v", pts[0], want)
	}
	checkMirror(t, ctx, pl, []int{0, 2, 4})
}

func TestInsertSegmentGraft(t *testing.T) {
	m, rec := newTestRig(t)
	ctx := context.Background()

	pl, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{
		mm3(0, 0, 0), mm3(10, 0, 0), mm3(20, 0, 0),
	}, WithAttributes(WithName("Poly1")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}

	// Graft at the interior joint: the span starts at the shared vertex.
	err = pl.InsertSegment(ctx, [][3]quantity.Quantity{mm3(10, 0, 0), mm3(5, 5, 0)}, LineSegment())
	if err != nil {
		t.Fatalf("Failed to insert mid segment: %v", err)
	}
	checkMirror(t, ctx, pl, []int{0, 1, 2})
	if got := pl.Points(); !vecClose(got[2], r3.Vec{X: 5, Y: 5}) {
		t.Fatalf("Point 2 = %v, want (5,5,0)", got[2])
	}

	calls := rec.CallsTo(remote.TargetEditor, "InsertPolylineSegment")
	if len(calls) != 1 {
		t.Fatalf("InsertPolylineSegment calls = %d, want 1", len(calls))
	}
	ins := calls[0].Args.FindBlock("Insert")
	if ins == nil {
		t.Fatal("Payload has no Insert block")
	}
	if idx, _ := ins.LookupInt("SegmentIndex"); idx != 1 {
		t.Errorf("SegmentIndex = %d, want 1", idx)
	}
	if at, _ := ins.LookupInt("AtPoint"); at != 1 {
		t.Errorf("AtPoint = %d, want 1", at)
	}
	seg := ins.FindBlock("PLSegment")
	if start, _ := seg.LookupInt("StartIndex"); start != 1 {
		t.Errorf("StartIndex = %d, want 1", start)
	}
	if n, _ := seg.LookupInt("NoOfPoints"); n != 2 {
		t.Errorf("NoOfPoints = %d, want 2", n)
	}
	newPts := ins.FindBlock("PolylinePoints")
	if len(newPts.Blocks()) != 1 {
		t.Fatalf("Inserted points = %d, want 1", len(newPts.Blocks()))
	}
	if x, _ := newPts.Blocks()[0].LookupString("X"); x != "5mm" {
		t.Errorf("Inserted point X = %q, want %q", x, "5mm")
	}

	// Prepend: the span ends at the head vertex.
	err = pl.InsertSegment(ctx, [][3]quantity.Quantity{mm3(-5, 0, 0), mm3(0, 0, 0)}, LineSegment())
	if err != nil {
		t.Fatalf("Failed to insert head segment: %v", err)
	}
	checkMirror(t, ctx, pl, []int{0, 1, 2, 3})
	if got := pl.Points(); !vecClose(got[0], r3.Vec{X: -5}) {
		t.Fatalf("Head point = %v, want (-5,0,0)", got[0])
	}
	head, _ := rec.LastCall()
	hb := head.Args.FindBlock("Insert")
	if idx, _ := hb.LookupInt("SegmentIndex"); idx != 0 {
		t.Errorf("Head SegmentIndex = %d, want 0", idx)
	}
	if at, _ := hb.LookupInt("AtPoint"); at != 0 {
		t.Errorf("Head AtPoint = %d, want 0", at)
	}

	// Append: the span starts at the tail vertex.
	err = pl.InsertSegment(ctx, [][3]quantity.Quantity{mm3(20, 0, 0), mm3(30, 0, 0)}, LineSegment())
	if err != nil {
		t.Fatalf("Failed to insert tail segment: %v", err)
	}
	checkMirror(t, ctx, pl, []int{0, 1, 2, 3, 4})
	tail, _ := rec.LastCall()
	tb := tail.Args.FindBlock("Insert")
	if idx, _ := tb.LookupInt("SegmentIndex"); idx != 4 {
		t.Errorf("Tail SegmentIndex = %d, want 4", idx)
	}
	if at, _ := tb.LookupInt("AtPoint"); at != 4 {
		t.Errorf("Tail AtPoint = %d, want 4", at)
	}

	// A three point arc grafted past the new tail.
	err = pl.InsertSegment(ctx, [][3]quantity.Quantity{
		mm3(30, 0, 0), mm3(35, 5, 0), mm3(40, 0, 0),
	}, ArcSegment())
	if err != nil {
		t.Fatalf("Failed to insert arc segment: %v", err)
	}
	checkMirror(t, ctx, pl, []int{0, 1, 2, 3, 4, 5})
	if got := len(pl.Points()); got != 8 {
		t.Fatalf("Points = %d, want 8", got)
	}
}

func TestInsertSegmentRejections(t *testing.T) {
	m, _ := newTestRig(t)
	ctx := context.Background()

	pl, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{
		mm3(0, 0, 0), mm3(10, 0, 0), mm3(15, 5, 0), mm3(20, 0, 0),
	}, WithSegments(LineSegment(), ArcSegment()), WithAttributes(WithName("Poly2")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}

	cases := []struct {
		name string
		span [][3]quantity.Quantity
		seg  Segment
		want string
	}{
		{
			name: "detached span",
			span: [][3]quantity.Quantity{mm3(99, 99, 99), mm3(98, 98, 98)},
			seg:  LineSegment(),
			want: "does not touch",
		},
		{
			name: "anchor inside arc",
			span: [][3]quantity.Quantity{mm3(15, 5, 0), mm3(50, 50, 0)},
			seg:  LineSegment(),
			want: "interior to a segment",
		},
		{
			name: "head anchored at span start",
			span: [][3]quantity.Quantity{mm3(0, 0, 0), mm3(-9, 9, 0)},
			seg:  LineSegment(),
			want: "end at the head point",
		},
		{
			name: "zero length",
			span: [][3]quantity.Quantity{mm3(20, 0, 0), mm3(20, 0, 0)},
			seg:  LineSegment(),
			want: "zero length",
		},
		{
			name: "wrong span size",
			span: [][3]quantity.Quantity{mm3(20, 0, 0), mm3(25, 0, 0), mm3(30, 0, 0)},
			seg:  LineSegment(),
			want: "needs 2 points",
		},
		{
			name: "angular arc with extra points",
			span: [][3]quantity.Quantity{mm3(20, 0, 0), mm3(25, 0, 0)},
			seg:  AngularArcSegment(mm3(0, 0, 0), quantity.Deg(90), geometry.PlaneXY),
			want: "only its anchor",
		},
		{
			name: "short spline",
			span: [][3]quantity.Quantity{mm3(20, 0, 0), mm3(25, 0, 0)},
			seg:  SplineSegment(3),
			want: "at least 4",
		},
	}
	for _, tc := range cases {
		err := pl.InsertSegment(ctx, tc.span, tc.seg)
		if err == nil {
			t.Errorf("%s: insert succeeded, want error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error = %v, want mention of %q", tc.name, err, tc.want)
		}
	}
	// Nothing mutated.
	checkMirror(t, ctx, pl, []int{0, 1})
}

func TestRemoveSegmentAndPoint(t *testing.T) {
	m, _ := newTestRig(t)
	ctx := context.Background()

	pl, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{
		mm3(0, 0, 0), mm3(10, 0, 0), mm3(20, 0, 0), mm3(30, 0, 0),
	}, WithAttributes(WithName("Chain")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}

	// Removing an interior segment rejoins its neighbors.
	if err := pl.RemoveSegment(ctx, 1); err != nil {
		t.Fatalf("Failed to remove segment: %v", err)
	}
	checkMirror(t, ctx, pl, []int{0, 1})
	want := []r3.Vec{{}, {X: 10}, {X: 30}}
	for i, p := range pl.Points() {
		if !vecClose(p, want[i]) {
			t.Fatalf("Point %d = %v, want %v", i, p, want[i])
		}
	}

	// Removing a terminal point drops the segment ending there.
	if err := pl.RemovePoint(ctx, mm3(0, 0, 0)); err != nil {
		t.Fatalf("Failed to remove head point: %v", err)
	}
	checkMirror(t, ctx, pl, []int{0})
	if got := pl.Points(); len(got) != 2 || !vecClose(got[0], r3.Vec{X: 10}) {
		t.Fatalf("Points = %v, want [(10,0,0) (30,0,0)]", got)
	}

	if err := pl.RemovePoint(ctx, mm3(99, 0, 0)); err == nil || !strings.Contains(err.Error(), "no polyline vertex") {
		t.Errorf("Remove of missing point = %v, want vertex error", err)
	}
	if err := pl.RemoveSegment(ctx, 5); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("Out of range removal = %v, want range error", err)
	}
	if err := pl.RemoveSegment(ctx, 0); err == nil || !strings.Contains(err.Error(), "only segment") {
		t.Errorf("Removal of last segment = %v, want refusal", err)
	}

	long, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{
		mm3(0, 10, 0), mm3(10, 10, 0), mm3(20, 10, 0),
	}, WithAttributes(WithName("Interior")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}
	if err := long.RemovePoint(ctx, mm3(10, 10, 0)); err == nil || !strings.Contains(err.Error(), "end points") {
		t.Errorf("Interior point removal = %v, want end point error", err)
	}
}

func TestCoverPolyline(t *testing.T) {
	m, rec := newTestRig(t)
	ctx := context.Background()

	tri, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{
		mm3(0, 0, 0), mm3(10, 0, 0), mm3(5, 8, 0),
	}, Closed(), WithAttributes(WithName("Tri")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}
	if tri.IsCovered() {
		t.Fatal("Polyline starts covered")
	}
	if err := tri.Cover(ctx); err != nil {
		t.Fatalf("Failed to cover: %v", err)
	}
	if !tri.IsCovered() || tri.Kind() != KindSheet {
		t.Errorf("After cover: covered=%v kind=%q, want true/sheet", tri.IsCovered(), tri.Kind())
	}
	faces, err := tri.Faces(ctx)
	if err != nil {
		t.Fatalf("Failed to get faces: %v", err)
	}
	if len(faces) != 1 {
		t.Errorf("Faces = %d, want 1", len(faces))
	}
	if err := tri.Cover(ctx); err != nil {
		t.Fatalf("Second cover: %v", err)
	}
	if got := len(rec.CallsTo(remote.TargetEditor, "CoverLines")); got != 1 {
		t.Errorf("CoverLines calls = %d, want 1 (second cover is a no-op)", got)
	}

	open, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{
		mm3(0, 20, 0), mm3(10, 20, 0),
	}, WithAttributes(WithName("Open")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}
	if err := open.Cover(ctx); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("Cover of open polyline = %v, want closed error", err)
	}

	cov, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{
		mm3(0, 30, 0), mm3(10, 30, 0), mm3(5, 38, 0),
	}, Covered(), WithAttributes(WithName("Pad")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}
	if !cov.IsClosed() || !cov.IsCovered() || cov.Kind() != KindSheet {
		t.Error("Covered option did not produce a closed sheet")
	}
}

func TestCreatePolylineValidation(t *testing.T) {
	m, _ := newTestRig(t)
	ctx := context.Background()

	cases := []struct {
		name string
		pts  [][3]quantity.Quantity
		opts []PolylineOption
		want string
	}{
		{
			name: "single point",
			pts:  [][3]quantity.Quantity{mm3(0, 0, 0)},
			want: "at least 2 points",
		},
		{
			name: "coincident points",
			pts:  [][3]quantity.Quantity{mm3(0, 0, 0), mm3(0, 0, 0), mm3(5, 0, 0)},
			want: "coincident",
		},
		{
			name: "closed repeats first",
			pts:  [][3]quantity.Quantity{mm3(0, 0, 0), mm3(10, 0, 0), mm3(5, 5, 0), mm3(0, 0, 0)},
			opts: []PolylineOption{Closed()},
			want: "repeat",
		},
		{
			name: "segments starve points",
			pts:  [][3]quantity.Quantity{mm3(0, 0, 0), mm3(10, 0, 0)},
			opts: []PolylineOption{WithSegments(ArcSegment())},
			want: "more points",
		},
		{
			name: "points left over",
			pts:  [][3]quantity.Quantity{mm3(0, 0, 0), mm3(10, 0, 0), mm3(20, 0, 0)},
			opts: []PolylineOption{WithSegments(LineSegment())},
			want: "left over",
		},
		{
			name: "short spline",
			pts:  [][3]quantity.Quantity{mm3(0, 0, 0), mm3(10, 0, 0), mm3(20, 0, 0)},
			opts: []PolylineOption{WithSegments(SplineSegment(3))},
			want: "at least 4",
		},
		{
			name: "unknown segment type",
			pts:  [][3]quantity.Quantity{mm3(0, 0, 0), mm3(10, 0, 0)},
			opts: []PolylineOption{WithSegments(Segment{Type: "Wiggle", NumPoints: 2})},
			want: "unknown segment type",
		},
		{
			name: "arc center on start",
			pts:  [][3]quantity.Quantity{mm3(10, 0, 0)},
			opts: []PolylineOption{WithSegments(AngularArcSegment(mm3(10, 0, 0), quantity.Deg(90), geometry.PlaneXY))},
			want: "coincides",
		},
	}
	for _, tc := range cases {
		_, err := m.CreatePolyline(ctx, tc.pts, tc.opts...)
		if err == nil {
			t.Errorf("%s: create succeeded, want error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error = %v, want mention of %q", tc.name, err, tc.want)
		}
	}
}

func TestCrossSectionPayload(t *testing.T) {
	m, rec := newTestRig(t)
	ctx := context.Background()

	_, err := m.CreatePolyline(ctx, [][3]quantity.Quantity{
		mm3(0, 0, 0), mm3(10, 0, 0),
	}, WithCrossSection(CrossSection{Type: "Circle", Width: quantity.Mm(1), NumSegments: 8}),
		WithAttributes(WithName("Wire")))
	if err != nil {
		t.Fatalf("Failed to create polyline: %v", err)
	}
	call := rec.CallsTo(remote.TargetEditor, "CreatePolyline")[0]
	xs := call.Args.FindBlock("PolylineParameters").FindBlock("PolylineXSection")
	if xs == nil {
		t.Fatal("Payload has no PolylineXSection block")
	}
	if typ, _ := xs.LookupString("XSectionType"); typ != "Circle" {
		t.Errorf("XSectionType = %q, want Circle", typ)
	}
	if w, _ := xs.LookupString("XSectionWidth"); w != "1mm" {
		t.Errorf("XSectionWidth = %q, want 1mm", w)
	}
	if n, _ := xs.LookupInt("XSectionNumSegments"); n != 8 {
		t.Errorf("XSectionNumSegments = %d, want 8", n)
	}
	if bend, _ := xs.LookupString("XSectionBendType"); bend != "Corner" {
		t.Errorf("XSectionBendType = %q, want Corner default", bend)
	}
}
