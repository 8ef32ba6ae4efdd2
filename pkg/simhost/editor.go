package simhost

import (
	"fmt"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// Object kinds as reported by the editor.
const (
	KindSolid = "solid"
	KindSheet = "sheet"
	KindLine  = "line"
)

// coincidentTol is the distance below which two polyline points count as
// the same point, in model units.
const coincidentTol = 1e-9

type simObject struct {
	id           int
	name         string
	kind         string
	material     string
	color        string
	transparency float64

	faces []int
	edges []int
	verts []int

	points   [][3]float64
	segments []plSegment
	closed   bool
	covered  bool
	centroid [3]float64

	history []*variant.Value
}

type plSegment struct {
	kind      string
	start     int
	numPoints int
}

func (h *Host) clearEditor() {
	h.nextID = 0
	h.objects = make(map[int]*simObject)
	h.names = make(map[string]int)
	h.facePos = make(map[int][3]float64)
	h.vertPos = make(map[int][3]float64)
	h.edgeVerts = make(map[int][]int)
	h.systems = make(map[string]*variant.Value)
	h.workingCS = "Global"
}

func (h *Host) editorCall(method string, args *variant.Value) (*variant.Value, error) {
	switch method {
	case "CreateBox":
		return h.createBox(args)
	case "CreateCylinder":
		return h.createCylinder(args)
	case "CreateSphere":
		return h.createSphere(args)
	case "CreateRectangle":
		return h.createRectangle(args)
	case "CreateCircle":
		return h.createCircle(args)
	case "CreatePolyline":
		return h.createPolyline(args)
	case "InsertPolylineSegment":
		return h.insertPolylineSegment(args)
	case "DeletePolylinePoint":
		return h.deletePolylinePoint(args)
	case "CoverLines":
		return h.coverLines(args)
	case "GetObjectIDByName":
		return h.getObjectIDByName(args)
	case "GetMatchedObjectName":
		return h.getMatchedObjectName(args)
	case "GetFaceIDs":
		return h.objectIDList(method, args, func(o *simObject) []int { return o.faces })
	case "GetEdgeIDsFromObject":
		return h.objectIDList(method, args, func(o *simObject) []int { return o.edges })
	case "GetVertexIDsFromObject":
		return h.objectIDList(method, args, func(o *simObject) []int { return o.verts })
	case "GetVertexIDsFromEdge":
		return h.getVertexIDsFromEdge(args)
	case "GetVertexPosition":
		return h.getPosition(method, args, h.vertPos)
	case "GetFaceCenter":
		return h.getPosition(method, args, h.facePos)
	case "GetPropertyValue":
		return h.getPropertyValue(args)
	case "ChangeProperty":
		return h.changeProperty(args)
	case "Delete":
		return h.deleteSelections(args)
	case "AssignMaterial":
		return h.assignMaterial(args)
	case "CreateRelativeCS":
		return h.createRelativeCS(args)
	case "SetWCS":
		return h.setWCS(args)
	}
	return nil, unknownMethod(remote.TargetEditor, method)
}

func (h *Host) allocID() int {
	h.nextID++
	return h.nextID
}

func (h *Host) byName(method, name string) (*simObject, error) {
	id, ok := h.names[name]
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "not-found", "no object named %q", name)
	}
	return h.objects[id], nil
}

// addObject reserves the name and records the creation arguments. The
// caller materializes geometry afterwards.
func (h *Host) addObject(method, name, kind string, args *variant.Value) (*simObject, error) {
	if name == "" {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing Name attribute")
	}
	if _, taken := h.names[name]; taken {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "name %q already in use", name)
	}
	obj := &simObject{id: h.allocID(), name: name, kind: kind}
	obj.history = append(obj.history, args.Clone())
	h.objects[obj.id] = obj
	h.names[name] = obj.id
	return obj, nil
}

func attrName(args *variant.Value) string {
	name, _ := args.FindBlock("Attributes").LookupString("Name")
	return name
}

func (h *Host) applyAttributes(obj *simObject, args *variant.Value) {
	attrs := args.FindBlock("Attributes")
	if attrs == nil {
		return
	}
	if m, ok := attrs.LookupString("MaterialValue"); ok {
		obj.material = strings.Trim(m, `"`)
	}
	if c, ok := attrs.LookupString("Color"); ok {
		obj.color = c
	}
	if tr, ok := attrs.LookupFloat("Transparency"); ok {
		obj.transparency = tr
	}
}

// blockVec reads three keyed lengths from a parameter block.
func blockVec(b *variant.Value, xKey, yKey, zKey string) ([3]float64, error) {
	var out [3]float64
	for i, key := range [...]string{xKey, yKey, zKey} {
		item, ok := b.Lookup(key)
		if !ok {
			return out, fmt.Errorf("missing %s", key)
		}
		f, err := lengthArg(item)
		if err != nil {
			return out, fmt.Errorf("%s: %w", key, err)
		}
		out[i] = f
	}
	return out, nil
}

func blockLength(b *variant.Value, key string) (float64, error) {
	item, ok := b.Lookup(key)
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	f, err := lengthArg(item)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func axisVector(axis string) ([3]float64, error) {
	switch strings.ToUpper(axis) {
	case "X":
		return [3]float64{1, 0, 0}, nil
	case "Y":
		return [3]float64{0, 1, 0}, nil
	case "Z":
		return [3]float64{0, 0, 1}, nil
	}
	return [3]float64{}, fmt.Errorf("bad axis %q", axis)
}

// axisPlane returns the two in-plane directions for a sheet normal to
// axis, cyclic so that u cross v points along the axis.
func axisPlane(axis string) (u, v [3]float64, err error) {
	switch strings.ToUpper(axis) {
	case "X":
		return [3]float64{0, 1, 0}, [3]float64{0, 0, 1}, nil
	case "Y":
		return [3]float64{0, 0, 1}, [3]float64{1, 0, 0}, nil
	case "Z":
		return [3]float64{1, 0, 0}, [3]float64{0, 1, 0}, nil
	}
	return u, v, fmt.Errorf("bad axis %q", axis)
}

func addScaled(p [3]float64, d [3]float64, s float64) [3]float64 {
	return [3]float64{p[0] + d[0]*s, p[1] + d[1]*s, p[2] + d[2]*s}
}

func ptsClose(a, b [3]float64) bool {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx+dy*dy+dz*dz) < coincidentTol
}

func meanPoint(pts [][3]float64) [3]float64 {
	var c [3]float64
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		c[0] += p[0]
		c[1] += p[1]
		c[2] += p[2]
	}
	n := float64(len(pts))
	return [3]float64{c[0] / n, c[1] / n, c[2] / n}
}

func (h *Host) createBox(args *variant.Value) (*variant.Value, error) {
	const method = "CreateBox"
	params := args.FindBlock("BoxParameters")
	if params == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing BoxParameters block")
	}
	pos, err := blockVec(params, "XPosition", "YPosition", "ZPosition")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	size, err := blockVec(params, "XSize", "YSize", "ZSize")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	if size[0] == 0 || size[1] == 0 || size[2] == 0 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "zero size")
	}
	obj, err := h.addObject(method, attrName(args), KindSolid, args)
	if err != nil {
		return nil, err
	}
	h.applyAttributes(obj, args)

	// 8 corner vertices, indexed by axis bits.
	var corners [8][3]float64
	for i := range corners {
		c := pos
		if i&1 != 0 {
			c[0] += size[0]
		}
		if i&2 != 0 {
			c[1] += size[1]
		}
		if i&4 != 0 {
			c[2] += size[2]
		}
		corners[i] = c
		id := h.allocID()
		obj.verts = append(obj.verts, id)
		h.vertPos[id] = c
	}
	// 12 edges join corners that differ in exactly one bit.
	for _, bit := range [...]int{1, 2, 4} {
		for i := 0; i < 8; i++ {
			if i&bit != 0 {
				continue
			}
			id := h.allocID()
			obj.edges = append(obj.edges, id)
			h.edgeVerts[id] = []int{obj.verts[i], obj.verts[i|bit]}
		}
	}
	// 6 faces in -X, +X, -Y, +Y, -Z, +Z order.
	for axis := 0; axis < 3; axis++ {
		for side := 0; side < 2; side++ {
			c := [3]float64{pos[0] + size[0]/2, pos[1] + size[1]/2, pos[2] + size[2]/2}
			c[axis] = pos[axis] + float64(side)*size[axis]
			id := h.allocID()
			obj.faces = append(obj.faces, id)
			h.facePos[id] = c
		}
	}
	obj.centroid = [3]float64{pos[0] + size[0]/2, pos[1] + size[1]/2, pos[2] + size[2]/2}
	return variant.List(variant.Str(obj.name)), nil
}

func (h *Host) createCylinder(args *variant.Value) (*variant.Value, error) {
	const method = "CreateCylinder"
	params := args.FindBlock("CylinderParameters")
	if params == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing CylinderParameters block")
	}
	center, err := blockVec(params, "XCenter", "YCenter", "ZCenter")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	radius, err := blockLength(params, "Radius")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	height, err := blockLength(params, "Height")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	axis, _ := params.LookupString("WhichAxis")
	dir, err := axisVector(axis)
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	if radius <= 0 || height == 0 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "degenerate cylinder")
	}
	obj, err := h.addObject(method, attrName(args), KindSolid, args)
	if err != nil {
		return nil, err
	}
	h.applyAttributes(obj, args)

	// Bottom, top and lateral face; two rim edges; no vertices.
	for _, s := range [...]float64{0, height, height / 2} {
		id := h.allocID()
		obj.faces = append(obj.faces, id)
		h.facePos[id] = addScaled(center, dir, s)
	}
	for range 2 {
		id := h.allocID()
		obj.edges = append(obj.edges, id)
	}
	obj.centroid = addScaled(center, dir, height/2)
	return variant.List(variant.Str(obj.name)), nil
}

func (h *Host) createSphere(args *variant.Value) (*variant.Value, error) {
	const method = "CreateSphere"
	params := args.FindBlock("SphereParameters")
	if params == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing SphereParameters block")
	}
	center, err := blockVec(params, "XCenter", "YCenter", "ZCenter")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	radius, err := blockLength(params, "Radius")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	if radius <= 0 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "radius must be positive")
	}
	obj, err := h.addObject(method, attrName(args), KindSolid, args)
	if err != nil {
		return nil, err
	}
	h.applyAttributes(obj, args)

	id := h.allocID()
	obj.faces = append(obj.faces, id)
	h.facePos[id] = center
	obj.centroid = center
	return variant.List(variant.Str(obj.name)), nil
}

func (h *Host) createRectangle(args *variant.Value) (*variant.Value, error) {
	const method = "CreateRectangle"
	params := args.FindBlock("RectangleParameters")
	if params == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing RectangleParameters block")
	}
	start, err := blockVec(params, "XStart", "YStart", "ZStart")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	width, err := blockLength(params, "Width")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	height, err := blockLength(params, "Height")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	if width == 0 || height == 0 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "zero size")
	}
	axis, _ := params.LookupString("WhichAxis")
	u, v, err := axisPlane(axis)
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	covered, ok := params.LookupBool("IsCovered")
	if !ok {
		covered = true
	}
	kind := KindSheet
	if !covered {
		kind = KindLine
	}
	obj, err := h.addObject(method, attrName(args), kind, args)
	if err != nil {
		return nil, err
	}
	h.applyAttributes(obj, args)

	corners := [][3]float64{
		start,
		addScaled(start, u, width),
		addScaled(addScaled(start, u, width), v, height),
		addScaled(start, v, height),
	}
	for _, c := range corners {
		id := h.allocID()
		obj.verts = append(obj.verts, id)
		h.vertPos[id] = c
	}
	for i := range corners {
		id := h.allocID()
		obj.edges = append(obj.edges, id)
		h.edgeVerts[id] = []int{obj.verts[i], obj.verts[(i+1)%4]}
	}
	obj.centroid = addScaled(addScaled(start, u, width/2), v, height/2)
	obj.points = corners
	obj.closed = true
	obj.covered = covered
	obj.segments = []plSegment{
		{kind: "Line", start: 0, numPoints: 2},
		{kind: "Line", start: 1, numPoints: 2},
		{kind: "Line", start: 2, numPoints: 2},
	}
	if covered {
		id := h.allocID()
		obj.faces = append(obj.faces, id)
		h.facePos[id] = obj.centroid
	}
	return variant.List(variant.Str(obj.name)), nil
}

func (h *Host) createCircle(args *variant.Value) (*variant.Value, error) {
	const method = "CreateCircle"
	params := args.FindBlock("CircleParameters")
	if params == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing CircleParameters block")
	}
	center, err := blockVec(params, "XCenter", "YCenter", "ZCenter")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	radius, err := blockLength(params, "Radius")
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	if radius <= 0 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "radius must be positive")
	}
	if axis, _ := params.LookupString("WhichAxis"); axis != "" {
		if _, err := axisVector(axis); err != nil {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
		}
	}
	covered, ok := params.LookupBool("IsCovered")
	if !ok {
		covered = true
	}
	kind := KindSheet
	if !covered {
		kind = KindLine
	}
	obj, err := h.addObject(method, attrName(args), kind, args)
	if err != nil {
		return nil, err
	}
	h.applyAttributes(obj, args)

	id := h.allocID()
	obj.edges = append(obj.edges, id)
	obj.centroid = center
	obj.closed = true
	obj.covered = covered
	if covered {
		id := h.allocID()
		obj.faces = append(obj.faces, id)
		h.facePos[id] = center
	}
	return variant.List(variant.Str(obj.name)), nil
}

func segmentPointCount(kind string, n int) error {
	switch kind {
	case "Line":
		if n != 2 {
			return fmt.Errorf("Line segment wants 2 points, got %d", n)
		}
	case "Arc", "AngularArc":
		if n != 3 {
			return fmt.Errorf("%s segment wants 3 points, got %d", kind, n)
		}
	case "Spline":
		if n < 4 {
			return fmt.Errorf("Spline segment wants at least 4 points, got %d", n)
		}
	default:
		return fmt.Errorf("unknown segment type %q", kind)
	}
	return nil
}

func parsePLPoints(block *variant.Value) ([][3]float64, error) {
	var pts [][3]float64
	for _, pb := range block.Blocks() {
		if name, _ := pb.BlockName(); name != "PLPoint" {
			return nil, fmt.Errorf("unexpected block %q in point list", name)
		}
		p, err := blockVec(pb, "X", "Y", "Z")
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func parsePLSegment(sb *variant.Value) (plSegment, error) {
	var seg plSegment
	var ok bool
	if seg.kind, ok = sb.LookupString("SegmentType"); !ok {
		return seg, fmt.Errorf("missing SegmentType")
	}
	if seg.start, ok = sb.LookupInt("StartIndex"); !ok {
		return seg, fmt.Errorf("missing StartIndex")
	}
	if seg.numPoints, ok = sb.LookupInt("NoOfPoints"); !ok {
		return seg, fmt.Errorf("missing NoOfPoints")
	}
	if err := segmentPointCount(seg.kind, seg.numPoints); err != nil {
		return seg, err
	}
	return seg, nil
}

func (h *Host) createPolyline(args *variant.Value) (*variant.Value, error) {
	const method = "CreatePolyline"
	params := args.FindBlock("PolylineParameters")
	if params == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing PolylineParameters block")
	}
	closed, _ := params.LookupBool("IsPolylineClosed")
	covered, _ := params.LookupBool("IsPolylineCovered")
	if covered && !closed {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "covered polyline must be closed")
	}
	pointsBlock := params.FindBlock("PolylinePoints")
	segsBlock := params.FindBlock("PolylineSegments")
	if pointsBlock == nil || segsBlock == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing point or segment block")
	}
	pts, err := parsePLPoints(pointsBlock)
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	if len(pts) < 2 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "polyline wants at least 2 points")
	}
	for i := 0; i+1 < len(pts); i++ {
		if ptsClose(pts[i], pts[i+1]) {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "coincident points at index %d", i)
		}
	}
	if closed && ptsClose(pts[0], pts[len(pts)-1]) {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "closed polyline must not repeat its first point")
	}
	var segs []plSegment
	for _, sb := range segsBlock.Blocks() {
		if name, _ := sb.BlockName(); name != "PLSegment" {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "unexpected block %q in segment list", name)
		}
		seg, err := parsePLSegment(sb)
		if err != nil {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "polyline wants at least 1 segment")
	}
	// Segments chain through shared joints and must cover every point.
	next := 0
	for i, seg := range segs {
		if seg.start != next {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "segment %d starts at %d, want %d", i, seg.start, next)
		}
		next = seg.start + seg.numPoints - 1
	}
	if next != len(pts)-1 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "segments cover points 0..%d, want 0..%d", next, len(pts)-1)
	}

	obj, err := h.addObject(method, attrName(args), polylineKind(covered), args)
	if err != nil {
		return nil, err
	}
	h.applyAttributes(obj, args)
	obj.points = pts
	obj.segments = segs
	obj.closed = closed
	obj.covered = covered
	obj.centroid = meanPoint(pts)
	for _, p := range pts {
		id := h.allocID()
		obj.verts = append(obj.verts, id)
		h.vertPos[id] = p
	}
	for range segs {
		obj.edges = append(obj.edges, h.allocID())
	}
	if closed {
		obj.edges = append(obj.edges, h.allocID())
	}
	h.rechainEdges(obj)
	if covered {
		id := h.allocID()
		obj.faces = append(obj.faces, id)
		h.facePos[id] = obj.centroid
	}
	return variant.List(variant.Str(obj.name)), nil
}

func polylineKind(covered bool) string {
	if covered {
		return KindSheet
	}
	return KindLine
}

// rechainEdges refreshes edge endpoint ids after the segment list or the
// point list changed. Edge i follows segment i; the extra closing edge of
// a closed polyline joins the last point back to the first.
func (h *Host) rechainEdges(obj *simObject) {
	for i, seg := range obj.segments {
		h.edgeVerts[obj.edges[i]] = []int{obj.verts[seg.start], obj.verts[seg.start+seg.numPoints-1]}
	}
	if obj.closed && len(obj.edges) > len(obj.segments) {
		h.edgeVerts[obj.edges[len(obj.edges)-1]] = []int{obj.verts[len(obj.verts)-1], obj.verts[0]}
	}
}

func (h *Host) insertPolylineSegment(args *variant.Value) (*variant.Value, error) {
	const method = "InsertPolylineSegment"
	ins := args.FindBlock("Insert")
	if ins == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing Insert block")
	}
	name, ok := ins.LookupString("Selections")
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing Selections")
	}
	obj, err := h.byName(method, name)
	if err != nil {
		return nil, err
	}
	if len(obj.segments) == 0 || len(obj.points) == 0 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%q is not a polyline", name)
	}
	pos, ok := ins.LookupInt("SegmentIndex")
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing SegmentIndex")
	}
	atPoint, ok := ins.LookupInt("AtPoint")
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing AtPoint")
	}
	segBlock := ins.FindBlock("PLSegment")
	ptsBlock := ins.FindBlock("PolylinePoints")
	if segBlock == nil || ptsBlock == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing segment or point block")
	}
	seg, err := parsePLSegment(segBlock)
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	newPts, err := parsePLPoints(ptsBlock)
	if err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	if pos < 0 || pos > len(obj.segments) {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "segment index %d out of range", pos)
	}
	// The new segment shares exactly one joint with the existing chain.
	if len(newPts) != seg.numPoints-1 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "want %d new points, got %d", seg.numPoints-1, len(newPts))
	}
	switch {
	case pos == 0:
		if atPoint != 0 {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "insert at head wants point 0, got %d", atPoint)
		}
	case pos == len(obj.segments):
		if atPoint != len(obj.points)-1 {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "insert at tail wants point %d, got %d", len(obj.points)-1, atPoint)
		}
	default:
		if atPoint != obj.segments[pos].start {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "point %d is not the joint of segment %d", atPoint, pos)
		}
	}
	if seg.start != atPoint {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "segment start %d does not match insert point %d", seg.start, atPoint)
	}
	anchor := obj.points[atPoint]
	if pos == 0 {
		if ptsClose(newPts[len(newPts)-1], anchor) {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "zero-length segment")
		}
	} else if ptsClose(newPts[0], anchor) {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "zero-length segment")
	}
	for i := 0; i+1 < len(newPts); i++ {
		if ptsClose(newPts[i], newPts[i+1]) {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "coincident points at index %d", i)
		}
	}
	// Chain arithmetic must still close after the insert.
	total := 1
	for _, s := range obj.segments {
		total += s.numPoints - 1
	}
	total += seg.numPoints - 1
	if total != len(obj.points)+len(newPts) {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "segment chain does not cover the point list")
	}

	splice := atPoint + 1
	if pos == 0 {
		splice = 0
	}
	newIDs := make([]int, len(newPts))
	for i, p := range newPts {
		id := h.allocID()
		h.vertPos[id] = p
		newIDs[i] = id
	}
	obj.points = spliceSlice(obj.points, splice, newPts)
	obj.verts = spliceSlice(obj.verts, splice, newIDs)
	obj.segments = spliceSlice(obj.segments, pos, []plSegment{seg})

	edgeID := h.allocID()
	obj.edges = spliceSlice(obj.edges, pos, []int{edgeID})

	renumberSegments(obj.segments)
	h.rechainEdges(obj)
	obj.centroid = meanPoint(obj.points)
	obj.history = append(obj.history, args.Clone())
	return variant.List(), nil
}

func (h *Host) deletePolylinePoint(args *variant.Value) (*variant.Value, error) {
	const method = "DeletePolylinePoint"
	del := args.FindBlock("Delete Segment")
	if del == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing Delete Segment block")
	}
	name, ok := del.LookupString("Selections")
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing Selections")
	}
	obj, err := h.byName(method, name)
	if err != nil {
		return nil, err
	}
	if len(obj.segments) == 0 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%q is not a polyline", name)
	}
	idxVal, ok := del.Lookup("Segment Indices")
	if !ok || idxVal.Kind() != variant.KindList || idxVal.Len() == 0 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing Segment Indices")
	}
	seen := make(map[int]bool)
	var idxs []int
	for _, item := range idxVal.Items() {
		i, ok := item.AsInt()
		if !ok {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "segment index must be a number")
		}
		if i < 0 || i >= len(obj.segments) {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "segment index %d out of range", i)
		}
		if seen[i] {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "duplicate segment index %d", i)
		}
		seen[i] = true
		idxs = append(idxs, i)
	}
	if len(idxs) >= len(obj.segments) {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "cannot delete every segment")
	}

	// Highest first so earlier indices stay valid while cutting.
	sort.Sort(sort.Reverse(sort.IntSlice(idxs)))
	for _, pos := range idxs {
		seg := obj.segments[pos]
		lo, hi := seg.start+1, seg.start+seg.numPoints-1
		if pos == 0 {
			lo, hi = seg.start, seg.start+seg.numPoints-2
		}
		for _, vid := range obj.verts[lo : hi+1] {
			delete(h.vertPos, vid)
		}
		obj.points = cutSlice(obj.points, lo, hi+1)
		obj.verts = cutSlice(obj.verts, lo, hi+1)
		delete(h.edgeVerts, obj.edges[pos])
		obj.edges = cutSlice(obj.edges, pos, pos+1)
		obj.segments = cutSlice(obj.segments, pos, pos+1)
		renumberSegments(obj.segments)
	}
	h.rechainEdges(obj)
	obj.centroid = meanPoint(obj.points)
	obj.history = append(obj.history, args.Clone())
	return variant.List(), nil
}

func renumberSegments(segs []plSegment) {
	acc := 0
	for i := range segs {
		segs[i].start = acc
		acc += segs[i].numPoints - 1
	}
}

func spliceSlice[T any](s []T, at int, ins []T) []T {
	out := make([]T, 0, len(s)+len(ins))
	out = append(out, s[:at]...)
	out = append(out, ins...)
	out = append(out, s[at:]...)
	return out
}

func cutSlice[T any](s []T, lo, hi int) []T {
	out := make([]T, 0, len(s)-(hi-lo))
	out = append(out, s[:lo]...)
	out = append(out, s[hi:]...)
	return out
}

func (h *Host) coverLines(args *variant.Value) (*variant.Value, error) {
	const method = "CoverLines"
	names, err := h.selectionNames(method, args)
	if err != nil {
		return nil, err
	}
	objs := make([]*simObject, 0, len(names))
	for _, name := range names {
		obj, err := h.byName(method, name)
		if err != nil {
			return nil, err
		}
		if obj.kind != KindLine || !obj.closed {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "%q is not a closed line", name)
		}
		objs = append(objs, obj)
	}
	for _, obj := range objs {
		obj.kind = KindSheet
		obj.covered = true
		id := h.allocID()
		obj.faces = append(obj.faces, id)
		h.facePos[id] = obj.centroid
	}
	return variant.List(), nil
}

// selectionNames parses the standard "NAME:Selections" block with its
// comma separated object list.
func (h *Host) selectionNames(method string, args *variant.Value) ([]string, error) {
	sel := args.FindBlock("Selections")
	if sel == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing Selections block")
	}
	list, ok := sel.LookupString("Selections")
	if !ok || list == "" {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "empty selection")
	}
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	if len(names) == 0 {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "empty selection")
	}
	return names, nil
}

func (h *Host) getObjectIDByName(args *variant.Value) (*variant.Value, error) {
	const method = "GetObjectIDByName"
	name, ok := stringArg(args, 0)
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "want (name)")
	}
	obj, err := h.byName(method, name)
	if err != nil {
		return nil, err
	}
	return variant.List(variant.Int(obj.id)), nil
}

func (h *Host) getMatchedObjectName(args *variant.Value) (*variant.Value, error) {
	const method = "GetMatchedObjectName"
	pattern, ok := stringArg(args, 0)
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "want (pattern)")
	}
	ids := make([]int, 0, len(h.objects))
	for id, obj := range h.objects {
		matched, err := path.Match(pattern, obj.name)
		if err != nil {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "bad pattern %q", pattern)
		}
		if matched {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := variant.List()
	for _, id := range ids {
		out.Append(variant.Str(h.objects[id].name))
	}
	return out, nil
}

func (h *Host) objectIDList(method string, args *variant.Value, pick func(*simObject) []int) (*variant.Value, error) {
	name, ok := stringArg(args, 0)
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "want (name)")
	}
	obj, err := h.byName(method, name)
	if err != nil {
		return nil, err
	}
	out := variant.List()
	for _, id := range pick(obj) {
		out.Append(variant.Int(id))
	}
	return out, nil
}

func (h *Host) getVertexIDsFromEdge(args *variant.Value) (*variant.Value, error) {
	const method = "GetVertexIDsFromEdge"
	id, ok := intArg(args, 0)
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "want (edgeID)")
	}
	verts, ok := h.edgeVerts[id]
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "not-found", "no edge %d", id)
	}
	out := variant.List()
	for _, v := range verts {
		out.Append(variant.Int(v))
	}
	return out, nil
}

func (h *Host) getPosition(method string, args *variant.Value, table map[int][3]float64) (*variant.Value, error) {
	id, ok := intArg(args, 0)
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "want (id)")
	}
	p, ok := table[id]
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "not-found", "no entity %d", id)
	}
	return vec3Value(p), nil
}

func (h *Host) getPropertyValue(args *variant.Value) (*variant.Value, error) {
	const method = "GetPropertyValue"
	_, okTab := stringArg(args, 0)
	name, okName := stringArg(args, 1)
	prop, okProp := stringArg(args, 2)
	if !okTab || !okName || !okProp {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "want (tab, object, property)")
	}
	obj, err := h.byName(method, name)
	if err != nil {
		return nil, err
	}
	switch prop {
	case "Name":
		return variant.List(variant.Str(obj.name)), nil
	case "Material":
		return variant.List(variant.Str(obj.material)), nil
	case "Color":
		return variant.List(variant.Str(obj.color)), nil
	case "Transparent":
		return variant.List(variant.Str(strconv.FormatFloat(obj.transparency, 'g', -1, 64))), nil
	}
	return nil, callErr(remote.TargetEditor, method, "bad-args", "unknown property %q", prop)
}

func (h *Host) changeProperty(args *variant.Value) (*variant.Value, error) {
	const method = "ChangeProperty"
	all := args.FindBlock("AllTabs")
	if all == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing AllTabs block")
	}
	for _, tab := range all.Blocks() {
		servers := tab.FindBlock("PropServers")
		changed := tab.FindBlock("ChangedProps")
		if servers == nil || changed == nil {
			return nil, callErr(remote.TargetEditor, method, "bad-args", "missing PropServers or ChangedProps")
		}
		var objs []*simObject
		for _, item := range servers.Items()[1:] {
			name, ok := item.AsString()
			if !ok {
				return nil, callErr(remote.TargetEditor, method, "bad-args", "object name must be a string")
			}
			obj, err := h.byName(method, name)
			if err != nil {
				return nil, err
			}
			objs = append(objs, obj)
		}
		for _, prop := range changed.Blocks() {
			pname, _ := prop.BlockName()
			val, ok := prop.Lookup("Value")
			if !ok {
				return nil, callErr(remote.TargetEditor, method, "bad-args", "property %q has no Value", pname)
			}
			for _, obj := range objs {
				if err := h.setProperty(method, obj, pname, val); err != nil {
					return nil, err
				}
			}
		}
	}
	return variant.List(), nil
}

func (h *Host) setProperty(method string, obj *simObject, prop string, val *variant.Value) error {
	switch prop {
	case "Name":
		name, ok := val.AsString()
		if !ok || name == "" {
			return callErr(remote.TargetEditor, method, "bad-args", "bad name value")
		}
		if name == obj.name {
			return nil
		}
		if _, taken := h.names[name]; taken {
			return callErr(remote.TargetEditor, method, "bad-args", "name %q already in use", name)
		}
		delete(h.names, obj.name)
		obj.name = name
		h.names[name] = obj.id
		return nil
	case "Material":
		s, ok := val.AsString()
		if !ok {
			return callErr(remote.TargetEditor, method, "bad-args", "bad material value")
		}
		obj.material = strings.Trim(s, `"`)
		return nil
	case "Color":
		s, ok := val.AsString()
		if !ok {
			return callErr(remote.TargetEditor, method, "bad-args", "bad color value")
		}
		obj.color = s
		return nil
	case "Transparent":
		f, ok := val.AsFloat()
		if !ok || f < 0 || f > 1 {
			return callErr(remote.TargetEditor, method, "bad-args", "transparency wants a number in [0,1]")
		}
		obj.transparency = f
		return nil
	}
	return callErr(remote.TargetEditor, method, "bad-args", "unknown property %q", prop)
}

func (h *Host) deleteSelections(args *variant.Value) (*variant.Value, error) {
	const method = "Delete"
	names, err := h.selectionNames(method, args)
	if err != nil {
		return nil, err
	}
	var objs []*simObject
	var systems []string
	for _, name := range names {
		if id, ok := h.names[name]; ok {
			objs = append(objs, h.objects[id])
			continue
		}
		if _, ok := h.systems[name]; ok {
			systems = append(systems, name)
			continue
		}
		return nil, callErr(remote.TargetEditor, method, "not-found", "no object named %q", name)
	}
	for _, obj := range objs {
		h.removeObject(obj)
	}
	for _, name := range systems {
		delete(h.systems, name)
		if h.workingCS == name {
			h.workingCS = "Global"
		}
	}
	return variant.List(), nil
}

func (h *Host) removeObject(obj *simObject) {
	for _, id := range obj.faces {
		delete(h.facePos, id)
	}
	for _, id := range obj.verts {
		delete(h.vertPos, id)
	}
	for _, id := range obj.edges {
		delete(h.edgeVerts, id)
	}
	delete(h.names, obj.name)
	delete(h.objects, obj.id)
}

func (h *Host) assignMaterial(args *variant.Value) (*variant.Value, error) {
	const method = "AssignMaterial"
	names, err := h.selectionNames(method, args)
	if err != nil {
		return nil, err
	}
	attrs := args.FindBlock("Attributes")
	mat, ok := attrs.LookupString("MaterialValue")
	if !ok {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing MaterialValue")
	}
	mat = strings.Trim(mat, `"`)
	if mat == "" {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "empty material")
	}
	var objs []*simObject
	for _, name := range names {
		obj, err := h.byName(method, name)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	for _, obj := range objs {
		obj.material = mat
	}
	return variant.List(), nil
}

func (h *Host) createRelativeCS(args *variant.Value) (*variant.Value, error) {
	const method = "CreateRelativeCS"
	params := args.FindBlock("RelativeCSParameters")
	if params == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing RelativeCSParameters block")
	}
	if _, err := blockVec(params, "OriginX", "OriginY", "OriginZ"); err != nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "%v", err)
	}
	attrs := args.FindBlock("Attributes")
	name, _ := attrs.LookupString("Name")
	if name == "" {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing Name attribute")
	}
	if name == "Global" {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "Global is reserved")
	}
	if _, taken := h.systems[name]; taken {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "coordinate system %q already exists", name)
	}
	h.systems[name] = args.Clone()
	return variant.List(variant.Str(name)), nil
}

func (h *Host) setWCS(args *variant.Value) (*variant.Value, error) {
	const method = "SetWCS"
	params := args.FindBlock("SetWCSParameter")
	if params == nil {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing SetWCSParameter block")
	}
	name, ok := params.LookupString("Working Coordinate System")
	if !ok || name == "" {
		return nil, callErr(remote.TargetEditor, method, "bad-args", "missing Working Coordinate System")
	}
	if name != "Global" {
		if _, exists := h.systems[name]; !exists {
			return nil, callErr(remote.TargetEditor, method, "not-found", "no coordinate system named %q", name)
		}
	}
	h.workingCS = name
	return variant.List(), nil
}
