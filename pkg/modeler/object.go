package modeler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// Object3D mirrors one editor object. Topology ids are fetched lazily and
// cached until Invalidate.
type Object3D struct {
	m       *Modeler
	id      int
	name    string
	kind    string
	deleted bool

	faces   []*Face
	edges   []*Edge
	verts   []*Vertex
	facesOK bool
	edgesOK bool
	vertsOK bool
}

// Face is one face of an object.
type Face struct {
	obj *Object3D
	id  int
}

// Edge is one edge of an object.
type Edge struct {
	obj *Object3D
	id  int
}

// Vertex is one vertex of an object.
type Vertex struct {
	obj *Object3D
	id  int
}

// ID returns the host id.
func (o *Object3D) ID() int { return o.id }

// Name returns the current object name.
func (o *Object3D) Name() string {
	o.m.mu.RLock()
	defer o.m.mu.RUnlock()
	return o.name
}

// Kind returns the object kind: solid, sheet or line. Objects adopted via
// RefreshIDs report an empty kind.
func (o *Object3D) Kind() string {
	o.m.mu.RLock()
	defer o.m.mu.RUnlock()
	return o.kind
}

func (o *Object3D) aliveErr() error {
	o.m.mu.RLock()
	defer o.m.mu.RUnlock()
	if o.deleted {
		return fmt.Errorf("modeler: %q: %w", o.name, ErrNotFound)
	}
	return nil
}

// Invalidate drops the cached topology so the next access refetches it.
func (o *Object3D) Invalidate() {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	o.dropTopoLocked()
}

// dropTopoLocked clears the cached topology. Callers hold m.mu.
func (o *Object3D) dropTopoLocked() {
	o.faces, o.edges, o.verts = nil, nil, nil
	o.facesOK, o.edgesOK, o.vertsOK = false, false, false
}

func (o *Object3D) topoIDs(ctx context.Context, method string) ([]int, error) {
	res, err := o.m.inv.Invoke(ctx, remote.TargetEditor, method, variant.List(variant.Str(o.Name())))
	if err != nil {
		return nil, fmt.Errorf("modeler: %s of %s: %w", method, o.Name(), err)
	}
	ids := make([]int, 0, res.Len())
	for _, item := range res.Items() {
		id, ok := item.AsInt()
		if !ok {
			return nil, fmt.Errorf("modeler: %s of %s: non-integer id in reply", method, o.Name())
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Faces returns the object's faces.
func (o *Object3D) Faces(ctx context.Context) ([]*Face, error) {
	if err := o.aliveErr(); err != nil {
		return nil, err
	}
	o.m.mu.RLock()
	if o.facesOK {
		faces := o.faces
		o.m.mu.RUnlock()
		return faces, nil
	}
	o.m.mu.RUnlock()
	ids, err := o.topoIDs(ctx, "GetFaceIDs")
	if err != nil {
		return nil, err
	}
	faces := make([]*Face, len(ids))
	for i, id := range ids {
		faces[i] = &Face{obj: o, id: id}
	}
	o.m.mu.Lock()
	o.faces, o.facesOK = faces, true
	o.m.mu.Unlock()
	return faces, nil
}

// Edges returns the object's edges.
func (o *Object3D) Edges(ctx context.Context) ([]*Edge, error) {
	if err := o.aliveErr(); err != nil {
		return nil, err
	}
	o.m.mu.RLock()
	if o.edgesOK {
		edges := o.edges
		o.m.mu.RUnlock()
		return edges, nil
	}
	o.m.mu.RUnlock()
	ids, err := o.topoIDs(ctx, "GetEdgeIDsFromObject")
	if err != nil {
		return nil, err
	}
	edges := make([]*Edge, len(ids))
	for i, id := range ids {
		edges[i] = &Edge{obj: o, id: id}
	}
	o.m.mu.Lock()
	o.edges, o.edgesOK = edges, true
	o.m.mu.Unlock()
	return edges, nil
}

// Vertices returns the object's vertices.
func (o *Object3D) Vertices(ctx context.Context) ([]*Vertex, error) {
	if err := o.aliveErr(); err != nil {
		return nil, err
	}
	o.m.mu.RLock()
	if o.vertsOK {
		verts := o.verts
		o.m.mu.RUnlock()
		return verts, nil
	}
	o.m.mu.RUnlock()
	ids, err := o.topoIDs(ctx, "GetVertexIDsFromObject")
	if err != nil {
		return nil, err
	}
	verts := make([]*Vertex, len(ids))
	for i, id := range ids {
		verts[i] = &Vertex{obj: o, id: id}
	}
	o.m.mu.Lock()
	o.verts, o.vertsOK = verts, true
	o.m.mu.Unlock()
	return verts, nil
}

// Material reads the assigned material from the host.
func (o *Object3D) Material(ctx context.Context) (string, error) {
	return o.propertyValue(ctx, "Material")
}

// Color reads the display color from the host.
func (o *Object3D) Color(ctx context.Context) (string, error) {
	return o.propertyValue(ctx, "Color")
}

// Transparency reads the display transparency from the host.
func (o *Object3D) Transparency(ctx context.Context) (float64, error) {
	s, err := o.propertyValue(ctx, "Transparent")
	if err != nil {
		return 0, err
	}
	t, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("modeler: transparency of %s: %w", o.Name(), err)
	}
	return t, nil
}

func (o *Object3D) propertyValue(ctx context.Context, prop string) (string, error) {
	if err := o.aliveErr(); err != nil {
		return "", err
	}
	args := variant.List(variant.Str("Geometry3DAttributeTab"), variant.Str(o.Name()), variant.Str(prop))
	res, err := o.m.inv.Invoke(ctx, remote.TargetEditor, "GetPropertyValue", args)
	if err != nil {
		return "", fmt.Errorf("modeler: read %s of %s: %w", prop, o.Name(), err)
	}
	s, ok := res.Item(0).AsString()
	if !ok {
		return "", fmt.Errorf("modeler: read %s of %s: bad reply", prop, o.Name())
	}
	return strings.Trim(s, `"`), nil
}

// SetName renames the object on the host and in the mirror.
func (o *Object3D) SetName(ctx context.Context, name string) error {
	if err := o.aliveErr(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("modeler: empty name for %s", o.Name())
	}
	old := o.Name()
	if name == old {
		return nil
	}
	if err := o.m.changeProperty(ctx, old, "Name", variant.Str(name)); err != nil {
		return err
	}
	o.m.mu.Lock()
	delete(o.m.names, old)
	o.name = name
	o.m.names[name] = o.id
	o.m.mu.Unlock()
	return nil
}

// SetMaterial changes the assigned material.
func (o *Object3D) SetMaterial(ctx context.Context, material string) error {
	if err := o.aliveErr(); err != nil {
		return err
	}
	return o.m.changeProperty(ctx, o.Name(), "Material", variant.Str(strconv.Quote(material)))
}

// SetColor changes the display color.
func (o *Object3D) SetColor(ctx context.Context, r, g, b uint8) error {
	if err := o.aliveErr(); err != nil {
		return err
	}
	return o.m.changeProperty(ctx, o.Name(), "Color", variant.Str(fmt.Sprintf("(%d %d %d)", r, g, b)))
}

// SetTransparency changes the display transparency in [0, 1].
func (o *Object3D) SetTransparency(ctx context.Context, t float64) error {
	if err := o.aliveErr(); err != nil {
		return err
	}
	if t < 0 || t > 1 {
		return fmt.Errorf("modeler: transparency %v out of range", t)
	}
	return o.m.changeProperty(ctx, o.Name(), "Transparent", variant.Num(t))
}

// Delete removes the object from the host and the mirror.
func (o *Object3D) Delete(ctx context.Context) error {
	if err := o.aliveErr(); err != nil {
		return err
	}
	name := o.Name()
	args := variant.List(variant.NewBlock("Selections").PairString("Selections", name).Value())
	if _, err := o.m.inv.Invoke(ctx, remote.TargetEditor, "Delete", args); err != nil {
		return fmt.Errorf("modeler: delete %s: %w", name, err)
	}
	o.m.mu.Lock()
	o.deleted = true
	delete(o.m.names, o.name)
	delete(o.m.objects, o.id)
	o.m.mu.Unlock()
	return nil
}

// ID returns the host face id.
func (f *Face) ID() int { return f.id }

// Center returns the face center in model units.
func (f *Face) Center(ctx context.Context) (r3.Vec, error) {
	res, err := f.obj.m.inv.Invoke(ctx, remote.TargetEditor, "GetFaceCenter", variant.List(variant.Int(f.id)))
	if err != nil {
		return r3.Vec{}, fmt.Errorf("modeler: center of face %d: %w", f.id, err)
	}
	v, err := vecOf(res)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("modeler: center of face %d: %w", f.id, err)
	}
	return v, nil
}

// ID returns the host edge id.
func (e *Edge) ID() int { return e.id }

// Vertices returns the edge's end vertices.
func (e *Edge) Vertices(ctx context.Context) ([]*Vertex, error) {
	res, err := e.obj.m.inv.Invoke(ctx, remote.TargetEditor, "GetVertexIDsFromEdge", variant.List(variant.Int(e.id)))
	if err != nil {
		return nil, fmt.Errorf("modeler: vertices of edge %d: %w", e.id, err)
	}
	verts := make([]*Vertex, 0, res.Len())
	for _, item := range res.Items() {
		id, ok := item.AsInt()
		if !ok {
			return nil, fmt.Errorf("modeler: vertices of edge %d: non-integer id in reply", e.id)
		}
		verts = append(verts, &Vertex{obj: e.obj, id: id})
	}
	return verts, nil
}

// Midpoint returns the midpoint of the edge's end vertices in model units.
func (e *Edge) Midpoint(ctx context.Context) (r3.Vec, error) {
	verts, err := e.Vertices(ctx)
	if err != nil {
		return r3.Vec{}, err
	}
	if len(verts) != 2 {
		return r3.Vec{}, fmt.Errorf("modeler: edge %d has %d vertices", e.id, len(verts))
	}
	a, err := verts[0].Position(ctx)
	if err != nil {
		return r3.Vec{}, err
	}
	b, err := verts[1].Position(ctx)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Z: (a.Z + b.Z) / 2}, nil
}

// ID returns the host vertex id.
func (v *Vertex) ID() int { return v.id }

// Position returns the vertex position in model units.
func (v *Vertex) Position(ctx context.Context) (r3.Vec, error) {
	res, err := v.obj.m.inv.Invoke(ctx, remote.TargetEditor, "GetVertexPosition", variant.List(variant.Int(v.id)))
	if err != nil {
		return r3.Vec{}, fmt.Errorf("modeler: position of vertex %d: %w", v.id, err)
	}
	p, err := vecOf(res)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("modeler: position of vertex %d: %w", v.id, err)
	}
	return p, nil
}
