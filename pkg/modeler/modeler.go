// Package modeler is the client side object model for the host's 3D
// editor. Every create call goes through a remote.Invoker as one
// argument-array payload, and the returned handles mirror the host state
// (ids, names, topology) so later calls can be answered or validated
// locally.
package modeler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/quantity"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// Object kinds mirrored from the editor.
const (
	KindSolid = "solid"
	KindSheet = "sheet"
	KindLine  = "line"
)

// ErrNotFound is returned for objects that are not in the mirror, or that
// have been deleted.
var ErrNotFound = errors.New("modeler: object not found")

// Modeler talks to the editor target of a host session and keeps an
// in-memory mirror of the objects it created or adopted.
type Modeler struct {
	mu      sync.RWMutex
	inv     remote.Invoker
	logger  *slog.Logger
	units   quantity.System
	objects map[int]*Object3D
	names   map[string]int
	systems map[string]*CoordinateSystem
}

// New returns a Modeler bound to the given invoker. A zero units system
// falls back to the host defaults; a nil logger discards.
func New(inv remote.Invoker, units quantity.System, logger *slog.Logger) (*Modeler, error) {
	if inv == nil {
		return nil, errors.New("modeler: nil invoker")
	}
	if units == (quantity.System{}) {
		units = quantity.DefaultSystem()
	}
	if err := units.Validate(); err != nil {
		return nil, fmt.Errorf("modeler: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Modeler{
		inv:     inv,
		logger:  logger,
		units:   units,
		objects: make(map[int]*Object3D),
		names:   make(map[string]int),
		systems: make(map[string]*CoordinateSystem),
	}, nil
}

// Units returns the unit system payload values are rendered in.
func (m *Modeler) Units() quantity.System {
	return m.units
}

// UniqueName returns a name with a fresh uuid suffix that no mirrored
// object carries.
func (m *Modeler) UniqueName(prefix string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for {
		name := prefix + "_" + uuid.NewString()[:8]
		if _, taken := m.names[name]; !taken {
			return name
		}
	}
}

// Object returns the mirrored object with the given name.
func (m *Modeler) Object(name string) (*Object3D, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.names[name]
	if !ok {
		return nil, fmt.Errorf("modeler: %q: %w", name, ErrNotFound)
	}
	return m.objects[id], nil
}

// ObjectByID returns the mirrored object with the given host id.
func (m *Modeler) ObjectByID(id int) (*Object3D, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	if !ok {
		return nil, fmt.Errorf("modeler: id %d: %w", id, ErrNotFound)
	}
	return obj, nil
}

// ObjectNames lists the mirrored object names in creation order.
func (m *Modeler) ObjectNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int, 0, len(m.objects))
	for id := range m.objects {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = m.objects[id].name
	}
	return names
}

// RefreshIDs reconciles the mirror with the host: objects deleted on the
// host drop out, host-side renames are adopted, and unknown host objects
// get shell entries.
func (m *Modeler) RefreshIDs(ctx context.Context) error {
	res, err := m.inv.Invoke(ctx, remote.TargetEditor, "GetMatchedObjectName", variant.List(variant.Str("*")))
	if err != nil {
		return fmt.Errorf("modeler: list objects: %w", err)
	}
	host := make(map[string]int, res.Len())
	for _, item := range res.Items() {
		name, ok := item.AsString()
		if !ok {
			return errors.New("modeler: list objects: non-string name in reply")
		}
		idRes, err := m.inv.Invoke(ctx, remote.TargetEditor, "GetObjectIDByName", variant.List(variant.Str(name)))
		if err != nil {
			return fmt.Errorf("modeler: resolve id of %q: %w", name, err)
		}
		id, ok := idRes.Item(0).AsInt()
		if !ok {
			return fmt.Errorf("modeler: resolve id of %q: bad reply", name)
		}
		host[name] = id
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	byID := make(map[int]string, len(host))
	for name, id := range host {
		byID[id] = name
	}
	for id, obj := range m.objects {
		hostName, alive := byID[id]
		if !alive {
			m.logger.Debug("dropping stale object", "name", obj.name, "id", id)
			obj.deleted = true
			delete(m.names, obj.name)
			delete(m.objects, id)
			continue
		}
		if hostName != obj.name {
			m.logger.Debug("adopting host rename", "from", obj.name, "to", hostName)
			delete(m.names, obj.name)
			obj.name = hostName
			m.names[hostName] = id
		}
	}
	for name, id := range host {
		if _, known := m.objects[id]; !known {
			obj := &Object3D{m: m, id: id, name: name}
			m.objects[id] = obj
			m.names[name] = id
		}
	}
	return nil
}

// Attribute customizes the NAME:Attributes block of a create call.
type Attribute func(*attributes)

type attributes struct {
	name         string
	material     string
	color        string
	transparency float64
}

// WithName sets the object name instead of a generated unique one.
func WithName(name string) Attribute {
	return func(a *attributes) { a.name = name }
}

// WithMaterial sets the material assigned at creation.
func WithMaterial(material string) Attribute {
	return func(a *attributes) { a.material = material }
}

// WithColor sets the display color.
func WithColor(r, g, b uint8) Attribute {
	return func(a *attributes) { a.color = fmt.Sprintf("(%d %d %d)", r, g, b) }
}

// WithTransparency sets the display transparency in [0, 1].
func WithTransparency(t float64) Attribute {
	return func(a *attributes) { a.transparency = t }
}

func (m *Modeler) newAttributes(prefix string, opts []Attribute) (attributes, error) {
	a := attributes{
		material: "vacuum",
		color:    "(143 175 143)",
	}
	for _, opt := range opts {
		opt(&a)
	}
	if a.name == "" {
		a.name = m.UniqueName(prefix)
	} else {
		m.mu.RLock()
		_, taken := m.names[a.name]
		m.mu.RUnlock()
		if taken {
			return a, fmt.Errorf("modeler: name %q already in use", a.name)
		}
	}
	if a.transparency < 0 || a.transparency > 1 {
		return a, fmt.Errorf("modeler: transparency %v out of range", a.transparency)
	}
	return a, nil
}

func (a attributes) block() *variant.Value {
	return variant.NewBlock("Attributes").
		PairString("Name", a.name).
		PairString("Flags", "").
		PairString("Color", a.color).
		PairNumber("Transparency", a.transparency).
		PairString("MaterialValue", strconv.Quote(a.material)).
		Value()
}

// toModel converts a length quantity to model units. Dimensionless values
// pass through as model units already.
func (m *Modeler) toModel(q quantity.Quantity) (float64, error) {
	if q.Dimension() == quantity.DimensionNone {
		return q.Value, nil
	}
	conv, err := q.In(m.units.Length)
	if err != nil {
		return 0, err
	}
	return conv.Value, nil
}

func (m *Modeler) toModelVec(p [3]quantity.Quantity) (r3.Vec, error) {
	x, err := m.toModel(p[0])
	if err != nil {
		return r3.Vec{}, err
	}
	y, err := m.toModel(p[1])
	if err != nil {
		return r3.Vec{}, err
	}
	z, err := m.toModel(p[2])
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: x, Y: y, Z: z}, nil
}

func (m *Modeler) lengthString(v float64) string {
	return quantity.Quantity{Value: v, Unit: m.units.Length}.String()
}

// create fires the editor call, resolves the new object's id and registers
// the mirror entry.
func (m *Modeler) create(ctx context.Context, method, kind string, args *variant.Value) (*Object3D, error) {
	res, err := m.inv.Invoke(ctx, remote.TargetEditor, method, args)
	if err != nil {
		return nil, fmt.Errorf("modeler: %s: %w", method, err)
	}
	name, ok := res.Item(0).AsString()
	if !ok || name == "" {
		return nil, fmt.Errorf("modeler: %s returned no object name", method)
	}
	idRes, err := m.inv.Invoke(ctx, remote.TargetEditor, "GetObjectIDByName", variant.List(variant.Str(name)))
	if err != nil {
		return nil, fmt.Errorf("modeler: resolve id of %q: %w", name, err)
	}
	id, ok := idRes.Item(0).AsInt()
	if !ok {
		return nil, fmt.Errorf("modeler: resolve id of %q: bad reply", name)
	}
	obj := &Object3D{m: m, id: id, name: name, kind: kind}
	m.mu.Lock()
	m.objects[id] = obj
	m.names[name] = id
	m.mu.Unlock()
	m.logger.Debug("created object", "method", method, "name", name, "id", id)
	return obj, nil
}

// CreateBox creates an axis aligned box from its origin corner and size.
func (m *Modeler) CreateBox(ctx context.Context, origin, size [3]quantity.Quantity, opts ...Attribute) (*Object3D, error) {
	attrs, err := m.newAttributes("Box", opts)
	if err != nil {
		return nil, err
	}
	params := variant.NewBlock("BoxParameters").
		PairString("XPosition", m.units.Format(origin[0])).
		PairString("YPosition", m.units.Format(origin[1])).
		PairString("ZPosition", m.units.Format(origin[2])).
		PairString("XSize", m.units.Format(size[0])).
		PairString("YSize", m.units.Format(size[1])).
		PairString("ZSize", m.units.Format(size[2]))
	return m.create(ctx, "CreateBox", KindSolid, variant.List(params.Value(), attrs.block()))
}

// CreateCylinder creates a cylinder from its base center, radius and
// height, extruded along the given axis.
func (m *Modeler) CreateCylinder(ctx context.Context, axis Axis, center [3]quantity.Quantity, radius, height quantity.Quantity, opts ...Attribute) (*Object3D, error) {
	if err := axis.valid(); err != nil {
		return nil, err
	}
	attrs, err := m.newAttributes("Cylinder", opts)
	if err != nil {
		return nil, err
	}
	params := variant.NewBlock("CylinderParameters").
		PairString("XCenter", m.units.Format(center[0])).
		PairString("YCenter", m.units.Format(center[1])).
		PairString("ZCenter", m.units.Format(center[2])).
		PairString("Radius", m.units.Format(radius)).
		PairString("Height", m.units.Format(height)).
		PairString("WhichAxis", string(axis))
	return m.create(ctx, "CreateCylinder", KindSolid, variant.List(params.Value(), attrs.block()))
}

// CreateSphere creates a sphere from its center and radius.
func (m *Modeler) CreateSphere(ctx context.Context, center [3]quantity.Quantity, radius quantity.Quantity, opts ...Attribute) (*Object3D, error) {
	attrs, err := m.newAttributes("Sphere", opts)
	if err != nil {
		return nil, err
	}
	params := variant.NewBlock("SphereParameters").
		PairString("XCenter", m.units.Format(center[0])).
		PairString("YCenter", m.units.Format(center[1])).
		PairString("ZCenter", m.units.Format(center[2])).
		PairString("Radius", m.units.Format(radius))
	return m.create(ctx, "CreateSphere", KindSolid, variant.List(params.Value(), attrs.block()))
}

// CreateRectangle creates a rectangle sheet normal to the given axis. An
// uncovered rectangle stays a closed line.
func (m *Modeler) CreateRectangle(ctx context.Context, axis Axis, start [3]quantity.Quantity, width, height quantity.Quantity, covered bool, opts ...Attribute) (*Object3D, error) {
	if err := axis.valid(); err != nil {
		return nil, err
	}
	attrs, err := m.newAttributes("Rectangle", opts)
	if err != nil {
		return nil, err
	}
	params := variant.NewBlock("RectangleParameters").
		PairBool("IsCovered", covered).
		PairString("XStart", m.units.Format(start[0])).
		PairString("YStart", m.units.Format(start[1])).
		PairString("ZStart", m.units.Format(start[2])).
		PairString("Width", m.units.Format(width)).
		PairString("Height", m.units.Format(height)).
		PairString("WhichAxis", string(axis))
	kind := KindSheet
	if !covered {
		kind = KindLine
	}
	return m.create(ctx, "CreateRectangle", kind, variant.List(params.Value(), attrs.block()))
}

// CreateCircle creates a circle sheet normal to the given axis. An
// uncovered circle stays a closed line.
func (m *Modeler) CreateCircle(ctx context.Context, axis Axis, center [3]quantity.Quantity, radius quantity.Quantity, covered bool, opts ...Attribute) (*Object3D, error) {
	if err := axis.valid(); err != nil {
		return nil, err
	}
	attrs, err := m.newAttributes("Circle", opts)
	if err != nil {
		return nil, err
	}
	params := variant.NewBlock("CircleParameters").
		PairBool("IsCovered", covered).
		PairString("XCenter", m.units.Format(center[0])).
		PairString("YCenter", m.units.Format(center[1])).
		PairString("ZCenter", m.units.Format(center[2])).
		PairString("Radius", m.units.Format(radius)).
		PairString("WhichAxis", string(axis)).
		PairInt("NumSegments", 0)
	kind := KindSheet
	if !covered {
		kind = KindLine
	}
	return m.create(ctx, "CreateCircle", kind, variant.List(params.Value(), attrs.block()))
}

// Axis names a principal axis for shapes that take one.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
	AxisZ Axis = "Z"
)

func (a Axis) valid() error {
	switch a {
	case AxisX, AxisY, AxisZ:
		return nil
	}
	return fmt.Errorf("modeler: bad axis %q", string(a))
}

// changeProperty emits the standard AllTabs/PropServers/ChangedProps
// payload for one property of one object.
func (m *Modeler) changeProperty(ctx context.Context, object, prop string, value *variant.Value) error {
	args := variant.List(
		variant.Block("AllTabs",
			variant.Block("Geometry3DAttributeTab",
				variant.Block("PropServers", variant.Str(object)),
				variant.Block("ChangedProps",
					variant.NewBlock(prop).Pair("Value", value).Value(),
				),
			),
		),
	)
	if _, err := m.inv.Invoke(ctx, remote.TargetEditor, "ChangeProperty", args); err != nil {
		return fmt.Errorf("modeler: change %s of %s: %w", prop, object, err)
	}
	return nil
}

// AssignMaterial assigns one material to several objects in a single call.
func (m *Modeler) AssignMaterial(ctx context.Context, material string, objs ...*Object3D) error {
	if len(objs) == 0 {
		return errors.New("modeler: assign material: no objects")
	}
	names := make([]string, len(objs))
	for i, o := range objs {
		if err := o.aliveErr(); err != nil {
			return err
		}
		names[i] = o.Name()
	}
	args := variant.List(
		variant.NewBlock("Selections").PairString("Selections", strings.Join(names, ",")).Value(),
		variant.NewBlock("Attributes").PairString("MaterialValue", strconv.Quote(material)).Value(),
	)
	if _, err := m.inv.Invoke(ctx, remote.TargetEditor, "AssignMaterial", args); err != nil {
		return fmt.Errorf("modeler: assign material: %w", err)
	}
	return nil
}

func vecOf(res *variant.Value) (r3.Vec, error) {
	if res.Len() != 3 {
		return r3.Vec{}, fmt.Errorf("modeler: want 3 coordinates, got %d", res.Len())
	}
	var out [3]float64
	for i := range out {
		f, ok := res.Item(i).AsFloat()
		if !ok {
			return r3.Vec{}, errors.New("modeler: non-numeric coordinate in reply")
		}
		out[i] = f
	}
	return r3.Vec{X: out[0], Y: out[1], Z: out[2]}, nil
}
