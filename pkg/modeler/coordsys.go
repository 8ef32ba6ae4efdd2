package modeler

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/geometry"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/quantity"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// Orientation is a rotation held as a unit quaternion. Constructors accept
// the usual parameterizations; the payload always goes out as ZYZ Euler
// angles, which the host stores verbatim.
type Orientation struct {
	q quat.Number
}

// Identity is the unrotated orientation.
func Identity() Orientation {
	return Orientation{q: quat.Number{Real: 1}}
}

// AxisAngle builds an orientation from a rotation axis and angle.
func AxisAngle(axis r3.Vec, angle quantity.Quantity) (Orientation, error) {
	rad, err := angle.In("rad")
	if err != nil {
		return Orientation{}, fmt.Errorf("modeler: axis angle: %w", err)
	}
	q, err := geometry.AxisAngleToQuaternion(axis, rad.Value)
	if err != nil {
		return Orientation{}, fmt.Errorf("modeler: axis angle: %w", err)
	}
	return Orientation{q: q}, nil
}

// EulerZYZ builds an orientation from intrinsic Z-Y-Z Euler angles.
func EulerZYZ(phi, theta, psi quantity.Quantity) (Orientation, error) {
	angles, err := radians(phi, theta, psi)
	if err != nil {
		return Orientation{}, fmt.Errorf("modeler: euler zyz: %w", err)
	}
	return Orientation{q: geometry.EulerZYZToQuaternion(angles[0], angles[1], angles[2])}, nil
}

// EulerZXZ builds an orientation from intrinsic Z-X-Z Euler angles.
func EulerZXZ(phi, theta, psi quantity.Quantity) (Orientation, error) {
	angles, err := radians(phi, theta, psi)
	if err != nil {
		return Orientation{}, fmt.Errorf("modeler: euler zxz: %w", err)
	}
	return Orientation{q: geometry.EulerZXZToQuaternion(angles[0], angles[1], angles[2])}, nil
}

// FromQuaternion wraps an existing quaternion.
func FromQuaternion(q quat.Number) Orientation {
	return Orientation{q: q}
}

// Quaternion returns the underlying quaternion.
func (o Orientation) Quaternion() quat.Number {
	return o.q
}

func radians(qs ...quantity.Quantity) ([]float64, error) {
	out := make([]float64, len(qs))
	for i, q := range qs {
		conv, err := q.In("rad")
		if err != nil {
			return nil, err
		}
		out[i] = conv.Value
	}
	return out, nil
}

func (m *Modeler) angleString(rad float64) string {
	v, err := quantity.ConvertValue(rad, "rad", m.units.Angle)
	if err != nil {
		return quantity.Quantity{Value: rad, Unit: "rad"}.String()
	}
	return quantity.Quantity{Value: v, Unit: m.units.Angle}.String()
}

// CoordinateSystem mirrors a relative coordinate system on the host.
type CoordinateSystem struct {
	m       *Modeler
	name    string
	origin  [3]quantity.Quantity
	orient  Orientation
	deleted bool
}

// CreateCoordinateSystem creates a relative coordinate system at origin
// with the given orientation. An empty name gets a generated unique one;
// "Global" is reserved.
func (m *Modeler) CreateCoordinateSystem(ctx context.Context, name string, origin [3]quantity.Quantity, orient Orientation) (*CoordinateSystem, error) {
	if name == "" {
		name = m.UniqueName("RelativeCS")
	}
	if name == "Global" {
		return nil, errors.New(`modeler: "Global" is reserved`)
	}
	m.mu.RLock()
	_, taken := m.systems[name]
	m.mu.RUnlock()
	if taken {
		return nil, fmt.Errorf("modeler: coordinate system %q already exists", name)
	}
	args := m.csArgs(name, origin, orient)
	if _, err := m.inv.Invoke(ctx, remote.TargetEditor, "CreateRelativeCS", args); err != nil {
		return nil, fmt.Errorf("modeler: create coordinate system %q: %w", name, err)
	}
	cs := &CoordinateSystem{m: m, name: name, origin: origin, orient: orient}
	m.mu.Lock()
	m.systems[name] = cs
	m.mu.Unlock()
	return cs, nil
}

func (m *Modeler) csArgs(name string, origin [3]quantity.Quantity, orient Orientation) *variant.Value {
	phi, theta, psi := geometry.QuaternionToEulerZYZ(orient.q)
	params := variant.NewBlock("RelativeCSParameters").
		PairString("Mode", "Euler Angle ZYZ").
		PairString("OriginX", m.units.Format(origin[0])).
		PairString("OriginY", m.units.Format(origin[1])).
		PairString("OriginZ", m.units.Format(origin[2])).
		PairString("Phi", m.angleString(phi)).
		PairString("Theta", m.angleString(theta)).
		PairString("Psi", m.angleString(psi))
	attrs := variant.NewBlock("Attributes").PairString("Name", name)
	return variant.List(params.Value(), attrs.Value())
}

// CoordinateSystem returns the mirrored system with the given name.
func (m *Modeler) CoordinateSystem(name string) (*CoordinateSystem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.systems[name]
	if !ok {
		return nil, fmt.Errorf("modeler: coordinate system %q: %w", name, ErrNotFound)
	}
	return cs, nil
}

// Name returns the system name.
func (cs *CoordinateSystem) Name() string {
	cs.m.mu.RLock()
	defer cs.m.mu.RUnlock()
	return cs.name
}

// Origin returns the origin the system was created with.
func (cs *CoordinateSystem) Origin() [3]quantity.Quantity {
	cs.m.mu.RLock()
	defer cs.m.mu.RUnlock()
	return cs.origin
}

// Orientation returns the system's rotation.
func (cs *CoordinateSystem) Orientation() Orientation {
	cs.m.mu.RLock()
	defer cs.m.mu.RUnlock()
	return cs.orient
}

func (cs *CoordinateSystem) aliveErr() error {
	cs.m.mu.RLock()
	defer cs.m.mu.RUnlock()
	if cs.deleted {
		return fmt.Errorf("modeler: coordinate system %q: %w", cs.name, ErrNotFound)
	}
	return nil
}

// SetWorking makes this system the working coordinate system.
func (cs *CoordinateSystem) SetWorking(ctx context.Context) error {
	if err := cs.aliveErr(); err != nil {
		return err
	}
	args := variant.List(variant.NewBlock("SetWCSParameter").
		PairString("Working Coordinate System", cs.Name()).
		Value())
	if _, err := cs.m.inv.Invoke(ctx, remote.TargetEditor, "SetWCS", args); err != nil {
		return fmt.Errorf("modeler: set working coordinate system %q: %w", cs.Name(), err)
	}
	return nil
}

// Update moves the system to a new origin and orientation. The host has no
// in-place edit for relative systems, so the system is deleted and created
// again under the same name; if it was the working system the host falls
// back to Global, call SetWorking again afterwards.
func (cs *CoordinateSystem) Update(ctx context.Context, origin [3]quantity.Quantity, orient Orientation) error {
	if err := cs.aliveErr(); err != nil {
		return err
	}
	name := cs.Name()
	del := variant.List(variant.NewBlock("Selections").PairString("Selections", name).Value())
	if _, err := cs.m.inv.Invoke(ctx, remote.TargetEditor, "Delete", del); err != nil {
		return fmt.Errorf("modeler: update coordinate system %q: %w", name, err)
	}
	if _, err := cs.m.inv.Invoke(ctx, remote.TargetEditor, "CreateRelativeCS", cs.m.csArgs(name, origin, orient)); err != nil {
		return fmt.Errorf("modeler: update coordinate system %q: %w", name, err)
	}
	cs.m.mu.Lock()
	cs.origin = origin
	cs.orient = orient
	cs.m.mu.Unlock()
	return nil
}

// Delete removes the system from the host and the mirror. If it was the
// working system the host falls back to Global.
func (cs *CoordinateSystem) Delete(ctx context.Context) error {
	if err := cs.aliveErr(); err != nil {
		return err
	}
	name := cs.Name()
	args := variant.List(variant.NewBlock("Selections").PairString("Selections", name).Value())
	if _, err := cs.m.inv.Invoke(ctx, remote.TargetEditor, "Delete", args); err != nil {
		return fmt.Errorf("modeler: delete coordinate system %q: %w", name, err)
	}
	cs.m.mu.Lock()
	cs.deleted = true
	delete(cs.m.systems, name)
	cs.m.mu.Unlock()
	return nil
}
