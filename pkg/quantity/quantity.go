// Package quantity handles the dimensioned value strings the desktop host
// exchanges everywhere ("10mm", "2.5GHz", "-30dBm"). It parses them,
// converts between units of the same dimension, and renders them back in
// the host's compact form without losing the caller's unit choice.
package quantity

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Dimension classifies a unit. Compound dimensions (m/s, W/Hz) are not
// modeled; the host's automation API never asks for them.
type Dimension string

const (
	DimensionNone      Dimension = "dimensionless"
	DimensionLength    Dimension = "length"
	DimensionAngle     Dimension = "angle"
	DimensionFrequency Dimension = "frequency"
	DimensionTime      Dimension = "time"
	DimensionPower     Dimension = "power"
)

// unitDef converts between a display unit and its dimension's base unit
// (meter, radian, hertz, second, watt). Decibel power units convert through
// the linear domain, so both directions are functions rather than factors.
type unitDef struct {
	dim      Dimension
	toBase   func(float64) float64
	fromBase func(float64) float64
}

func factor(dim Dimension, f float64) unitDef {
	return unitDef{
		dim:      dim,
		toBase:   func(v float64) float64 { return v * f },
		fromBase: func(v float64) float64 { return v / f },
	}
}

func decibel(ref float64) unitDef {
	return unitDef{
		dim:      DimensionPower,
		toBase:   func(db float64) float64 { return ref * math.Pow(10, db/10) },
		fromBase: func(w float64) float64 { return 10 * math.Log10(w/ref) },
	}
}

var units = map[string]unitDef{
	// length (base meter)
	"nm":  factor(DimensionLength, 1e-9),
	"um":  factor(DimensionLength, 1e-6),
	"mm":  factor(DimensionLength, 1e-3),
	"cm":  factor(DimensionLength, 1e-2),
	"dm":  factor(DimensionLength, 1e-1),
	"m":   factor(DimensionLength, 1),
	"km":  factor(DimensionLength, 1e3),
	"mil": factor(DimensionLength, 2.54e-5),
	"in":  factor(DimensionLength, 2.54e-2),
	"ft":  factor(DimensionLength, 3.048e-1),

	// angle (base radian)
	"rad":    factor(DimensionAngle, 1),
	"deg":    factor(DimensionAngle, math.Pi/180),
	"degmin": factor(DimensionAngle, math.Pi/(180*60)),
	"degsec": factor(DimensionAngle, math.Pi/(180*3600)),

	// frequency (base hertz)
	"Hz":  factor(DimensionFrequency, 1),
	"kHz": factor(DimensionFrequency, 1e3),
	"MHz": factor(DimensionFrequency, 1e6),
	"GHz": factor(DimensionFrequency, 1e9),
	"THz": factor(DimensionFrequency, 1e12),

	// time (base second)
	"fs":   factor(DimensionTime, 1e-15),
	"ps":   factor(DimensionTime, 1e-12),
	"ns":   factor(DimensionTime, 1e-9),
	"us":   factor(DimensionTime, 1e-6),
	"ms":   factor(DimensionTime, 1e-3),
	"s":    factor(DimensionTime, 1),
	"min":  factor(DimensionTime, 60),
	"hour": factor(DimensionTime, 3600),
	"day":  factor(DimensionTime, 86400),

	// power (base watt)
	"fW":  factor(DimensionPower, 1e-15),
	"pW":  factor(DimensionPower, 1e-12),
	"nW":  factor(DimensionPower, 1e-9),
	"uW":  factor(DimensionPower, 1e-6),
	"mW":  factor(DimensionPower, 1e-3),
	"W":   factor(DimensionPower, 1),
	"kW":  factor(DimensionPower, 1e3),
	"MW":  factor(DimensionPower, 1e6),
	"dBm": decibel(1e-3),
	"dBW": decibel(1),
}

// Quantity is a value with a display unit. An empty Unit means
// dimensionless.
type Quantity struct {
	Value float64
	Unit  string
}

// New returns a Quantity after validating the unit.
func New(value float64, unit string) (Quantity, error) {
	if unit != "" {
		if _, ok := units[unit]; !ok {
			return Quantity{}, unknownUnitError(unit)
		}
	}
	return Quantity{Value: value, Unit: unit}, nil
}

// Mm is shorthand for a length in millimeters, the host's default model unit.
func Mm(v float64) Quantity {
	return Quantity{Value: v, Unit: "mm"}
}

// Deg is shorthand for an angle in degrees.
func Deg(v float64) Quantity {
	return Quantity{Value: v, Unit: "deg"}
}

// GHz is shorthand for a frequency in gigahertz.
func GHz(v float64) Quantity {
	return Quantity{Value: v, Unit: "GHz"}
}

// DBm is shorthand for a power level in dBm.
func DBm(v float64) Quantity {
	return Quantity{Value: v, Unit: "dBm"}
}

// String renders the host's compact form: number immediately followed by
// the unit, no separator.
func (q Quantity) String() string {
	return strconv.FormatFloat(q.Value, 'g', -1, 64) + q.Unit
}

// Dimension reports the quantity's dimension.
func (q Quantity) Dimension() Dimension {
	if q.Unit == "" {
		return DimensionNone
	}
	def, ok := units[q.Unit]
	if !ok {
		return DimensionNone
	}
	return def.dim
}

// BaseValue converts the quantity to its dimension's base unit.
func (q Quantity) BaseValue() float64 {
	def, ok := units[q.Unit]
	if !ok {
		return q.Value
	}
	return def.toBase(q.Value)
}

// In converts the quantity to another unit of the same dimension.
func (q Quantity) In(unit string) (Quantity, error) {
	if q.Unit == unit {
		return q, nil
	}
	v, err := ConvertValue(q.Value, q.Unit, unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: v, Unit: unit}, nil
}

// ConvertValue converts v between two units of the same dimension.
func ConvertValue(v float64, from, to string) (float64, error) {
	if from == to {
		return v, nil
	}
	fromDef, ok := units[from]
	if !ok {
		return 0, unknownUnitError(from)
	}
	toDef, ok := units[to]
	if !ok {
		return 0, unknownUnitError(to)
	}
	if fromDef.dim != toDef.dim {
		return 0, fmt.Errorf("quantity: cannot convert %s (%s) to %s (%s)", from, fromDef.dim, to, toDef.dim)
	}
	return toDef.fromBase(fromDef.toBase(v)), nil
}

// Convert converts q to another unit of the same dimension.
func Convert(q Quantity, unit string) (Quantity, error) {
	return q.In(unit)
}

// Decompose splits a dimensioned string into value and unit, evaluating
// arithmetic when present ("3mm+0.5in" decomposes to 15.7, "mm").
func Decompose(s string) (float64, string, error) {
	q, err := Parse(s)
	if err != nil {
		return 0, "", err
	}
	return q.Value, q.Unit, nil
}

// UnitDimension reports the dimension of a unit name.
func UnitDimension(unit string) (Dimension, bool) {
	def, ok := units[unit]
	if !ok {
		return DimensionNone, false
	}
	return def.dim, true
}

// KnownUnits lists the supported unit names for one dimension, sorted by
// ascending conversion factor (dB units last).
func KnownUnits(dim Dimension) []string {
	var names []string
	for name, def := range units {
		if def.dim == dim {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := units[names[i]], units[names[j]]
		return a.toBase(1) < b.toBase(1)
	})
	return names
}

func unknownUnitError(unit string) error {
	var dims []string
	seen := map[Dimension]bool{}
	for _, def := range units {
		if !seen[def.dim] {
			seen[def.dim] = true
			dims = append(dims, string(def.dim))
		}
	}
	sort.Strings(dims)
	return fmt.Errorf("quantity: unknown unit %q (supported dimensions: %s)", unit, strings.Join(dims, ", "))
}

// System names the display unit per dimension. The modeler uses it to
// render coordinates and the CLI to normalize scene files.
type System struct {
	Length    string
	Angle     string
	Frequency string
	Time      string
	Power     string
}

// DefaultSystem matches the host's defaults for a fresh design.
func DefaultSystem() System {
	return System{Length: "mm", Angle: "deg", Frequency: "GHz", Time: "ns", Power: "dBm"}
}

// Validate checks every named unit exists and has the right dimension.
func (s System) Validate() error {
	checks := []struct {
		unit string
		dim  Dimension
	}{
		{s.Length, DimensionLength},
		{s.Angle, DimensionAngle},
		{s.Frequency, DimensionFrequency},
		{s.Time, DimensionTime},
		{s.Power, DimensionPower},
	}
	for _, c := range checks {
		if c.unit == "" {
			continue
		}
		dim, ok := UnitDimension(c.unit)
		if !ok {
			return unknownUnitError(c.unit)
		}
		if dim != c.dim {
			return fmt.Errorf("quantity: unit %q is %s, want %s", c.unit, dim, c.dim)
		}
	}
	return nil
}

// Format converts q to the system's unit for its dimension and renders it.
// Quantities of unlisted dimensions render unchanged.
func (s System) Format(q Quantity) string {
	target := ""
	switch q.Dimension() {
	case DimensionLength:
		target = s.Length
	case DimensionAngle:
		target = s.Angle
	case DimensionFrequency:
		target = s.Frequency
	case DimensionTime:
		target = s.Time
	case DimensionPower:
		target = s.Power
	}
	if target == "" || target == q.Unit {
		return q.String()
	}
	converted, err := q.In(target)
	if err != nil {
		return q.String()
	}
	return converted.String()
}
