// Package report builds host report definitions and renders solution data
// and classification matrices locally.
package report

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// Display types accepted by the host.
const (
	DisplayRectangular = "Rectangular Plot"
	DisplayDataTable   = "Data Table"
	DisplayPolar       = "Polar Plot"
	DisplayContour     = "Rectangular Contour Plot"
)

var displayTypes = map[string]bool{
	DisplayRectangular: true,
	DisplayDataTable:   true,
	DisplayPolar:       true,
	DisplayContour:     true,
}

// Definition describes one report to create on the host. Start from New;
// the zero value fails validation.
type Definition struct {
	Name        string
	Category    string
	DisplayType string
	Sweep       string
	Context     map[string]string
	Expressions []string
	Variations  map[string][]string
	Primary     string
}

// New returns a definition with the usual defaults: EMI category, a
// rectangular plot over the current sweep with Freq on the primary axis.
func New(name string) *Definition {
	return &Definition{
		Name:        name,
		Category:    "EMI",
		DisplayType: DisplayRectangular,
		Sweep:       "Current",
		Primary:     "Freq",
	}
}

// WithCategory sets the report category.
func (d *Definition) WithCategory(category string) *Definition {
	d.Category = category
	return d
}

// WithDisplayType sets the display type.
func (d *Definition) WithDisplayType(displayType string) *Definition {
	d.DisplayType = displayType
	return d
}

// WithSweep sets the sweep the report reads from.
func (d *Definition) WithSweep(sweep string) *Definition {
	d.Sweep = sweep
	return d
}

// WithContext adds one context entry.
func (d *Definition) WithContext(key, value string) *Definition {
	if d.Context == nil {
		d.Context = make(map[string]string)
	}
	d.Context[key] = value
	return d
}

// WithExpressions appends trace expressions.
func (d *Definition) WithExpressions(exprs ...string) *Definition {
	d.Expressions = append(d.Expressions, exprs...)
	return d
}

// WithVariation pins one sweep variable to the given values.
func (d *Definition) WithVariation(key string, values ...string) *Definition {
	if d.Variations == nil {
		d.Variations = make(map[string][]string)
	}
	d.Variations[key] = values
	return d
}

// WithPrimary sets the primary sweep variable.
func (d *Definition) WithPrimary(primary string) *Definition {
	d.Primary = primary
	return d
}

// Args renders the CreateReport argument array: name, category, display
// type and sweep, then the Context, Families and Trace blocks. Map-backed
// sections render in key order so the payload is stable.
func (d *Definition) Args() (*variant.Value, error) {
	if d.Name == "" {
		return nil, errors.New("report: missing name")
	}
	if len(d.Expressions) == 0 {
		return nil, errors.New("report: no expressions")
	}
	if !displayTypes[d.DisplayType] {
		return nil, fmt.Errorf("report: unknown display type %q", d.DisplayType)
	}

	ctx := variant.NewBlock("Context")
	ctxKeys := maps.Keys(d.Context)
	slices.Sort(ctxKeys)
	for _, k := range ctxKeys {
		ctx.PairString(k, d.Context[k])
	}
	fam := variant.NewBlock("Families")
	famKeys := maps.Keys(d.Variations)
	slices.Sort(famKeys)
	for _, k := range famKeys {
		vals := variant.List()
		for _, v := range d.Variations[k] {
			vals.Append(variant.Str(v))
		}
		fam.Pair(k, vals)
	}
	exprs := variant.List()
	for _, e := range d.Expressions {
		if e == "" {
			return nil, errors.New("report: empty expression")
		}
		exprs.Append(variant.Str(e))
	}
	trace := variant.NewBlock("Trace").
		PairString("X Component", d.Primary).
		Pair("Y Component", exprs)

	return variant.List(
		variant.Str(d.Name),
		variant.Str(d.Category),
		variant.Str(d.DisplayType),
		variant.Str(d.Sweep),
		ctx.Value(),
		fam.Value(),
		trace.Value(),
	), nil
}

// Create issues the definition to the host and returns the created name.
func (d *Definition) Create(ctx context.Context, inv remote.Invoker) (string, error) {
	args, err := d.Args()
	if err != nil {
		return "", err
	}
	res, err := inv.Invoke(ctx, remote.TargetReport, "CreateReport", args)
	if err != nil {
		return "", fmt.Errorf("report: create %s: %w", d.Name, err)
	}
	name, ok := res.Item(0).AsString()
	if !ok || name == "" {
		return "", errors.New("report: create: bad reply")
	}
	return name, nil
}

// Delete removes the named reports from the host. Deleting nothing is a
// no-op.
func Delete(ctx context.Context, inv remote.Invoker, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	list := variant.List()
	for _, n := range names {
		list.Append(variant.Str(n))
	}
	if _, err := inv.Invoke(ctx, remote.TargetReport, "DeleteReports", variant.List(list)); err != nil {
		return fmt.Errorf("report: delete: %w", err)
	}
	return nil
}
