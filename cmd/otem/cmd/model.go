package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/geometry"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/modeler"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/quantity"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "3D model construction",
	Long:  `Commands that build and inspect 3D model objects on the host editor`,
}

var dumpArgs bool

var modelBuildCmd = &cobra.Command{
	Use:   "build <scene.yaml>",
	Short: "Create the objects of a YAML scene on the host",
	Long: `Build every object of a YAML scene file on the host editor (or the
built-in simulator) and print a summary of the created objects.

A scene file lists objects with per-kind parameters; coordinates are
numbers in model units or dimensioned strings like "0.5in":

  units:
    length: mm
  objects:
    - type: box
      name: Housing
      material: aluminum
      origin: [0, 0, 0]
      size: [20, 10, "0.5in"]
    - type: polyline
      points: [[0, 0, 0], [10, 0, 0], [10, 5, 0]]
      closed: true

With --dump-args no host is touched: the scene is built against the
simulator and the editor call payloads are printed instead.

Examples:
  otem model build scene.yaml
  otem model build --dump-args scene.yaml
  otem model build --host 192.168.1.40 scene.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runModelBuild,
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelBuildCmd)

	modelBuildCmd.Flags().BoolVar(&dumpArgs, "dump-args", false,
		"print the editor call payloads instead of invoking the host")
}

// sceneDim is a scalar that accepts a bare number (model units) or a
// dimensioned string like "2.5mm".
type sceneDim struct {
	q quantity.Quantity
}

func (d *sceneDim) UnmarshalYAML(node *yaml.Node) error {
	var f float64
	if err := node.Decode(&f); err == nil {
		d.q = quantity.Quantity{Value: f}
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("want a number or a dimensioned string: %w", err)
	}
	q, err := quantity.Parse(s)
	if err != nil {
		return err
	}
	d.q = q
	return nil
}

// resolve attaches the model unit to bare numbers; dimensioned values keep
// the unit the scene gave.
func (d sceneDim) resolve(unit string) quantity.Quantity {
	if d.q.Unit == "" {
		return quantity.Quantity{Value: d.q.Value, Unit: unit}
	}
	return d.q
}

// scenePoint is an [x, y, z] coordinate triple.
type scenePoint [3]sceneDim

func (p scenePoint) resolve(unit string) [3]quantity.Quantity {
	return [3]quantity.Quantity{p[0].resolve(unit), p[1].resolve(unit), p[2].resolve(unit)}
}

type scene struct {
	Units   sceneUnits    `yaml:"units"`
	Objects []sceneObject `yaml:"objects"`
}

type sceneUnits struct {
	Length string `yaml:"length"`
	Angle  string `yaml:"angle"`
}

type sceneObject struct {
	Type         string   `yaml:"type"`
	Name         string   `yaml:"name"`
	Material     string   `yaml:"material"`
	Color        []uint8  `yaml:"color"`
	Transparency *float64 `yaml:"transparency"`

	// box
	Origin scenePoint `yaml:"origin"`
	Size   scenePoint `yaml:"size"`

	// cylinder, sphere, circle
	Axis   string     `yaml:"axis"`
	Center scenePoint `yaml:"center"`
	Radius sceneDim   `yaml:"radius"`

	// cylinder and rectangle share height
	Height sceneDim `yaml:"height"`

	// rectangle
	Start scenePoint `yaml:"start"`
	Width sceneDim   `yaml:"width"`

	// rectangle, circle, polyline
	Covered bool `yaml:"covered"`

	// polyline
	Points       []scenePoint       `yaml:"points"`
	Closed       bool               `yaml:"closed"`
	Segments     []sceneSegment     `yaml:"segments"`
	CrossSection *sceneCrossSection `yaml:"cross_section"`
}

type sceneSegment struct {
	Type   string     `yaml:"type"`
	Points int        `yaml:"points"`
	Center scenePoint `yaml:"center"`
	Angle  sceneDim   `yaml:"angle"`
	Plane  string     `yaml:"plane"`
}

type sceneCrossSection struct {
	Type        string   `yaml:"type"`
	Orientation string   `yaml:"orientation"`
	Width       sceneDim `yaml:"width"`
	TopWidth    sceneDim `yaml:"top_width"`
	Height      sceneDim `yaml:"height"`
	NumSegments int      `yaml:"num_segments"`
	BendType    string   `yaml:"bend_type"`
}

func loadScene(path string) (*scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	var sc scene
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}
	if len(sc.Objects) == 0 {
		return nil, fmt.Errorf("scene %s has no objects", path)
	}
	return &sc, nil
}

func runModelBuild(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(args[0])
	if err != nil {
		return err
	}

	var s *session
	var rec *remote.Recorder
	if dumpArgs {
		// Dump mode never touches a real host: build against the
		// simulator and print what would have been sent.
		s, err = openSimSession(nil)
		if err != nil {
			return err
		}
		rec = &remote.Recorder{Next: s.inv}
		s.inv = rec
	} else {
		s, err = openSession(nil)
		if err != nil {
			return err
		}
	}
	defer s.Close()
	ctx := cmd.Context()

	units, err := s.cfg.Units.System()
	if err != nil {
		return err
	}
	if sc.Units.Length != "" {
		units.Length = sc.Units.Length
	}
	if sc.Units.Angle != "" {
		units.Angle = sc.Units.Angle
	}
	if err := units.Validate(); err != nil {
		return fmt.Errorf("scene units: %w", err)
	}

	m, err := modeler.New(s.inv, units, s.logger)
	if err != nil {
		return err
	}

	objs := make([]*modeler.Object3D, 0, len(sc.Objects))
	for i, so := range sc.Objects {
		obj, err := buildObject(ctx, m, units, so)
		if err != nil {
			return fmt.Errorf("object %d (%s): %w", i, so.Type, err)
		}
		objs = append(objs, obj)
	}

	if dumpArgs {
		return dumpCalls(cmd, rec.Calls())
	}
	return printBuildSummary(cmd, ctx, objs)
}

func buildObject(ctx context.Context, m *modeler.Modeler, units quantity.System, so sceneObject) (*modeler.Object3D, error) {
	var attrs []modeler.Attribute
	if so.Name != "" {
		attrs = append(attrs, modeler.WithName(so.Name))
	}
	if so.Material != "" {
		attrs = append(attrs, modeler.WithMaterial(so.Material))
	}
	if len(so.Color) > 0 {
		if len(so.Color) != 3 {
			return nil, fmt.Errorf("color wants [r, g, b], got %d entries", len(so.Color))
		}
		attrs = append(attrs, modeler.WithColor(so.Color[0], so.Color[1], so.Color[2]))
	}
	if so.Transparency != nil {
		attrs = append(attrs, modeler.WithTransparency(*so.Transparency))
	}

	length := units.Length
	switch strings.ToLower(so.Type) {
	case "box":
		return m.CreateBox(ctx, so.Origin.resolve(length), so.Size.resolve(length), attrs...)
	case "cylinder":
		return m.CreateCylinder(ctx, sceneAxis(so.Axis), so.Center.resolve(length), so.Radius.resolve(length), so.Height.resolve(length), attrs...)
	case "sphere":
		return m.CreateSphere(ctx, so.Center.resolve(length), so.Radius.resolve(length), attrs...)
	case "rectangle":
		return m.CreateRectangle(ctx, sceneAxis(so.Axis), so.Start.resolve(length), so.Width.resolve(length), so.Height.resolve(length), so.Covered, attrs...)
	case "circle":
		return m.CreateCircle(ctx, sceneAxis(so.Axis), so.Center.resolve(length), so.Radius.resolve(length), so.Covered, attrs...)
	case "polyline":
		return buildPolyline(ctx, m, units, so, attrs)
	case "":
		return nil, fmt.Errorf("missing object type")
	}
	return nil, fmt.Errorf("unknown object type %q", so.Type)
}

// sceneAxis defaults a missing axis to Z, matching the host editor.
func sceneAxis(s string) modeler.Axis {
	if s == "" {
		return modeler.AxisZ
	}
	return modeler.Axis(strings.ToUpper(s))
}

func buildPolyline(ctx context.Context, m *modeler.Modeler, units quantity.System, so sceneObject, attrs []modeler.Attribute) (*modeler.Object3D, error) {
	points := make([][3]quantity.Quantity, len(so.Points))
	for i, p := range so.Points {
		points[i] = p.resolve(units.Length)
	}
	opts := []modeler.PolylineOption{modeler.WithAttributes(attrs...)}
	if so.Covered {
		opts = append(opts, modeler.Covered())
	} else if so.Closed {
		opts = append(opts, modeler.Closed())
	}
	if len(so.Segments) > 0 {
		segs := make([]modeler.Segment, len(so.Segments))
		for i, ss := range so.Segments {
			seg, err := sceneSegmentOf(ss, units)
			if err != nil {
				return nil, fmt.Errorf("segment %d: %w", i, err)
			}
			segs[i] = seg
		}
		opts = append(opts, modeler.WithSegments(segs...))
	}
	if so.CrossSection != nil {
		cs := so.CrossSection
		opts = append(opts, modeler.WithCrossSection(modeler.CrossSection{
			Type:        cs.Type,
			Orientation: cs.Orientation,
			Width:       cs.Width.resolve(units.Length),
			TopWidth:    cs.TopWidth.resolve(units.Length),
			Height:      cs.Height.resolve(units.Length),
			NumSegments: cs.NumSegments,
			BendType:    cs.BendType,
		}))
	}
	pl, err := m.CreatePolyline(ctx, points, opts...)
	if err != nil {
		return nil, err
	}
	return pl.Object3D, nil
}

func sceneSegmentOf(ss sceneSegment, units quantity.System) (modeler.Segment, error) {
	switch strings.ToLower(ss.Type) {
	case "line", "":
		return modeler.LineSegment(), nil
	case "arc":
		return modeler.ArcSegment(), nil
	case "spline":
		return modeler.SplineSegment(ss.Points), nil
	case "angular_arc", "angulararc":
		plane, err := geometry.ParsePlane(ss.Plane)
		if err != nil {
			return modeler.Segment{}, err
		}
		return modeler.AngularArcSegment(ss.Center.resolve(units.Length), ss.Angle.resolve(units.Angle), plane), nil
	}
	return modeler.Segment{}, fmt.Errorf("unknown segment type %q", ss.Type)
}

func dumpCalls(cmd *cobra.Command, calls []remote.Call) error {
	for _, call := range calls {
		// Id lookups are mirror bookkeeping, not part of the scene.
		if strings.HasPrefix(call.Method, "Get") {
			continue
		}
		payload, err := variant.EncodeString(call.Args)
		if err != nil {
			return fmt.Errorf("encode %s.%s payload: %w", call.Target, call.Method, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s.%s %s\n", call.Target, call.Method, payload)
	}
	return nil
}

// printBuildSummary fetches each object's topology concurrently and
// renders one summary row per object.
func printBuildSummary(cmd *cobra.Command, ctx context.Context, objs []*modeler.Object3D) error {
	rows := make([]table.Row, len(objs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, obj := range objs {
		g.Go(func() error {
			faces, err := obj.Faces(gctx)
			if err != nil {
				return fmt.Errorf("faces of %s: %w", obj.Name(), err)
			}
			edges, err := obj.Edges(gctx)
			if err != nil {
				return fmt.Errorf("edges of %s: %w", obj.Name(), err)
			}
			verts, err := obj.Vertices(gctx)
			if err != nil {
				return fmt.Errorf("vertices of %s: %w", obj.Name(), err)
			}
			rows[i] = table.Row{obj.Name(), obj.Kind(), obj.ID(), len(faces), len(edges), len(verts)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{"Name", "Kind", "ID", "Faces", "Edges", "Vertices"})
	tw.AppendRows(rows)
	tw.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "%d object(s) created\n", len(objs))
	return nil
}
