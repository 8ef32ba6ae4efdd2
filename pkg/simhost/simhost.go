// Package simhost emulates the automation host in memory. It implements
// remote.Invoker, so client code can run against it without a desktop
// session: object creation keeps real coordinates, face and vertex ids are
// allocated deterministically, and the interference side answers from a
// configurable Scenario.
package simhost

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/quantity"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// Version is the host version reported by desktop.GetVersion.
const Version = "2026.1"

// Host is an in-memory automation host. All state lives behind one mutex;
// a Host is safe for concurrent Invoke calls.
type Host struct {
	mu sync.Mutex

	logger *slog.Logger

	project string
	design  string
	saved   bool

	nextID  int
	objects map[int]*simObject
	names   map[string]int

	facePos   map[int][3]float64
	vertPos   map[int][3]float64
	edgeVerts map[int][]int

	systems    map[string]*variant.Value
	workingCS  string
	scenario   *Scenario
	currentRev string
	reports    []ReportRecord
}

// ReportRecord is a report definition the host has accepted.
type ReportRecord struct {
	Name string
	Args *variant.Value
}

// New returns a Host backed by the given scenario. A nil scenario selects
// DefaultScenario; a nil logger discards.
func New(scenario *Scenario, logger *slog.Logger) *Host {
	if scenario == nil {
		scenario = DefaultScenario()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Host{
		logger:    logger,
		objects:   make(map[int]*simObject),
		names:     make(map[string]int),
		facePos:   make(map[int][3]float64),
		vertPos:   make(map[int][3]float64),
		edgeVerts: make(map[int][]int),
		systems:   make(map[string]*variant.Value),
		workingCS: "Global",
		scenario:  scenario,
	}
	if n := len(scenario.Revisions); n > 0 {
		h.currentRev = scenario.Revisions[n-1]
	}
	return h
}

// Invoke dispatches a call to the named target. Unknown targets and methods
// come back as *remote.CallError so clients can tell them from transport
// failures.
func (h *Host) Invoke(ctx context.Context, target, method string, args *variant.Value) (*variant.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Debug("invoke", "target", target, "method", method, "args", args.Len())
	switch target {
	case remote.TargetDesktop:
		return h.desktopCall(method, args)
	case remote.TargetProject:
		return h.projectCall(method, args)
	case remote.TargetEditor:
		return h.editorCall(method, args)
	case remote.TargetInterference:
		return h.interferenceCall(method, args)
	case remote.TargetReport:
		return h.reportCall(method, args)
	}
	return nil, callErr(target, method, "unknown-target", "no such target")
}

// Reports returns a copy of the report definitions accepted so far.
func (h *Host) Reports() []ReportRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ReportRecord, len(h.reports))
	copy(out, h.reports)
	return out
}

// ObjectCount reports how many objects the editor currently holds.
func (h *Host) ObjectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}

func (h *Host) desktopCall(method string, args *variant.Value) (*variant.Value, error) {
	switch method {
	case "GetVersion":
		return variant.List(variant.Str(Version)), nil
	case "GetSessionInfo":
		return variant.NewBlock("Session").
			PairString("Version", Version).
			PairString("Project", h.project).
			PairString("Design", h.design).
			Value(), nil
	}
	return nil, unknownMethod(remote.TargetDesktop, method)
}

func (h *Host) projectCall(method string, args *variant.Value) (*variant.Value, error) {
	switch method {
	case "NewProject":
		name, ok := stringArg(args, 0)
		if !ok || name == "" {
			return nil, callErr(remote.TargetProject, method, "bad-args", "want (name)")
		}
		h.project = name
		h.design = ""
		h.saved = false
		h.clearEditor()
		return variant.List(variant.Str(name)), nil
	case "InsertDesign":
		kind, ok1 := stringArg(args, 0)
		name, ok2 := stringArg(args, 1)
		if !ok1 || !ok2 || kind == "" || name == "" {
			return nil, callErr(remote.TargetProject, method, "bad-args", "want (designType, name)")
		}
		if h.project == "" {
			return nil, callErr(remote.TargetProject, method, "bad-args", "no open project")
		}
		h.design = name
		return variant.List(variant.Str(name)), nil
	case "SaveProject":
		if h.project == "" {
			return nil, callErr(remote.TargetProject, method, "bad-args", "no open project")
		}
		h.saved = true
		return variant.List(), nil
	}
	return nil, unknownMethod(remote.TargetProject, method)
}

func callErr(target, method, code, format string, a ...any) *remote.CallError {
	return &remote.CallError{
		Target: target,
		Method: method,
		Code:   code,
		Reason: fmt.Sprintf(format, a...),
	}
}

func unknownMethod(target, method string) *remote.CallError {
	return callErr(target, method, "unknown-method", "no such method")
}

// stringArg returns the i-th argument as a string.
func stringArg(args *variant.Value, i int) (string, bool) {
	return args.Item(i).AsString()
}

// intArg returns the i-th argument as an int.
func intArg(args *variant.Value, i int) (int, bool) {
	return args.Item(i).AsInt()
}

// lengthArg converts a coordinate argument to model units (mm). Strings
// carry units and go through the quantity parser; bare numbers are taken
// as millimeters already.
func lengthArg(v *variant.Value) (float64, error) {
	return unitArg(v, "mm")
}

// angleArg converts an angle argument to degrees.
func angleArg(v *variant.Value) (float64, error) {
	return unitArg(v, "deg")
}

func unitArg(v *variant.Value, unit string) (float64, error) {
	switch v.Kind() {
	case variant.KindNumber:
		f, _ := v.AsFloat()
		return f, nil
	case variant.KindString:
		s, _ := v.AsString()
		q, err := quantity.Parse(s)
		if err != nil {
			return 0, err
		}
		if q.Dimension() == quantity.DimensionNone {
			return q.Value, nil
		}
		conv, err := q.In(unit)
		if err != nil {
			return 0, err
		}
		return conv.Value, nil
	}
	return 0, fmt.Errorf("want number or dimensioned string, got %s", v.Kind())
}

func vec3Value(p [3]float64) *variant.Value {
	return variant.List(variant.Num(p[0]), variant.Num(p[1]), variant.Num(p[2]))
}
