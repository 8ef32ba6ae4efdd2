package simhost

import (
	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// Scenario is the RF system the interference target answers from. Worst
// case coupled power for a transmit/receive band pair is synthesized as
// transmit power minus CouplingDB, minus SkirtDB when no active transmit
// frequency falls inside the receive band. Entries in Powers override the
// synthesis for a single pair. The yaml tags serve scenario files loaded
// by the CLI.
type Scenario struct {
	Revisions []string `yaml:"revisions"`
	Radios    []Radio  `yaml:"radios"`

	CouplingDB float64 `yaml:"coupling_db"`
	SkirtDB    float64 `yaml:"skirt_db"`

	// Powers is keyed "txRadio/txBand>rxRadio/rxBand", values in dBm.
	Powers map[string]float64 `yaml:"powers"`

	SweepColumns []string    `yaml:"sweep_columns"`
	SweepUnits   []string    `yaml:"sweep_units"`
	SweepRows    [][]float64 `yaml:"sweep_rows"`
}

// Radio is one radio in the scenario.
type Radio struct {
	Name  string `yaml:"name"`
	Bands []Band `yaml:"bands"`
}

// Band is one band of a radio. Span holds the band edges in Hz and
// Frequencies the active channel frequencies, also in Hz. PowerDBm only
// matters for transmit capable bands.
type Band struct {
	Name        string     `yaml:"name"`
	Tx          bool       `yaml:"tx"`
	Rx          bool       `yaml:"rx"`
	PowerDBm    float64    `yaml:"power_dbm"`
	Span        [2]float64 `yaml:"span"`
	Frequencies []float64  `yaml:"frequencies"`
}

// DefaultScenario returns a small three radio system: two co-site data
// links sharing the 2.4 GHz band and a navigation receiver well below
// them.
func DefaultScenario() *Scenario {
	return &Scenario{
		Revisions:  []string{"Revision 1"},
		CouplingDB: 40,
		SkirtDB:    30,
		Radios: []Radio{
			{
				Name: "Link A",
				Bands: []Band{{
					Name:        "Band0",
					Tx:          true,
					Rx:          true,
					PowerDBm:    30,
					Span:        [2]float64{2.40e9, 2.48e9},
					Frequencies: []float64{2.40e9, 2.45e9},
				}},
			},
			{
				Name: "Link B",
				Bands: []Band{{
					Name:        "Band0",
					Tx:          true,
					Rx:          true,
					PowerDBm:    20,
					Span:        [2]float64{2.43e9, 2.45e9},
					Frequencies: []float64{2.44e9},
				}},
			},
			{
				Name: "Nav Rx",
				Bands: []Band{{
					Name:        "L1",
					Rx:          true,
					Span:        [2]float64{1.57e9, 1.58e9},
					Frequencies: []float64{1.57542e9},
				}},
			},
		},
		SweepColumns: []string{"Freq", "EMI"},
		SweepUnits:   []string{"GHz", "dBm"},
		SweepRows:    [][]float64{{2.40, -10}, {2.44, -20}, {2.45, -10}},
	}
}

func (s *Scenario) radio(name string) *Radio {
	for i := range s.Radios {
		if s.Radios[i].Name == name {
			return &s.Radios[i]
		}
	}
	return nil
}

func (r *Radio) band(name string) *Band {
	for i := range r.Bands {
		if r.Bands[i].Name == name {
			return &r.Bands[i]
		}
	}
	return nil
}

func (b *Band) supports(mode string) bool {
	switch mode {
	case "tx":
		return b.Tx
	case "rx":
		return b.Rx
	case "both":
		return b.Tx && b.Rx
	}
	return false
}

// worstPower synthesizes the worst case power coupled from the transmit
// band into the receive band. ok is false for pairs that produce no
// result, such as a transmit band with no active frequencies.
func (s *Scenario) worstPower(txBand, rxBand *Band, key string) (power float64, ok bool) {
	if !txBand.Tx || !rxBand.Rx || len(txBand.Frequencies) == 0 {
		return 0, false
	}
	if p, found := s.Powers[key]; found {
		return p, true
	}
	power = txBand.PowerDBm - s.CouplingDB
	inBand := false
	for _, f := range txBand.Frequencies {
		if f >= rxBand.Span[0] && f <= rxBand.Span[1] {
			inBand = true
			break
		}
	}
	if !inBand {
		power -= s.SkirtDB
	}
	return power, true
}

func pairKey(txRadio, txBand, rxRadio, rxBand string) string {
	return txRadio + "/" + txBand + ">" + rxRadio + "/" + rxBand
}

func (h *Host) interferenceCall(method string, args *variant.Value) (*variant.Value, error) {
	s := h.scenario
	switch method {
	case "ListRevisions":
		out := variant.List()
		for _, name := range s.Revisions {
			out.Append(variant.Str(name))
		}
		return out, nil
	case "GetCurrentRevision":
		return variant.List(variant.Str(h.currentRev)), nil
	case "LoadRevision":
		name, ok := stringArg(args, 0)
		if !ok {
			return nil, callErr(remote.TargetInterference, method, "bad-args", "want (revision)")
		}
		for _, rev := range s.Revisions {
			if rev == name {
				h.currentRev = name
				return variant.List(), nil
			}
		}
		return nil, callErr(remote.TargetInterference, method, "not-found", "no revision named %q", name)
	case "GetReceiverNames":
		return radioNames(s, func(b Band) bool { return b.Rx }), nil
	case "GetInterfererNames":
		return radioNames(s, func(b Band) bool { return b.Tx }), nil
	case "GetBandNames":
		radioName, ok1 := stringArg(args, 0)
		mode, ok2 := stringArg(args, 1)
		if !ok1 || !ok2 {
			return nil, callErr(remote.TargetInterference, method, "bad-args", "want (radio, mode)")
		}
		if mode != "tx" && mode != "rx" && mode != "both" {
			return nil, callErr(remote.TargetInterference, method, "bad-args", "bad mode %q", mode)
		}
		r := s.radio(radioName)
		if r == nil {
			return nil, callErr(remote.TargetInterference, method, "not-found", "no radio named %q", radioName)
		}
		out := variant.List()
		for _, b := range r.Bands {
			if b.supports(mode) {
				out.Append(variant.Str(b.Name))
			}
		}
		return out, nil
	case "GetActiveFrequencies":
		radioName, ok1 := stringArg(args, 0)
		bandName, ok2 := stringArg(args, 1)
		mode, ok3 := stringArg(args, 2)
		if !ok1 || !ok2 || !ok3 {
			return nil, callErr(remote.TargetInterference, method, "bad-args", "want (radio, band, mode)")
		}
		if mode != "tx" && mode != "rx" && mode != "both" {
			return nil, callErr(remote.TargetInterference, method, "bad-args", "bad mode %q", mode)
		}
		r := s.radio(radioName)
		if r == nil {
			return nil, callErr(remote.TargetInterference, method, "not-found", "no radio named %q", radioName)
		}
		b := r.band(bandName)
		if b == nil {
			return nil, callErr(remote.TargetInterference, method, "not-found", "radio %q has no band %q", radioName, bandName)
		}
		if !b.supports(mode) {
			return nil, callErr(remote.TargetInterference, method, "bad-args", "band %q does not support mode %q", bandName, mode)
		}
		out := variant.List()
		for _, f := range b.Frequencies {
			out.Append(variant.Num(f))
		}
		return out, nil
	case "GetBandSpan":
		radioName, ok1 := stringArg(args, 0)
		bandName, ok2 := stringArg(args, 1)
		if !ok1 || !ok2 {
			return nil, callErr(remote.TargetInterference, method, "bad-args", "want (radio, band)")
		}
		r := s.radio(radioName)
		if r == nil {
			return nil, callErr(remote.TargetInterference, method, "not-found", "no radio named %q", radioName)
		}
		b := r.band(bandName)
		if b == nil {
			return nil, callErr(remote.TargetInterference, method, "not-found", "radio %q has no band %q", radioName, bandName)
		}
		return variant.List(variant.Num(b.Span[0]), variant.Num(b.Span[1])), nil
	case "Run":
		rxRadio, ok1 := stringArg(args, 0)
		rxBand, ok2 := stringArg(args, 1)
		txRadio, ok3 := stringArg(args, 2)
		txBand, ok4 := stringArg(args, 3)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, callErr(remote.TargetInterference, method, "bad-args", "want (rxRadio, rxBand, txRadio, txBand)")
		}
		rr := s.radio(rxRadio)
		tr := s.radio(txRadio)
		if rr == nil || tr == nil {
			return nil, callErr(remote.TargetInterference, method, "not-found", "unknown radio in domain")
		}
		rb := rr.band(rxBand)
		tb := tr.band(txBand)
		if rb == nil || tb == nil {
			return nil, callErr(remote.TargetInterference, method, "not-found", "unknown band in domain")
		}
		power, ok := s.worstPower(tb, rb, pairKey(txRadio, txBand, rxRadio, rxBand))
		return variant.List(variant.Boolean(ok), variant.Num(power)), nil
	}
	return nil, unknownMethod(remote.TargetInterference, method)
}

func radioNames(s *Scenario, want func(Band) bool) *variant.Value {
	out := variant.List()
	for _, r := range s.Radios {
		for _, b := range r.Bands {
			if want(b) {
				out.Append(variant.Str(r.Name))
				break
			}
		}
	}
	return out
}

func (h *Host) reportCall(method string, args *variant.Value) (*variant.Value, error) {
	switch method {
	case "CreateReport":
		name, ok := stringArg(args, 0)
		if !ok || name == "" {
			return nil, callErr(remote.TargetReport, method, "bad-args", "missing report name")
		}
		if args.Len() < 3 {
			return nil, callErr(remote.TargetReport, method, "bad-args", "want (name, category, displayType, ...)")
		}
		for _, rec := range h.reports {
			if rec.Name == name {
				return nil, callErr(remote.TargetReport, method, "bad-args", "report %q already exists", name)
			}
		}
		h.reports = append(h.reports, ReportRecord{Name: name, Args: args.Clone()})
		return variant.List(variant.Str(name)), nil
	case "GetSolutionData":
		exprs := args.Item(0)
		if exprs.Kind() != variant.KindList || exprs.Len() == 0 {
			return nil, callErr(remote.TargetReport, method, "bad-args", "want a non-empty expression list")
		}
		for _, e := range exprs.Items() {
			if _, ok := e.AsString(); !ok {
				return nil, callErr(remote.TargetReport, method, "bad-args", "expressions must be strings")
			}
		}
		s := h.scenario
		cols := variant.NewBlock("Columns")
		for _, c := range s.SweepColumns {
			cols.Str(c)
		}
		units := variant.NewBlock("Units")
		for _, u := range s.SweepUnits {
			units.Str(u)
		}
		out := variant.List(cols.Value(), units.Value())
		for _, row := range s.SweepRows {
			r := variant.List()
			for _, cell := range row {
				r.Append(variant.Num(cell))
			}
			out.Append(r)
		}
		return out, nil
	case "DeleteReports":
		names := args.Item(0)
		if names.Kind() != variant.KindList || names.Len() == 0 {
			return nil, callErr(remote.TargetReport, method, "bad-args", "want a list of report names")
		}
		keep := h.reports
		for _, item := range names.Items() {
			name, ok := item.AsString()
			if !ok {
				return nil, callErr(remote.TargetReport, method, "bad-args", "report names must be strings")
			}
			found := false
			next := keep[:0:0]
			for _, rec := range keep {
				if rec.Name == name {
					found = true
					continue
				}
				next = append(next, rec)
			}
			if !found {
				return nil, callErr(remote.TargetReport, method, "not-found", "no report named %q", name)
			}
			keep = next
		}
		h.reports = keep
		return variant.List(), nil
	}
	return nil, unknownMethod(remote.TargetReport, method)
}
