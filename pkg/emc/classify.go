package emc

import (
	"context"
	"math"
)

// Severity is the matrix cell color.
type Severity string

const (
	SeverityRed    Severity = "red"
	SeverityOrange Severity = "orange"
	SeverityYellow Severity = "yellow"
	SeverityGreen  Severity = "green"
	SeverityWhite  Severity = "white"
)

// Cell labels.
const (
	LabelNA              = "N/A"
	LabelNone            = "no interference"
	LabelFundamental     = "fundamental"
	LabelHarmonic        = "harmonic/spurious"
	LabelDamage          = "damage"
	LabelOverload        = "overload"
	LabelIntermodulation = "intermodulation"
	LabelDesensitization = "desensitization"
)

// InterferenceThresholds holds the power cutoffs for the interference type
// classification, in dBm.
type InterferenceThresholds struct {
	Fundamental float64
	Harmonic    float64
}

// DefaultInterferenceThresholds returns the standard -15/-30 dBm cutoffs.
func DefaultInterferenceThresholds() InterferenceThresholds {
	return InterferenceThresholds{Fundamental: -15, Harmonic: -30}
}

// ProtectionLevels holds the receiver protection cutoffs in dBm.
type ProtectionLevels struct {
	Damage          float64
	Overload        float64
	Intermodulation float64
	Desensitization float64
}

// DefaultProtectionLevels returns the standard +30/-4/-30/-104 dBm levels.
func DefaultProtectionLevels() ProtectionLevels {
	return ProtectionLevels{Damage: 30, Overload: -4, Intermodulation: -30, Desensitization: -104}
}

// Options narrows a classification run.
type Options struct {
	// Radios restricts both axes to the listed radios. Empty keeps all.
	Radios []string
	// Interferers selects the interferer axis; defaults to Transmitters.
	Interferers InterfererKind
	// Kind is the metric label carried on the matrix; defaults to EMI.
	Kind ResultKind
	// Levels overrides protection levels per receiver. Keys are either a
	// radio name or "radio/band"; the more specific key wins.
	Levels map[string]ProtectionLevels
}

func (o Options) kind() ResultKind {
	if o.Kind == "" {
		return KindEMI
	}
	return o.Kind
}

func (o Options) interferers() InterfererKind {
	if o.Interferers == "" {
		return Transmitters
	}
	return o.Interferers
}

func (o Options) levelsFor(def ProtectionLevels, rxRadio, rxBand string) ProtectionLevels {
	if o.Levels == nil {
		return def
	}
	if lv, ok := o.Levels[rxRadio+"/"+rxBand]; ok {
		return lv
	}
	if lv, ok := o.Levels[rxRadio]; ok {
		return lv
	}
	return def
}

// Cell is one Tx-to-Rx entry of a classification matrix. Power is the
// worst-case level in dBm and only meaningful when Valid; the diagonal and
// pairs with no valid result stay invalid.
type Cell struct {
	TxRadio  string
	RxRadio  string
	Label    string
	Severity Severity
	Power    float64
	InBand   bool
	Valid    bool
}

// Matrix is a classification result, rows indexed by transmitter and
// columns by receiver.
type Matrix struct {
	Kind     ResultKind
	TxRadios []string
	RxRadios []string
	Cells    [][]Cell
}

// Cell returns the entry for the given radio pair.
func (m *Matrix) Cell(tx, rx string) (Cell, bool) {
	for i, t := range m.TxRadios {
		if t != tx {
			continue
		}
		for j, r := range m.RxRadios {
			if r == rx {
				return m.Cells[i][j], true
			}
		}
	}
	return Cell{}, false
}

type axes struct {
	tx      []string
	rx      []string
	txBands map[string][]string
	rxBands map[string][]string
}

func buildAxes(ctx context.Context, rev *Revision, opts Options) (axes, error) {
	rxNames, err := rev.ReceiverNames(ctx)
	if err != nil {
		return axes{}, err
	}
	txNames, err := rev.InterfererNames(ctx, opts.interferers())
	if err != nil {
		return axes{}, err
	}
	a := axes{
		txBands: make(map[string][]string),
		rxBands: make(map[string][]string),
	}
	for _, tx := range filterNames(txNames, opts.Radios) {
		bands, err := rev.BandNames(ctx, tx, ModeTx)
		if err != nil {
			return axes{}, err
		}
		if len(bands) == 0 {
			rev.res.logger.Warn("skipping interferer with no transmit bands", "radio", tx)
			continue
		}
		a.tx = append(a.tx, tx)
		a.txBands[tx] = bands
	}
	for _, rx := range filterNames(rxNames, opts.Radios) {
		bands, err := rev.BandNames(ctx, rx, ModeRx)
		if err != nil {
			return axes{}, err
		}
		if len(bands) == 0 {
			rev.res.logger.Warn("skipping receiver with no receive bands", "radio", rx)
			continue
		}
		a.rx = append(a.rx, rx)
		a.rxBands[rx] = bands
	}
	return a, nil
}

func filterNames(names, allow []string) []string {
	if len(allow) == 0 {
		return names
	}
	set := make(map[string]bool, len(allow))
	for _, a := range allow {
		set[a] = true
	}
	out := names[:0:0]
	for _, n := range names {
		if set[n] {
			out = append(out, n)
		}
	}
	return out
}

// ClassifyInterference builds the interference type matrix: for every
// transmitter/receiver pair the worst-case power over all band pairs is
// bucketed against thr, colored by whether the worst pair's active transmit
// frequencies land inside the receive band span.
func ClassifyInterference(ctx context.Context, rev *Revision, thr InterferenceThresholds, opts Options) (*Matrix, error) {
	a, err := buildAxes(ctx, rev, opts)
	if err != nil {
		return nil, err
	}
	m := &Matrix{Kind: opts.kind(), TxRadios: a.tx, RxRadios: a.rx}
	m.Cells = make([][]Cell, len(a.tx))
	for i, tx := range a.tx {
		m.Cells[i] = make([]Cell, len(a.rx))
		for j, rx := range a.rx {
			if tx == rx {
				m.Cells[i][j] = Cell{TxRadio: tx, RxRadio: rx, Label: LabelNA, Severity: SeverityWhite}
				continue
			}
			cell, err := interferenceCell(ctx, rev, thr, tx, a.txBands[tx], rx, a.rxBands[rx])
			if err != nil {
				return nil, err
			}
			m.Cells[i][j] = cell
		}
	}
	return m, nil
}

func interferenceCell(ctx context.Context, rev *Revision, thr InterferenceThresholds, tx string, txBands []string, rx string, rxBands []string) (Cell, error) {
	cell := Cell{TxRadio: tx, RxRadio: rx, Label: LabelNone, Severity: SeverityWhite}
	best := math.Inf(-1)
	bestInBand := false
	seen := false
	for _, tb := range txBands {
		txFreqs, err := rev.ActiveFrequencies(ctx, tx, tb, ModeTx)
		if err != nil {
			return Cell{}, err
		}
		for _, rb := range rxBands {
			inst, err := rev.Run(ctx, Domain{RxRadio: rx, RxBand: rb, TxRadio: tx, TxBand: tb})
			if err != nil {
				return Cell{}, err
			}
			if !inst.Valid {
				continue
			}
			lo, hi, err := rev.BandSpan(ctx, rx, rb)
			if err != nil {
				return Cell{}, err
			}
			inBand := false
			for _, f := range txFreqs {
				if f >= lo && f <= hi {
					inBand = true
					break
				}
			}
			if !seen || inst.Power > best {
				best, bestInBand, seen = inst.Power, inBand, true
			}
		}
	}
	if !seen {
		return cell, nil
	}
	cell.Valid, cell.Power, cell.InBand = true, best, bestInBand
	switch {
	case best >= thr.Fundamental && bestInBand:
		cell.Label, cell.Severity = LabelFundamental, SeverityRed
	case best >= thr.Fundamental:
		cell.Label, cell.Severity = LabelFundamental, SeverityYellow
	case best >= thr.Harmonic && bestInBand:
		cell.Label, cell.Severity = LabelHarmonic, SeverityOrange
	case best >= thr.Harmonic:
		cell.Label, cell.Severity = LabelHarmonic, SeverityGreen
	default:
		cell.Label, cell.Severity = LabelNone, SeverityWhite
	}
	return cell, nil
}

// ClassifyProtection builds the receiver protection matrix: every valid
// band pair is bucketed against the receiver's protection levels and the
// most severe outcome wins the cell.
func ClassifyProtection(ctx context.Context, rev *Revision, levels ProtectionLevels, opts Options) (*Matrix, error) {
	a, err := buildAxes(ctx, rev, opts)
	if err != nil {
		return nil, err
	}
	m := &Matrix{Kind: opts.kind(), TxRadios: a.tx, RxRadios: a.rx}
	m.Cells = make([][]Cell, len(a.tx))
	for i, tx := range a.tx {
		m.Cells[i] = make([]Cell, len(a.rx))
		for j, rx := range a.rx {
			if tx == rx {
				m.Cells[i][j] = Cell{TxRadio: tx, RxRadio: rx, Label: LabelNA, Severity: SeverityWhite}
				continue
			}
			cell, err := protectionCell(ctx, rev, levels, opts, tx, a.txBands[tx], rx, a.rxBands[rx])
			if err != nil {
				return nil, err
			}
			m.Cells[i][j] = cell
		}
	}
	return m, nil
}

var severityRank = map[Severity]int{
	SeverityWhite:  0,
	SeverityGreen:  1,
	SeverityYellow: 2,
	SeverityOrange: 3,
	SeverityRed:    4,
}

func protectionCell(ctx context.Context, rev *Revision, def ProtectionLevels, opts Options, tx string, txBands []string, rx string, rxBands []string) (Cell, error) {
	cell := Cell{TxRadio: tx, RxRadio: rx, Label: LabelNone, Severity: SeverityWhite}
	bestRank := -1
	bestPower := math.Inf(-1)
	for _, tb := range txBands {
		for _, rb := range rxBands {
			inst, err := rev.Run(ctx, Domain{RxRadio: rx, RxBand: rb, TxRadio: tx, TxBand: tb})
			if err != nil {
				return Cell{}, err
			}
			if !inst.Valid {
				continue
			}
			label, sev := protectionBucket(inst.Power, opts.levelsFor(def, rx, rb))
			rank := severityRank[sev]
			if rank > bestRank || (rank == bestRank && inst.Power > bestPower) {
				bestRank, bestPower = rank, inst.Power
				cell.Label, cell.Severity = label, sev
				cell.Power, cell.Valid = inst.Power, true
			}
		}
	}
	return cell, nil
}

func protectionBucket(p float64, lv ProtectionLevels) (string, Severity) {
	switch {
	case p >= lv.Damage:
		return LabelDamage, SeverityRed
	case p >= lv.Overload:
		return LabelOverload, SeverityOrange
	case p >= lv.Intermodulation:
		return LabelIntermodulation, SeverityYellow
	case p >= lv.Desensitization:
		return LabelDesensitization, SeverityGreen
	}
	return LabelNone, SeverityWhite
}
