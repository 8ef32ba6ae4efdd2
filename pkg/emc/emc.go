// Package emc wraps the host's interference engine: revision catalogs,
// worst-case power queries, and the local classification of results into
// the standard severity matrices.
package emc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// TxRxMode selects which side of a link a query concerns.
type TxRxMode string

const (
	ModeTx   TxRxMode = "tx"
	ModeRx   TxRxMode = "rx"
	ModeBoth TxRxMode = "both"
)

// ResultKind names the metric a classification is built from.
type ResultKind string

const (
	KindEMI         ResultKind = "EMI"
	KindDesense     ResultKind = "Desense"
	KindSensitivity ResultKind = "Sensitivity"
	KindPowerAtRx   ResultKind = "PowerAtRx"
)

// InterfererKind filters the interferer axis.
type InterfererKind string

const (
	Transmitters            InterfererKind = "transmitters"
	Emitters                InterfererKind = "emitters"
	TransmittersAndEmitters InterfererKind = "both"
)

// Domain selects one receive band and one transmit band.
type Domain struct {
	RxRadio string
	RxBand  string
	TxRadio string
	TxBand  string
}

// Instance is the engine's answer for one domain. Power is the worst-case
// received level in dBm and only meaningful when Valid.
type Instance struct {
	Valid bool
	Power float64
}

// Results gives access to the interference engine of a host session.
type Results struct {
	inv    remote.Invoker
	logger *slog.Logger
}

// NewResults returns a Results bound to the given invoker. A nil logger
// discards.
func NewResults(inv remote.Invoker, logger *slog.Logger) (*Results, error) {
	if inv == nil {
		return nil, errors.New("emc: nil invoker")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Results{inv: inv, logger: logger}, nil
}

// Revisions lists the result revisions the host knows.
func (r *Results) Revisions(ctx context.Context) ([]string, error) {
	res, err := r.inv.Invoke(ctx, remote.TargetInterference, "ListRevisions", variant.List())
	if err != nil {
		return nil, fmt.Errorf("emc: list revisions: %w", err)
	}
	return stringList(res, "revision name")
}

// Current returns a handle on the revision the host currently serves.
func (r *Results) Current(ctx context.Context) (*Revision, error) {
	res, err := r.inv.Invoke(ctx, remote.TargetInterference, "GetCurrentRevision", variant.List())
	if err != nil {
		return nil, fmt.Errorf("emc: current revision: %w", err)
	}
	name, ok := res.Item(0).AsString()
	if !ok || name == "" {
		return nil, errors.New("emc: current revision: bad reply")
	}
	return &Revision{res: r, name: name}, nil
}

// Revision loads the named revision on the host and returns its handle.
func (r *Results) Revision(ctx context.Context, name string) (*Revision, error) {
	if _, err := r.inv.Invoke(ctx, remote.TargetInterference, "LoadRevision", variant.List(variant.Str(name))); err != nil {
		return nil, fmt.Errorf("emc: load revision %q: %w", name, err)
	}
	return &Revision{res: r, name: name}, nil
}

// Revision is one loaded result set.
type Revision struct {
	res  *Results
	name string
}

// Name returns the revision name.
func (rev *Revision) Name() string {
	return rev.name
}

// ReceiverNames lists the radios with at least one receive band.
func (rev *Revision) ReceiverNames(ctx context.Context) ([]string, error) {
	res, err := rev.res.inv.Invoke(ctx, remote.TargetInterference, "GetReceiverNames", variant.List())
	if err != nil {
		return nil, fmt.Errorf("emc: receiver names: %w", err)
	}
	return stringList(res, "receiver name")
}

// InterfererNames lists the radios that can interfere. The scenario model
// carries transmitters only, so asking for emitters alone yields nothing.
func (rev *Revision) InterfererNames(ctx context.Context, kind InterfererKind) ([]string, error) {
	if kind == Emitters {
		return nil, nil
	}
	res, err := rev.res.inv.Invoke(ctx, remote.TargetInterference, "GetInterfererNames", variant.List())
	if err != nil {
		return nil, fmt.Errorf("emc: interferer names: %w", err)
	}
	return stringList(res, "interferer name")
}

// BandNames lists the radio's bands that support the given mode.
func (rev *Revision) BandNames(ctx context.Context, radio string, mode TxRxMode) ([]string, error) {
	args := variant.List(variant.Str(radio), variant.Str(string(mode)))
	res, err := rev.res.inv.Invoke(ctx, remote.TargetInterference, "GetBandNames", args)
	if err != nil {
		return nil, fmt.Errorf("emc: bands of %s: %w", radio, err)
	}
	return stringList(res, "band name")
}

// ActiveFrequencies lists the band's active frequencies in Hz.
func (rev *Revision) ActiveFrequencies(ctx context.Context, radio, band string, mode TxRxMode) ([]float64, error) {
	args := variant.List(variant.Str(radio), variant.Str(band), variant.Str(string(mode)))
	res, err := rev.res.inv.Invoke(ctx, remote.TargetInterference, "GetActiveFrequencies", args)
	if err != nil {
		return nil, fmt.Errorf("emc: frequencies of %s/%s: %w", radio, band, err)
	}
	out := make([]float64, 0, res.Len())
	for _, item := range res.Items() {
		f, ok := item.AsFloat()
		if !ok {
			return nil, fmt.Errorf("emc: frequencies of %s/%s: non-numeric entry", radio, band)
		}
		out = append(out, f)
	}
	return out, nil
}

// BandSpan returns the band's start and stop frequencies in Hz.
func (rev *Revision) BandSpan(ctx context.Context, radio, band string) (lo, hi float64, err error) {
	args := variant.List(variant.Str(radio), variant.Str(band))
	res, err := rev.res.inv.Invoke(ctx, remote.TargetInterference, "GetBandSpan", args)
	if err != nil {
		return 0, 0, fmt.Errorf("emc: span of %s/%s: %w", radio, band, err)
	}
	l, ok1 := res.Item(0).AsFloat()
	h, ok2 := res.Item(1).AsFloat()
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("emc: span of %s/%s: bad reply", radio, band)
	}
	return l, h, nil
}

// Run asks the engine for the worst-case power of one domain.
func (rev *Revision) Run(ctx context.Context, d Domain) (Instance, error) {
	args := variant.List(
		variant.Str(d.RxRadio), variant.Str(d.RxBand),
		variant.Str(d.TxRadio), variant.Str(d.TxBand),
	)
	res, err := rev.res.inv.Invoke(ctx, remote.TargetInterference, "Run", args)
	if err != nil {
		return Instance{}, fmt.Errorf("emc: run %s/%s -> %s/%s: %w", d.TxRadio, d.TxBand, d.RxRadio, d.RxBand, err)
	}
	valid, ok1 := res.Item(0).AsBool()
	power, ok2 := res.Item(1).AsFloat()
	if !ok1 || !ok2 {
		return Instance{}, errors.New("emc: run: bad reply")
	}
	return Instance{Valid: valid, Power: power}, nil
}

func stringList(res *variant.Value, what string) ([]string, error) {
	out := make([]string, 0, res.Len())
	for _, item := range res.Items() {
		s, ok := item.AsString()
		if !ok {
			return nil, fmt.Errorf("emc: non-string %s in reply", what)
		}
		out = append(out, s)
	}
	return out, nil
}
