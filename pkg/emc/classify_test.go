package emc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceEM/internal/testutil"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/simhost"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

func wantCell(t *testing.T, m *Matrix, tx, rx, label string, sev Severity, power float64) {
	t.Helper()
	c, ok := m.Cell(tx, rx)
	require.True(t, ok, "missing cell %s -> %s", tx, rx)
	assert.Equal(t, label, c.Label, "%s -> %s label", tx, rx)
	assert.Equal(t, sev, c.Severity, "%s -> %s severity", tx, rx)
	require.True(t, c.Valid, "%s -> %s should be valid", tx, rx)
	assert.InDelta(t, power, c.Power, 1e-12, "%s -> %s power", tx, rx)
}

func wantDiagonal(t *testing.T, m *Matrix, radio string) {
	t.Helper()
	c, ok := m.Cell(radio, radio)
	require.True(t, ok)
	assert.Equal(t, LabelNA, c.Label)
	assert.Equal(t, SeverityWhite, c.Severity)
	assert.False(t, c.Valid)
}

func TestClassifyInterferenceDefaultScenario(t *testing.T) {
	ctx := context.Background()
	rev := newTestRevision(t)

	m, err := ClassifyInterference(ctx, rev, DefaultInterferenceThresholds(), Options{})
	require.NoError(t, err)
	assert.Equal(t, KindEMI, m.Kind)
	assert.Equal(t, []string{"Link A", "Link B"}, m.TxRadios)
	assert.Equal(t, []string{"Link A", "Link B", "Nav Rx"}, m.RxRadios)
	require.Len(t, m.Cells, 2)
	require.Len(t, m.Cells[0], 3)

	wantDiagonal(t, m, "Link A")
	wantDiagonal(t, m, "Link B")

	// Link A lands a channel inside Link B's band at -10 dBm.
	wantCell(t, m, "Link A", "Link B", LabelFundamental, SeverityRed, -10)
	ab, _ := m.Cell("Link A", "Link B")
	assert.True(t, ab.InBand)

	// Link B into Link A is in band but 10 dB weaker.
	wantCell(t, m, "Link B", "Link A", LabelHarmonic, SeverityOrange, -20)

	// The navigation receiver sits far below both links.
	wantCell(t, m, "Link A", "Nav Rx", LabelNone, SeverityWhite, -40)
	wantCell(t, m, "Link B", "Nav Rx", LabelNone, SeverityWhite, -50)
	an, _ := m.Cell("Link A", "Nav Rx")
	assert.False(t, an.InBand)

	// Nav Rx never transmits, so it has no row.
	_, ok := m.Cell("Nav Rx", "Link A")
	assert.False(t, ok)
}

func TestClassifyInterferenceThresholds(t *testing.T) {
	ctx := context.Background()
	rev := newTestRevision(t)

	// Loosened cutoffs promote the out of band hits.
	thr := InterferenceThresholds{Fundamental: -45, Harmonic: -60}
	m, err := ClassifyInterference(ctx, rev, thr, Options{})
	require.NoError(t, err)

	wantCell(t, m, "Link A", "Nav Rx", LabelFundamental, SeverityYellow, -40)
	wantCell(t, m, "Link B", "Nav Rx", LabelHarmonic, SeverityGreen, -50)
	wantCell(t, m, "Link A", "Link B", LabelFundamental, SeverityRed, -10)
	wantCell(t, m, "Link B", "Link A", LabelFundamental, SeverityRed, -20)
}

func TestClassifyProtectionDefaultScenario(t *testing.T) {
	ctx := context.Background()
	rev := newTestRevision(t)

	m, err := ClassifyProtection(ctx, rev, DefaultProtectionLevels(), Options{Kind: KindPowerAtRx})
	require.NoError(t, err)
	assert.Equal(t, KindPowerAtRx, m.Kind)
	assert.Equal(t, []string{"Link A", "Link B"}, m.TxRadios)
	assert.Equal(t, []string{"Link A", "Link B", "Nav Rx"}, m.RxRadios)

	wantDiagonal(t, m, "Link A")
	wantDiagonal(t, m, "Link B")

	wantCell(t, m, "Link A", "Link B", LabelIntermodulation, SeverityYellow, -10)
	wantCell(t, m, "Link B", "Link A", LabelIntermodulation, SeverityYellow, -20)
	wantCell(t, m, "Link A", "Nav Rx", LabelDesensitization, SeverityGreen, -40)
	wantCell(t, m, "Link B", "Nav Rx", LabelDesensitization, SeverityGreen, -50)
}

func TestClassifyProtectionLevelOverrides(t *testing.T) {
	ctx := context.Background()
	rev := newTestRevision(t)

	// A radio wide override alone reclassifies the -40 dBm hit as damage.
	radioOnly := Options{Levels: map[string]ProtectionLevels{
		"Nav Rx": {Damage: -42, Overload: -60, Intermodulation: -70, Desensitization: -104},
	}}
	m, err := ClassifyProtection(ctx, rev, DefaultProtectionLevels(), radioOnly)
	require.NoError(t, err)
	wantCell(t, m, "Link A", "Nav Rx", LabelDamage, SeverityRed, -40)
	// Other receivers keep the defaults.
	wantCell(t, m, "Link A", "Link B", LabelIntermodulation, SeverityYellow, -10)

	// The band specific key beats the radio wide one.
	both := Options{Levels: map[string]ProtectionLevels{
		"Nav Rx":    {Damage: -42, Overload: -60, Intermodulation: -70, Desensitization: -104},
		"Nav Rx/L1": {Damage: 30, Overload: -4, Intermodulation: -45, Desensitization: -104},
	}}
	m, err = ClassifyProtection(ctx, rev, DefaultProtectionLevels(), both)
	require.NoError(t, err)
	wantCell(t, m, "Link A", "Nav Rx", LabelIntermodulation, SeverityYellow, -40)
	wantCell(t, m, "Link B", "Nav Rx", LabelDesensitization, SeverityGreen, -50)
}

func TestClassifyRadiosFilter(t *testing.T) {
	ctx := context.Background()
	rev := newTestRevision(t)

	opts := Options{Radios: []string{"Link A", "Nav Rx"}}
	m, err := ClassifyInterference(ctx, rev, DefaultInterferenceThresholds(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"Link A"}, m.TxRadios)
	assert.Equal(t, []string{"Link A", "Nav Rx"}, m.RxRadios)

	wantDiagonal(t, m, "Link A")
	wantCell(t, m, "Link A", "Nav Rx", LabelNone, SeverityWhite, -40)
}

func TestClassifySkipsRadioWithoutBands(t *testing.T) {
	ctx := context.Background()
	host := simhost.New(nil, testutil.NewTestLogger(t))
	rec := &remote.Recorder{OnCall: func(target, method string, args *variant.Value) (*variant.Value, error) {
		// Hide the navigation receiver's bands to exercise the axis drop.
		if method == "GetBandNames" {
			if radio, _ := args.Item(0).AsString(); radio == "Nav Rx" {
				return variant.List(), nil
			}
		}
		return host.Invoke(context.Background(), target, method, args)
	}}
	res, err := NewResults(rec, testutil.NewTestLogger(t))
	require.NoError(t, err)
	rev, err := res.Current(ctx)
	require.NoError(t, err)

	m, err := ClassifyInterference(ctx, rev, DefaultInterferenceThresholds(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Link A", "Link B"}, m.TxRadios)
	assert.Equal(t, []string{"Link A", "Link B"}, m.RxRadios)
}

func TestClassifyNoValidPairs(t *testing.T) {
	ctx := context.Background()
	// The transmit band advertises no active channels, so every run comes
	// back invalid.
	sc := &simhost.Scenario{
		Revisions:  []string{"Rev A"},
		CouplingDB: 40,
		Radios: []simhost.Radio{
			{Name: "Silent Tx", Bands: []simhost.Band{{
				Name: "B0", Tx: true, PowerDBm: 10, Span: [2]float64{1.0e9, 1.1e9},
			}}},
			{Name: "Wide Rx", Bands: []simhost.Band{{
				Name: "B0", Rx: true, Span: [2]float64{0.9e9, 1.2e9}, Frequencies: []float64{1.05e9},
			}}},
		},
	}
	res, _ := newTestResults(t, sc)
	rev, err := res.Current(ctx)
	require.NoError(t, err)

	m, err := ClassifyInterference(ctx, rev, DefaultInterferenceThresholds(), Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"Silent Tx"}, m.TxRadios)
	require.Equal(t, []string{"Wide Rx"}, m.RxRadios)
	c := m.Cells[0][0]
	assert.Equal(t, LabelNone, c.Label)
	assert.Equal(t, SeverityWhite, c.Severity)
	assert.False(t, c.Valid)

	p, err := ClassifyProtection(ctx, rev, DefaultProtectionLevels(), Options{})
	require.NoError(t, err)
	pc := p.Cells[0][0]
	assert.Equal(t, LabelNone, pc.Label)
	assert.False(t, pc.Valid)
}
