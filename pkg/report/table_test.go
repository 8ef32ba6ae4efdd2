package report

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

func TestFetchSolutionData(t *testing.T) {
	ctx := context.Background()
	rec := newTestInvoker(t)

	tab, err := Fetch(ctx, rec, "EMI")
	require.NoError(t, err)
	assert.Equal(t, []string{"Freq", "EMI"}, tab.Columns)
	assert.Equal(t, []string{"GHz", "dBm"}, tab.Units)
	require.Len(t, tab.Rows, 3)
	assert.Equal(t, []float64{2.40, -10}, tab.Rows[0])
	assert.Equal(t, []float64{2.44, -20}, tab.Rows[1])

	_, err = Fetch(ctx, rec)
	assert.ErrorContains(t, err, "no expressions")
}

func TestFromSolutionDataValidation(t *testing.T) {
	_, err := FromSolutionData(variant.List(variant.List(variant.Num(1))))
	assert.ErrorContains(t, err, "Columns or Units")

	cols := variant.Block("Columns", variant.Str("A"), variant.Str("B"))
	units := variant.Block("Units", variant.Str("u"))
	_, err = FromSolutionData(variant.List(cols, units))
	assert.ErrorContains(t, err, "2 columns but 1 units")

	units = variant.Block("Units", variant.Str("u"), variant.Str("v"))
	_, err = FromSolutionData(variant.List(cols, units, variant.List(variant.Num(1))))
	assert.ErrorContains(t, err, "row has 1 entries, want 2")

	_, err = FromSolutionData(variant.List(cols, units, variant.List(variant.Str("x"), variant.Num(2))))
	assert.ErrorContains(t, err, "non-numeric")

	_, err = FromSolutionData(variant.List(cols, units, variant.Str("junk")))
	assert.ErrorContains(t, err, "unexpected string entry")

	tab, err := FromSolutionData(variant.List(cols, units, variant.List(variant.Num(1), variant.Num(2))))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}}, tab.Rows)
}

func TestRenderText(t *testing.T) {
	tab := &Table{
		Columns: []string{"Freq", "EMI"},
		Units:   []string{"GHz", "dBm"},
		Rows:    [][]float64{{2.4, -10}, {2.45, -20}},
	}
	var buf strings.Builder
	tab.RenderText(&buf)
	out := buf.String()
	assert.Contains(t, out, "Freq [GHz]")
	assert.Contains(t, out, "EMI [dBm]")
	assert.Contains(t, out, "2.45")
	assert.Contains(t, out, "-20")
}

func TestRenderCSV(t *testing.T) {
	tab := &Table{
		Columns: []string{"Freq", "EMI, worst"},
		Units:   []string{"GHz", "dBm"},
		Rows:    [][]float64{{2.4, -10}},
	}
	var buf strings.Builder
	require.NoError(t, tab.RenderCSV(&buf))
	want := "Freq [GHz],\"EMI, worst [dBm]\"\n2.4,-10\n"
	assert.Equal(t, want, buf.String())
}
