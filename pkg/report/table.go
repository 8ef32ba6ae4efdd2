package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// Table holds solution data pulled from the host: ordered columns, one
// unit per column and numeric rows.
type Table struct {
	Columns []string
	Units   []string
	Rows    [][]float64
}

// Fetch pulls solution data for the expressions and decodes it.
func Fetch(ctx context.Context, inv remote.Invoker, exprs ...string) (*Table, error) {
	if len(exprs) == 0 {
		return nil, errors.New("report: no expressions")
	}
	list := variant.List()
	for _, e := range exprs {
		list.Append(variant.Str(e))
	}
	res, err := inv.Invoke(ctx, remote.TargetReport, "GetSolutionData", variant.List(list))
	if err != nil {
		return nil, fmt.Errorf("report: solution data: %w", err)
	}
	return FromSolutionData(res)
}

// FromSolutionData decodes a GetSolutionData reply: a Columns block, a
// Units block, then one plain list per row.
func FromSolutionData(res *variant.Value) (*Table, error) {
	cols := res.FindBlock("Columns")
	units := res.FindBlock("Units")
	if cols == nil || units == nil {
		return nil, errors.New("report: solution data misses Columns or Units")
	}
	t := &Table{}
	for _, item := range cols.Items()[1:] {
		s, ok := item.AsString()
		if !ok {
			return nil, errors.New("report: non-string column name")
		}
		t.Columns = append(t.Columns, s)
	}
	for _, item := range units.Items()[1:] {
		s, ok := item.AsString()
		if !ok {
			return nil, errors.New("report: non-string unit")
		}
		t.Units = append(t.Units, s)
	}
	if len(t.Units) != len(t.Columns) {
		return nil, fmt.Errorf("report: %d columns but %d units", len(t.Columns), len(t.Units))
	}
	for _, item := range res.Items() {
		if _, ok := item.BlockName(); ok {
			continue
		}
		if item.Kind() != variant.KindList {
			return nil, fmt.Errorf("report: unexpected %s entry in solution data", item.Kind())
		}
		row := make([]float64, 0, item.Len())
		for _, cell := range item.Items() {
			f, ok := cell.AsFloat()
			if !ok {
				return nil, errors.New("report: non-numeric row entry")
			}
			row = append(row, f)
		}
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("report: row has %d entries, want %d", len(row), len(t.Columns))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// RenderText writes the table through go-pretty. Units are folded into the
// header labels, which keep their case.
func (t *Table) RenderText(w io.Writer) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault

	head := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		head[i] = labelWithUnit(c, t.unit(i))
	}
	tw.AppendHeader(head)
	for _, row := range t.Rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = formatNumber(v)
		}
		tw.AppendRow(r)
	}
	tw.Render()
}

// RenderCSV writes the table as CSV with the same header labels.
func (t *Table) RenderCSV(w io.Writer) error {
	head := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		head[i] = escapeCSV(labelWithUnit(c, t.unit(i)))
	}
	if _, err := fmt.Fprintln(w, strings.Join(head, ",")); err != nil {
		return err
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatNumber(v)
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, ",")); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) unit(i int) string {
	if i >= len(t.Units) {
		return ""
	}
	return t.Units[i]
}

func labelWithUnit(name, unit string) string {
	if unit == "" {
		return name
	}
	return name + " [" + unit + "]"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
