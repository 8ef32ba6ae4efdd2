package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/emc"
)

var severityColors = map[emc.Severity]text.Colors{
	emc.SeverityRed:    {text.FgHiRed},
	emc.SeverityOrange: {text.FgHiYellow},
	emc.SeverityYellow: {text.FgYellow},
	emc.SeverityGreen:  {text.FgGreen},
	emc.SeverityWhite:  {text.FgHiBlack},
}

// RenderMatrix writes a classification matrix with per-cell severity
// colors, interferers down the side and receivers across the top.
func RenderMatrix(w io.Writer, m *emc.Matrix) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault

	head := table.Row{string(m.Kind)}
	for _, rx := range m.RxRadios {
		head = append(head, rx)
	}
	tw.AppendHeader(head)
	for i, tx := range m.TxRadios {
		row := table.Row{tx}
		for j := range m.RxRadios {
			c := m.Cells[i][j]
			row = append(row, severityColors[c.Severity].Sprint(matrixCell(c)))
		}
		tw.AppendRow(row)
	}
	tw.Render()
}

// RenderMatrixCSV writes the matrix as plain CSV without colors.
func RenderMatrixCSV(w io.Writer, m *emc.Matrix) error {
	head := make([]string, 0, len(m.RxRadios)+1)
	head = append(head, escapeCSV(string(m.Kind)))
	for _, rx := range m.RxRadios {
		head = append(head, escapeCSV(rx))
	}
	if _, err := fmt.Fprintln(w, strings.Join(head, ",")); err != nil {
		return err
	}
	for i, tx := range m.TxRadios {
		cells := make([]string, 0, len(m.RxRadios)+1)
		cells = append(cells, escapeCSV(tx))
		for j := range m.RxRadios {
			cells = append(cells, escapeCSV(matrixCell(m.Cells[i][j])))
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, ",")); err != nil {
			return err
		}
	}
	return nil
}

func matrixCell(c emc.Cell) string {
	if !c.Valid {
		return c.Label
	}
	return fmt.Sprintf("%s (%.1f dBm)", c.Label, c.Power)
}
