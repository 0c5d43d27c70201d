package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders rows under a header with a minimal border, sized to the
// display width.
type Table struct {
	display *DisplayContext
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(display *DisplayContext, headers ...string) *Table {
	if display == nil {
		display = &DisplayContext{TermWidth: DefaultTermWidth}
	}
	return &Table{display: display, headers: headers}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// String renders the table as a string
func (t *Table) String() string {
	if len(t.rows) == 0 {
		return ""
	}

	headerStyle := Bold.Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(Muted).
		BorderColumn(false).
		BorderLeft(false).
		BorderRight(false).
		BorderTop(false).
		BorderBottom(false).
		Headers(t.headers...).
		Rows(t.rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if t.display.IsTTY {
		tbl = tbl.Width(t.display.TermWidth)
	}
	return tbl.String() + "\n"
}
