// Package cliutil provides shared CLI rendering and prompting helpers for
// the webnis-bind and webnis-server command trees (SPEC_FULL.md §4.8),
// adapted from the teacher's internal/cli/output and internal/cli/prompt
// packages.
package cliutil

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a
// table, e.g. StringTable, which the info command uses for its domain,
// map and auth tables.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a formatted table to w.
func PrintTable(w io.Writer, data TableRenderer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.Headers())
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, row := range data.Rows() {
		table.Append(row)
	}
	table.Render()
}

// StringTable is an ad-hoc TableRenderer for hand-built rows.
type StringTable struct {
	headers []string
	rows    [][]string
}

// NewStringTable creates a StringTable with the given column headers.
func NewStringTable(headers ...string) *StringTable {
	return &StringTable{headers: headers}
}

// AddRow appends one row of cell values.
func (t *StringTable) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *StringTable) Headers() []string { return t.headers }
func (t *StringTable) Rows() [][]string  { return t.rows }
