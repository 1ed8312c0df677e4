// Package ui holds small terminal output helpers for the CLI
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Table renders aligned tabular output
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{writer: w, headers: headers}
}

// AddRow appends one row. Missing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	bold := color.New(color.Bold)
	for i, header := range t.headers {
		if i > 0 {
			fmt.Fprint(t.writer, "  ")
		}
		bold.Fprintf(t.writer, "%-*s", widths[i], header)
	}
	fmt.Fprintln(t.writer)

	for i, width := range widths {
		if i > 0 {
			fmt.Fprint(t.writer, "  ")
		}
		fmt.Fprint(t.writer, strings.Repeat("-", width))
	}
	fmt.Fprintln(t.writer)

	for _, row := range t.rows {
		for i := range t.headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i > 0 {
				fmt.Fprint(t.writer, "  ")
			}
			fmt.Fprintf(t.writer, "%-*s", widths[i], cell)
		}
		fmt.Fprintln(t.writer)
	}
}
