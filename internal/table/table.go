// Package table renders bordered text tables whose cells may contain ANSI
// colour sequences.
package table

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Alignment controls how a cell is padded to the column width.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Table collects rows and writes them to w on Render.
type Table struct {
	w           io.Writer
	header      []string
	rows        [][]string
	columnAlign []Alignment
	headerAlign []Alignment
}

// NewTable returns an empty table writing to w.
func NewTable(w io.Writer) *Table {
	return &Table{w: w}
}

// WithHeader sets the column titles.
func (t *Table) WithHeader(header []string) *Table {
	t.header = header
	return t
}

// WithColumnAlignment sets the alignment of body cells per column.
func (t *Table) WithColumnAlignment(align []Alignment) *Table {
	t.columnAlign = align
	return t
}

// WithHeaderAlignment sets the alignment of the titles per column.
func (t *Table) WithHeaderAlignment(align []Alignment) *Table {
	t.headerAlign = align
	return t
}

// WithRows replaces the body rows.
func (t *Table) WithRows(rows [][]string) *Table {
	t.rows = rows
	return t
}

// Append adds one body row.
func (t *Table) Append(row []string) *Table {
	t.rows = append(t.rows, row)
	return t
}

func (t *Table) columns() int {
	n := len(t.header)
	for _, row := range t.rows {
		n = max(n, len(row))
	}
	return n
}

func (t *Table) widths() []int {
	widths := make([]int, t.columns())
	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], ansi.StringWidth(cell))
		}
	}
	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}
	return widths
}

// Render writes the table. A table without header and rows writes nothing.
func (t *Table) Render() error {
	widths := t.widths()
	if len(widths) == 0 {
		return nil
	}
	var sb strings.Builder
	t.separator(&sb, widths)
	if len(t.header) > 0 {
		t.line(&sb, widths, t.header, t.headerAlign)
		t.separator(&sb, widths)
	}
	for _, row := range t.rows {
		t.line(&sb, widths, row, t.columnAlign)
	}
	if len(t.rows) > 0 {
		t.separator(&sb, widths)
	}
	_, err := io.WriteString(t.w, sb.String())
	return err
}

func (t *Table) separator(sb *strings.Builder, widths []int) {
	sb.WriteByte('+')
	for _, w := range widths {
		sb.WriteString(strings.Repeat("-", w+2))
		sb.WriteByte('+')
	}
	sb.WriteByte('\n')
}

func (t *Table) line(sb *strings.Builder, widths []int, row []string, align []Alignment) {
	sb.WriteByte('|')
	for i, w := range widths {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		a := AlignLeft
		if i < len(align) {
			a = align[i]
		}
		fmt.Fprintf(sb, " %s |", pad(cell, w, a))
	}
	sb.WriteByte('\n')
}

func pad(s string, width int, align Alignment) string {
	gap := width - ansi.StringWidth(s)
	if gap <= 0 {
		return s
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + s
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	default:
		return s + strings.Repeat(" ", gap)
	}
}
