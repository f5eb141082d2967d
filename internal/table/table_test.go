package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf)
	table.WithHeader([]string{"OFFSET", "OP", "info"})
	table.WithColumnAlignment([]Alignment{AlignLeft, AlignRight, AlignLeft})
	table.WithHeaderAlignment([]Alignment{AlignCenter, AlignCenter, AlignRight})
	table.Append([]string{"0000", "PUSH", "u8 3"})
	table.Append([]string{"2", "JZ", "-> 9"})
	require.NoError(t, table.Render())

	expected := `
+--------+------+------+
| OFFSET |  OP  | info |
+--------+------+------+
| 0000   | PUSH | u8 3 |
| 2      |   JZ | -> 9 |
+--------+------+------+
`
	require.Equal(t, strings.TrimSpace(expected)+"\n", buf.String())
}

func TestColouredCellsKeepAlignment(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	table := NewTable(&buf).
		WithHeader([]string{"A", "B", "C"}).
		WithColumnAlignment([]Alignment{AlignLeft, AlignRight, AlignCenter})
	table.Append([]string{color.New(color.Bold).Sprint("bold text"), "12345", color.GreenString("green")})
	table.Append([]string{"plain", color.YellowString("999"), color.CyanString("more colour")})
	require.NoError(t, table.Render())

	out := buf.String()
	require.NotEqual(t, out, ansi.Strip(out), "expected colour sequences in output")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 6)
	width := len(lines[0])
	for i, line := range lines {
		require.Equal(t, width, len(ansi.Strip(line)), "line %d", i)
	}
}

func TestRowsWithoutHeader(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf).WithRows([][]string{{"a", "bb"}, {"ccc"}})
	require.NoError(t, table.Render())
	require.Equal(t, "+-----+----+\n| a   | bb |\n| ccc |    |\n+-----+----+\n", buf.String())
}

func TestEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTable(&buf).Render())
	require.Empty(t, buf.String())
}
