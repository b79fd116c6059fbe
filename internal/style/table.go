package style

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Align is a column's horizontal alignment.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

// Column describes one table column. Style, when set, colours the cells.
type Column struct {
	Name  string
	Width int
	Align Align
	Style *lipgloss.Style
}

// Table renders fixed-width rows for terminal listings.
type Table struct {
	columns []Column
	rows    [][]string
	indent  string
}

// NewTable returns a table with a two-space indent. A rule separates the
// header from the rows.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns: columns,
		indent:  "  ",
	}
}

// AddRow appends a row. Missing trailing cells are left empty; extra cells
// are dropped.
func (t *Table) AddRow(values ...string) *Table {
	row := make([]string, len(t.columns))
	copy(row, values)
	t.rows = append(t.rows, row)
	return t
}

// Render returns the table, one line per row, each ending in a newline.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var sb strings.Builder

	header := make([]string, len(t.columns))
	for i, col := range t.columns {
		plain := truncate(col.Name, col.Width)
		header[i] = t.pad(plain, Bold.Render(plain), col.Width, col.Align)
	}
	t.writeLine(&sb, header)

	sep := make([]string, len(t.columns))
	for i, col := range t.columns {
		sep[i] = Dim.Render(strings.Repeat("─", col.Width))
	}
	t.writeLine(&sb, sep)

	for _, row := range t.rows {
		cells := make([]string, len(t.columns))
		for i, col := range t.columns {
			// Cells may arrive pre-styled; a cut drops their styling.
			styled := row[i]
			plain := stripAnsi(styled)
			if lipgloss.Width(plain) > col.Width {
				plain = truncate(plain, col.Width)
				styled = plain
			}
			if col.Style != nil {
				styled = col.Style.Render(plain)
			}
			cells[i] = t.pad(plain, styled, col.Width, col.Align)
		}
		t.writeLine(&sb, cells)
	}
	return sb.String()
}

func (t *Table) writeLine(sb *strings.Builder, cells []string) {
	sb.WriteString(t.indent)
	sb.WriteString(strings.TrimRight(strings.Join(cells, " "), " "))
	sb.WriteString("\n")
}

// pad widens styled to width based on the display width of plain. Text
// that already fills the column is returned as is.
func (t *Table) pad(plain, styled string, width int, align Align) string {
	w := lipgloss.Width(plain)
	if w >= width {
		return styled
	}
	gap := width - w
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + styled
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + styled + strings.Repeat(" ", gap-left)
	default:
		return styled + strings.Repeat(" ", gap)
	}
}

// truncate shortens s to width display cells, marking the cut with "...".
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width <= 3 {
		return strings.Repeat(".", width)
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-3 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

func stripAnsi(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
