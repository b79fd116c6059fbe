package style

import (
	"strings"
	"testing"
)

func renderLines(tbl *Table) []string {
	return strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
}

func TestNewTable_Defaults(t *testing.T) {
	tbl := NewTable(
		Column{Name: "ID", Width: 18},
		Column{Name: "TASK", Width: 30},
	)
	if len(tbl.columns) != 2 {
		t.Errorf("columns = %d, want 2", len(tbl.columns))
	}
	if tbl.indent != "  " {
		t.Errorf("indent = %q, want %q", tbl.indent, "  ")
	}
	if tbl.AddRow() != tbl {
		t.Error("AddRow should return the table for chaining")
	}
}

func TestTable_AddRowNormalizesWidth(t *testing.T) {
	tbl := NewTable(Column{Name: "ID", Width: 5}, Column{Name: "STATUS", Width: 8})
	tbl.AddRow("a")
	tbl.AddRow("b", "running", "extra")

	for i, row := range tbl.rows {
		if len(row) != 2 {
			t.Fatalf("row %d has %d cells, want 2", i, len(row))
		}
	}
	if tbl.rows[0][1] != "" {
		t.Errorf("missing cell = %q, want empty", tbl.rows[0][1])
	}
}

func TestTable_Render(t *testing.T) {
	tbl := NewTable(
		Column{Name: "ID", Width: 18},
		Column{Name: "STATUS", Width: 9},
	)
	tbl.indent = ""
	tbl.AddRow("cwt-20260101-abcd", "running")
	tbl.AddRow("cwt-20260102-beef", "merged")

	lines := renderLines(tbl)
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(stripAnsi(lines[0]), "STATUS") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(stripAnsi(lines[1]), "─") {
		t.Errorf("separator = %q", lines[1])
	}
	row := stripAnsi(lines[3])
	if !strings.HasPrefix(row, "cwt-20260102-beef") || !strings.HasSuffix(row, "merged") {
		t.Errorf("row = %q", row)
	}
}

func TestTable_RenderEdgeCases(t *testing.T) {
	if got := NewTable().Render(); got != "" {
		t.Errorf("no columns: Render() = %q, want empty", got)
	}

	headerOnly := NewTable(Column{Name: "TASK", Width: 10})
	if n := len(renderLines(headerOnly)); n != 2 {
		t.Errorf("no rows: got %d lines, want header and separator", n)
	}

	indented := NewTable(Column{Name: "A", Width: 5})
	indented.AddRow("x")
	for _, line := range renderLines(indented) {
		if !strings.HasPrefix(line, "  ") {
			t.Errorf("line missing indent: %q", line)
		}
	}
}

func TestTable_RenderTruncates(t *testing.T) {
	tbl := NewTable(Column{Name: "TASK", Width: 8})
	tbl.AddRow("refactor the parser into smaller pieces")

	row := strings.TrimSpace(stripAnsi(renderLines(tbl)[2]))
	if row != "refac..." {
		t.Errorf("truncated row = %q, want %q", row, "refac...")
	}
}

func TestTable_Pad(t *testing.T) {
	tests := []struct {
		name  string
		plain string
		width int
		align Align
		want  string
	}{
		{"left", "hi", 6, AlignLeft, "hi    "},
		{"right", "hi", 6, AlignRight, "    hi"},
		{"center", "hi", 6, AlignCenter, "  hi  "},
		{"center odd gap", "hi", 5, AlignCenter, " hi  "},
		{"exact", "hello", 5, AlignLeft, "hello"},
		{"overflow", "toolong", 3, AlignLeft, "toolong"},
	}
	tbl := &Table{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tbl.pad(tt.plain, tt.plain, tt.width, tt.align); got != tt.want {
				t.Errorf("pad = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTable_PadUsesPlainWidth(t *testing.T) {
	styled := "\x1b[32mok\x1b[0m"
	got := (&Table{}).pad("ok", styled, 4, AlignLeft)
	if got != styled+"  " {
		t.Errorf("pad = %q, want styled text plus two spaces", got)
	}
}

func TestStripAnsi(t *testing.T) {
	tests := map[string]string{
		"hello":                           "hello",
		"\x1b[1mhello\x1b[0m":             "hello",
		"\x1b[1m\x1b[31mbold red\x1b[0m":  "bold red",
		"before\x1b[32mgreen\x1b[0mafter": "beforegreenafter",
		"":                                "",
	}
	for in, want := range tests {
		if got := stripAnsi(in); got != want {
			t.Errorf("stripAnsi(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTable_PreStyledCells(t *testing.T) {
	tbl := NewTable(Column{Name: "STATUS", Width: 8}, Column{Name: "ID", Width: 4})
	tbl.indent = ""
	tbl.AddRow("\x1b[32mmerged\x1b[0m", "abcd")
	tbl.AddRow("\x1b[31mvery-long-status\x1b[0m", "efgh")

	lines := renderLines(tbl)
	if got := stripAnsi(lines[2]); got != "merged   abcd" {
		t.Errorf("row = %q, want padding from the visible width", got)
	}
	if !strings.Contains(lines[2], "\x1b[32m") {
		t.Error("styling of a cell that fits should be kept")
	}
	if got := lines[3]; got != "very-... efgh" {
		t.Errorf("row = %q, want truncated plain cell", got)
	}
}
