package report

import (
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// table lays out rows in columns aligned by display width. The last
// column is never padded.
type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) write(b *strings.Builder, indent string, head *color.Color) {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, c := range row {
			if w := runewidth.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string, style *color.Color) {
		b.WriteString(indent)
		for i, c := range cells {
			last := i == len(cells)-1
			pad := ""
			if !last {
				pad = strings.Repeat(" ", widths[i]-runewidth.StringWidth(c)+2)
			}
			if style != nil {
				c = style.Sprint(c)
			}
			b.WriteString(c)
			b.WriteString(pad)
		}
		b.WriteByte('\n')
	}

	line(t.header, head)
	for _, row := range t.rows {
		line(row, nil)
	}
}

// clip shortens s to at most width display columns.
func clip(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
