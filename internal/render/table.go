// internal/render/table.go
package render

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode selects the table flavour
type Mode int

const (
	ASCII    Mode = iota // box-drawing terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps "markdown"/"md" to Markdown; anything else is ASCII
func ParseMode(s string) Mode {
	switch s {
	case "markdown", "md":
		return Markdown
	default:
		return ASCII
	}
}

type tableBuilder struct {
	w    table.Writer
	mode Mode
}

func newTable(m Mode, title string) *tableBuilder {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	if title != "" {
		w.SetTitle(title)
	}
	return &tableBuilder{w: w, mode: m}
}

func (t *tableBuilder) header(cols ...any) {
	t.w.AppendHeader(table.Row(cols))
}

func (t *tableBuilder) row(vals ...any) {
	t.w.AppendRow(table.Row(vals))
}

func (t *tableBuilder) footer(vals ...any) {
	t.w.AppendFooter(table.Row(vals))
}

// alignRight right-aligns the given 1-based columns
func (t *tableBuilder) alignRight(cols ...int) {
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for _, c := range cols {
		cfgs = append(cfgs, table.ColumnConfig{Number: c, Align: text.AlignRight})
	}
	t.w.SetColumnConfigs(cfgs)
}

func (t *tableBuilder) String() string {
	if t.mode == Markdown {
		return t.w.RenderMarkdown()
	}
	return t.w.Render()
}
