package grid

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/tujuhre12/dgrid/internal/provider"
)

type RenderOptions[T any] struct {
	// Width limits the output. Zero leaves rows at their natural width.
	Width    int
	Registry Registry[T]
	Field    func(T, string) any
	Tree     bool
	// NoHeader omits the header line.
	NoHeader bool
}

// Render draws the items of a result set without a viewport: a header line
// followed by every row.
func Render[T any](columns []Column[T], rs provider.ResultSet[T], opts RenderOptions[T]) string {
	if opts.Field == nil {
		opts.Field = func(v T, name string) any { return provider.Field(v, name) }
	}
	for _, c := range columns {
		if c.Width <= 0 {
			columns = AutoSize(columns, rs.Items, opts.Field)
			break
		}
	}
	if opts.Width > 0 {
		columns = Fit(columns, opts.Width)
	}

	rows := rowRenderer[T]{
		registry: opts.Registry.withDefaults(),
		columns:  columns,
		field:    opts.Field,
		tree:     opts.Tree,
	}

	var sb strings.Builder
	if !opts.NoHeader {
		writeLines(&sb, RenderHeader(opts.Registry, columns, rs.Sort, -1), opts.Width)
	}
	for _, item := range rs.Items {
		state := RowState{Alt: item.Index%2 == 1}
		content := rows.content(item, state, -1)
		writeLines(&sb, rows.render(item, content, state, -1), opts.Width)
	}
	return sb.String()
}

func writeLines(sb *strings.Builder, view string, width int) {
	for line := range strings.SplitSeq(view, "\n") {
		if width > 0 {
			line = ansi.Truncate(line, width, "")
		}
		sb.WriteString(strings.TrimRight(line, " "))
		sb.WriteByte('\n')
	}
}
