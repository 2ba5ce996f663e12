package grid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/rivo/uniseg"
	"github.com/tujuhre12/dgrid/internal/provider"
)

const (
	DefaultColumnWidth = 12
	MinColumnWidth     = 3
	MaxAutoWidth       = 40
)

// Column describes one grid column over items of type T.
type Column[T any] struct {
	ID    string
	Label string
	// Field names the data field shown in the column. When set it takes
	// precedence over Get.
	Field string
	// Sortable defaults to true.
	Sortable *bool
	// Width is the cell width in cells. Zero sizes the column from its
	// content.
	Width int
	// MaxLines caps the lines of a multi-line value. Zero means one line.
	MaxLines int

	// Get, Render and RenderValue receive the column itself, so one
	// callback can serve several columns.
	Get         func(item provider.Item[T], col Column[T]) any
	Render      func(item provider.Item[T], col Column[T]) string
	RenderValue func(value any, item provider.Item[T], col Column[T]) string
}

func (c Column[T]) IsSortable() bool {
	return c.Sortable == nil || *c.Sortable
}

func (c Column[T]) Title() string {
	if c.Label != "" {
		return c.Label
	}
	return c.ID
}

// Value resolves the raw value of the column for an item. Without Field or
// Get the column ID is used as the field name.
func (c Column[T]) Value(item provider.Item[T], field func(T, string) any) any {
	switch {
	case c.Field != "":
		return field(item.Data, c.Field)
	case c.Get != nil:
		return c.Get(item, c)
	}
	return field(item.Data, c.ID)
}

// Content returns the display text of the column for an item. Exactly one
// of Field, Get, Render and RenderValue decides it, in that order.
func (c Column[T]) Content(item provider.Item[T], field func(T, string) any) string {
	switch {
	case c.Field != "", c.Get != nil:
		return FormatValue(c.Value(item, field))
	case c.Render != nil:
		return c.Render(item, c)
	case c.RenderValue != nil:
		return c.RenderValue(c.Value(item, field), item, c)
	}
	return FormatValue(c.Value(item, field))
}

// SortField is the field the provider sorts the column by.
func (c Column[T]) SortField() string {
	if c.Field != "" {
		return c.Field
	}
	return c.ID
}

// FormatValue renders a raw value the way cells show it by default.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	return provider.Text(v)
}

// TextWidth is the display width of the widest line of s.
func TextWidth(s string) int {
	w := 0
	for line := range strings.SplitSeq(s, "\n") {
		w = max(w, uniseg.StringWidth(ansi.Strip(line)))
	}
	return w
}

// AutoSize fills in zero widths from the header and the given items.
func AutoSize[T any](columns []Column[T], items []provider.Item[T], field func(T, string) any) []Column[T] {
	out := make([]Column[T], len(columns))
	copy(out, columns)
	for i, c := range out {
		if c.Width > 0 {
			continue
		}
		w := TextWidth(c.Title()) + 2
		for _, item := range items {
			w = max(w, TextWidth(c.Content(item, field)))
		}
		out[i].Width = min(max(w, MinColumnWidth), MaxAutoWidth)
	}
	return out
}

// Fit shrinks columns from the right so the row fits width, keeping at
// least MinColumnWidth per column.
func Fit[T any](columns []Column[T], width int) []Column[T] {
	out := make([]Column[T], len(columns))
	copy(out, columns)
	total := RowWidth(out)
	for i := len(out) - 1; i >= 0 && total > width; i-- {
		shrink := min(total-width, out[i].Width-MinColumnWidth)
		if shrink <= 0 {
			continue
		}
		out[i].Width -= shrink
		total -= shrink
	}
	return out
}

// RowWidth is the width of a row including one separator space per gap.
func RowWidth[T any](columns []Column[T]) int {
	if len(columns) == 0 {
		return 0
	}
	w := len(columns) - 1
	for _, c := range columns {
		w += max(c.Width, 0)
	}
	return w
}

// FitCell truncates each line of s to width and pads it to exactly width
// cells, keeping at most maxLines lines.
func FitCell(s string, width, maxLines int) []string {
	if maxLines <= 0 {
		maxLines = 1
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines[maxLines-1] = ansi.Truncate(lines[maxLines-1], max(width-1, 0), "") + "…"
	}
	for i, line := range lines {
		line = strings.ReplaceAll(line, "\t", " ")
		line = ansi.Truncate(line, width, "…")
		if pad := width - ansi.StringWidth(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		lines[i] = line
	}
	return lines
}
