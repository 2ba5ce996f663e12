package grid

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/tui/styles"
	"github.com/zeebo/xxh3"
)

const indentWidth = 2

type rowRenderer[T any] struct {
	registry Registry[T]
	columns  []Column[T]
	field    func(T, string) any
	tree     bool
	width    int
}

type rowContent struct {
	cells [][]string
	hash  uint64
}

// content fits the cell text of an item. The hash covers everything that
// affects the rendered row.
func (r rowRenderer[T]) content(item provider.Item[T], state RowState, focused int) rowContent {
	h := xxh3.New()
	cells := make([][]string, len(r.columns))
	for i, col := range r.columns {
		text := col.Content(item, r.field)
		width := col.Width
		prefix := ""
		if i == 0 && r.tree {
			prefix = expander(item)
			width = max(width-ansi.StringWidth(prefix), 1)
		}
		lines := FitCell(text, width, col.MaxLines)
		if prefix != "" {
			pad := strings.Repeat(" ", ansi.StringWidth(prefix))
			for j := range lines {
				if j == 0 {
					lines[j] = styles.CurrentTheme().S().Expander.Render(prefix) + lines[j]
				} else {
					lines[j] = pad + lines[j]
				}
			}
		}
		cells[i] = lines
		for _, line := range lines {
			h.WriteString(line)
			h.WriteString("\x00")
		}
		h.WriteString("\x01")
	}
	h.WriteString(strconv.FormatBool(state.Selected))
	h.WriteString(strconv.FormatBool(state.Alt))
	h.WriteString(strconv.Itoa(focused))
	h.WriteString(strconv.Itoa(state.Width))
	return rowContent{cells: cells, hash: h.Sum64()}
}

func (r rowRenderer[T]) render(item provider.Item[T], c rowContent, state RowState, focused int) string {
	reg := r.registry
	cells := make([]string, len(r.columns))
	for i, col := range r.columns {
		lines := make([]string, len(c.cells[i]))
		for j, line := range c.cells[i] {
			lines[j] = reg.Cell(col, item, line, state.Selected && i == focused)
		}
		cells[i] = strings.Join(lines, "\n")
	}
	return reg.Row(item, cells, state)
}

func expander[T any](item provider.Item[T]) string {
	indent := strings.Repeat(" ", item.ExpandedLevel*indentWidth)
	switch {
	case item.CanExpand && item.IsExpanded:
		return indent + "▾ "
	case item.CanExpand:
		return indent + "▸ "
	}
	return indent + "  "
}
