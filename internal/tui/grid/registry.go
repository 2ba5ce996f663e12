package grid

import (
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/tui/styles"
)

// HeaderCellFunc renders one header cell. sort is nil when the column is not
// sorted.
type HeaderCellFunc[T any] func(col Column[T], sort *provider.SortDetails, focused bool) string

// CellFunc renders one line of a cell, already fitted to the column width.
type CellFunc[T any] func(col Column[T], item provider.Item[T], line string, focused bool) string

// RowFunc joins rendered cells into a row.
type RowFunc[T any] func(item provider.Item[T], cells []string, state RowState) string

type RowState struct {
	Selected bool
	Alt      bool
	Width    int
}

// Registry holds the renderers used by the grid. Zero fields fall back to
// the defaults.
type Registry[T any] struct {
	HeaderCell HeaderCellFunc[T]
	Cell       CellFunc[T]
	Row        RowFunc[T]
}

func DefaultRegistry[T any]() Registry[T] {
	return Registry[T]{
		HeaderCell: DefaultHeaderCell[T],
		Cell:       DefaultCell[T],
		Row:        DefaultRow[T],
	}
}

// With returns r with the non-nil renderers of overrides applied.
func (r Registry[T]) With(overrides Registry[T]) Registry[T] {
	if overrides.HeaderCell != nil {
		r.HeaderCell = overrides.HeaderCell
	}
	if overrides.Cell != nil {
		r.Cell = overrides.Cell
	}
	if overrides.Row != nil {
		r.Row = overrides.Row
	}
	return r
}

func (r Registry[T]) withDefaults() Registry[T] {
	return DefaultRegistry[T]().With(r)
}

func DefaultHeaderCell[T any](col Column[T], sort *provider.SortDetails, focused bool) string {
	s := styles.CurrentTheme().S()
	title := col.Title()
	style := s.Header
	if sort != nil {
		style = s.HeaderSorted
		if sort.Descending {
			title += " ▼"
		} else {
			title += " ▲"
		}
	}
	if focused {
		style = s.HeaderFocus
	}
	return style.Render(FitCell(title, col.Width, 1)[0])
}

func DefaultCell[T any](col Column[T], item provider.Item[T], line string, focused bool) string {
	if focused {
		return styles.CurrentTheme().S().CellFocused.Render(line)
	}
	return line
}

func DefaultRow[T any](item provider.Item[T], cells []string, state RowState) string {
	s := styles.CurrentTheme().S()
	style := s.Row
	switch {
	case state.Selected:
		style = s.RowSelected
	case state.Alt:
		style = s.RowAlt
	}
	return style.Width(state.Width).Render(lipgloss.JoinHorizontal(lipgloss.Top, spaced(cells)...))
}

func spaced(cells []string) []string {
	if len(cells) < 2 {
		return cells
	}
	out := make([]string, 0, len(cells)*2-1)
	for i, c := range cells {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, c)
	}
	return out
}
