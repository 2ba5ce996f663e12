package grid

import (
	"slices"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/tujuhre12/dgrid/internal/provider"
)

// SortRequest returns the sort for activating a column header. Columns that
// are not sortable yield false.
func SortRequest[T any](col Column[T], current []provider.SortDetails) (provider.SortDetails, bool) {
	if !col.IsSortable() {
		return provider.SortDetails{}, false
	}
	return provider.ToggleSort(current, col.SortField()), true
}

// AppendSort toggles d within a sort chain, adding it as the last key when
// the column is not sorted yet.
func AppendSort(current []provider.SortDetails, d provider.SortDetails) []provider.SortDetails {
	out := slices.Clone(current)
	for i, s := range out {
		if s.ColumnID == d.ColumnID {
			out[i] = d
			return out
		}
	}
	return append(out, d)
}

// RenderHeader renders the header line. focused is the index of the focused
// column or -1.
func RenderHeader[T any](reg Registry[T], columns []Column[T], sort []provider.SortDetails, focused int) string {
	reg = reg.withDefaults()
	cells := make([]string, len(columns))
	for i, col := range columns {
		var detail *provider.SortDetails
		if d, ok := findSort(sort, col.SortField()); ok {
			detail = &d
		}
		cells[i] = reg.HeaderCell(col, detail, i == focused)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, spaced(cells)...)
}

func findSort(details []provider.SortDetails, field string) (provider.SortDetails, bool) {
	for _, d := range details {
		if d.ColumnID == field {
			return d, true
		}
	}
	return provider.SortDetails{}, false
}
