package grid

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/tui/styles"
)

func (g *Grid[T]) footerView() string {
	return lipgloss.JoinVertical(lipgloss.Left, g.statusView(), g.help.View(g.keyMap))
}

func (g *Grid[T]) statusView() string {
	t := styles.CurrentTheme().S()
	if g.filtering {
		return ansi.Truncate(t.Prompt.Render("/")+g.filter.View(), g.width, "…")
	}

	var parts []string
	parts = append(parts, t.StatusCount.Render(g.rangeText()))
	if g.perPage > 0 {
		parts = append(parts, t.Status.Render(g.paginator.View()))
	}
	if sort := SortText(g.result.Sort); sort != "" {
		parts = append(parts, t.Status.Render("sorted by "+sort))
	}
	if g.result.Filter != "" {
		parts = append(parts, t.Status.Render(fmt.Sprintf("filter %q", g.result.Filter)))
	}
	if g.status != "" {
		style := t.Muted
		if g.statusErr {
			style = t.Error
		}
		parts = append(parts, style.Render(g.status))
	}
	return ansi.Truncate(strings.Join(parts, t.Muted.Render(" • ")), g.width, "…")
}

func (g *Grid[T]) rangeText() string {
	total := g.result.Size.TotalLength
	if !g.hasResult {
		return "loading…"
	}
	if total == 0 {
		return "no rows"
	}
	first, last, ok := g.body.VisibleRange()
	if !ok {
		return fmt.Sprintf("%s rows", humanize.Comma(int64(total)))
	}
	return fmt.Sprintf("%s–%s of %s",
		humanize.Comma(int64(first+1)),
		humanize.Comma(int64(last+1)),
		humanize.Comma(int64(total)),
	)
}

// SortText describes a sort chain, e.g. "name ▲, size ▼".
func SortText(sort []provider.SortDetails) string {
	parts := make([]string, len(sort))
	for i, d := range sort {
		arrow := "▲"
		if d.Descending {
			arrow = "▼"
		}
		parts[i] = d.ColumnID + " " + arrow
	}
	return strings.Join(parts, ", ")
}
