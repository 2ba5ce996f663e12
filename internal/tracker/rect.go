// Package tracker works out which laid out elements overlap the viewport.
package tracker

import (
	"cmp"
	"slices"
)

// Rect is a vertical extent in lines.
type Rect struct {
	Top    int
	Height int
}

func (r Rect) Bottom() int {
	return r.Top + r.Height
}

// Ratio returns the share of r that lies inside root, between 0 and 1.
// Zero height elements count as fully visible when their top is inside root.
func Ratio(r, root Rect) float64 {
	if r.Height <= 0 {
		if r.Top >= root.Top && r.Top < root.Bottom() {
			return 1
		}
		return 0
	}
	overlap := min(r.Bottom(), root.Bottom()) - max(r.Top, root.Top)
	if overlap <= 0 {
		return 0
	}
	return float64(overlap) / float64(r.Height)
}

// Element is a laid out row or margin sentinel.
type Element struct {
	Key    string
	Rect   Rect
	Margin bool
}

// Visible returns the keys of the non-margin elements that overlap the
// viewport, top to bottom, using direct geometry.
func Visible(scrollTop, clientHeight int, elements []Element) []string {
	var keys []string
	for _, el := range sortedByTop(elements) {
		if el.Margin {
			continue
		}
		if el.Rect.Top+el.Rect.Height >= scrollTop && el.Rect.Top < scrollTop+clientHeight {
			keys = append(keys, el.Key)
		}
	}
	return keys
}

// Measure computes a full visibility report by polling geometry.
func Measure(scrollTop, clientHeight int, elements []Element) Visibility {
	root := Rect{Top: scrollTop, Height: clientHeight}
	v := Visibility{
		Keys:         Visible(scrollTop, clientHeight, elements),
		ScrollTop:    scrollTop,
		MarginRatios: map[string]float64{},
	}
	for _, el := range elements {
		if !el.Margin {
			continue
		}
		if r := Ratio(el.Rect, root); r > 0 {
			v.MarginRatios[el.Key] = r
		}
	}
	return v
}

func sortedByTop(elements []Element) []Element {
	out := slices.Clone(elements)
	slices.SortStableFunc(out, func(a, b Element) int {
		return cmp.Compare(a.Rect.Top, b.Rect.Top)
	})
	return out
}
