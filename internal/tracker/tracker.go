package tracker

import (
	"cmp"
	"slices"
	"strings"
)

// Visibility is the logical visibility report consumed by the scroll
// controller.
type Visibility struct {
	// Keys are the visible rows, top to bottom. Margins are never listed.
	Keys []string
	// ScrollTop is reported even when no row is visible.
	ScrollTop int
	// MarginRatios holds the ratio of every intersecting margin sentinel.
	MarginRatios map[string]float64
}

func (v Visibility) Empty() bool {
	return len(v.Keys) == 0
}

// MarginVisible reports whether any margin sentinel intersects the
// viewport.
func (v Visibility) MarginVisible() bool {
	for _, r := range v.MarginRatios {
		if r > 0 {
			return true
		}
	}
	return false
}

// Tracker turns intersection batches into Visibility events. It maintains
// the set of intersecting elements incrementally.
type Tracker struct {
	observer     *Observer
	intersecting map[string]Entry
	last         Visibility
	emitted      bool
	rootMoved    bool
	onChange     func(Visibility)
}

func New(onChange func(Visibility)) *Tracker {
	t := &Tracker{
		intersecting: make(map[string]Entry),
		onChange:     onChange,
	}
	t.observer = NewObserver(t.handle)
	return t
}

func (t *Tracker) Observe(key string, rect Rect, margin bool) {
	t.observer.Observe(key, rect, margin)
}

func (t *Tracker) Unobserve(key string) {
	t.observer.Unobserve(key)
}

// SetRoot updates the viewport.
func (t *Tracker) SetRoot(scrollTop, height int) {
	root := Rect{Top: scrollTop, Height: height}
	if root != t.observer.Root() {
		t.rootMoved = true
	}
	t.observer.SetRoot(root)
}

// Visibility returns the last reported visibility.
func (t *Tracker) Visibility() Visibility {
	return t.last
}

// Flush delivers pending intersection changes and raises a visibility
// event when the visible rows changed, or when the viewport moved while it
// shows no rows or shows a margin. It reports whether an event was raised.
func (t *Tracker) Flush() bool {
	delivered := t.observer.Flush()
	v := t.snapshot()

	moved := t.rootMoved || delivered > 0
	t.rootMoved = false

	emit := !t.emitted ||
		!slices.Equal(v.Keys, t.last.Keys) ||
		(moved && (v.Empty() || v.MarginVisible()))
	if !emit {
		t.last.ScrollTop = v.ScrollTop
		return false
	}
	t.last = v
	t.emitted = true
	if t.onChange != nil {
		t.onChange(v)
	}
	return true
}

func (t *Tracker) handle(batch []Entry) {
	for _, e := range batch {
		if e.Removed || !e.Intersecting {
			delete(t.intersecting, e.Key)
			continue
		}
		t.intersecting[e.Key] = e
	}
}

func (t *Tracker) snapshot() Visibility {
	rows := make([]Entry, 0, len(t.intersecting))
	margins := make(map[string]float64)
	for _, e := range t.intersecting {
		if e.Margin {
			margins[e.Key] = e.Ratio
			continue
		}
		rows = append(rows, e)
	}
	slices.SortFunc(rows, func(a, b Entry) int {
		if c := cmp.Compare(a.Rect.Top, b.Rect.Top); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	keys := make([]string, len(rows))
	for i, e := range rows {
		keys[i] = e.Key
	}
	return Visibility{
		Keys:         keys,
		ScrollTop:    t.observer.Root().Top,
		MarginRatios: margins,
	}
}
