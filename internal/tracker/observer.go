package tracker

import (
	"slices"
	"strings"
)

// Entry is one change delivered by the Observer.
type Entry struct {
	Key          string
	Rect         Rect
	Margin       bool
	Ratio        float64
	Intersecting bool
	Removed      bool
}

type target struct {
	rect         Rect
	reportedRect Rect
	margin       bool
	ratio        float64
	reported     bool
}

// Observer reports intersection changes of observed elements against a
// root rectangle. Changes are collected until Flush delivers them as one
// batch, similar to how a browser delivers intersection records once per
// frame.
type Observer struct {
	root     Rect
	targets  map[string]*target
	dirty    map[string]struct{}
	removed  map[string]target
	callback func([]Entry)
}

func NewObserver(callback func([]Entry)) *Observer {
	return &Observer{
		targets:  make(map[string]*target),
		dirty:    make(map[string]struct{}),
		removed:  make(map[string]target),
		callback: callback,
	}
}

// Observe starts tracking key, or updates its geometry.
func (o *Observer) Observe(key string, rect Rect, margin bool) {
	t, ok := o.targets[key]
	if !ok {
		t = &target{}
		o.targets[key] = t
		delete(o.removed, key)
	}
	t.rect = rect
	t.margin = margin
	o.dirty[key] = struct{}{}
}

func (o *Observer) Unobserve(key string) {
	t, ok := o.targets[key]
	if !ok {
		return
	}
	delete(o.targets, key)
	delete(o.dirty, key)
	if t.reported && t.ratio > 0 {
		o.removed[key] = *t
	}
}

// SetRoot moves or resizes the root. Every target is re-evaluated on the
// next flush.
func (o *Observer) SetRoot(root Rect) {
	if root == o.root {
		return
	}
	o.root = root
	for key := range o.targets {
		o.dirty[key] = struct{}{}
	}
}

func (o *Observer) Root() Rect {
	return o.root
}

func (o *Observer) Len() int {
	return len(o.targets)
}

// Flush computes pending changes and delivers them to the callback. It
// returns the number of delivered entries.
func (o *Observer) Flush() int {
	var batch []Entry
	for key, t := range o.removed {
		batch = append(batch, Entry{Key: key, Rect: t.rect, Margin: t.margin, Removed: true})
	}
	clear(o.removed)

	for key := range o.dirty {
		t := o.targets[key]
		ratio := Ratio(t.rect, o.root)
		if t.reported && ratio == t.ratio && !moved(t) {
			continue
		}
		t.ratio = ratio
		t.reported = true
		t.reportedRect = t.rect
		batch = append(batch, Entry{
			Key:          key,
			Rect:         t.rect,
			Margin:       t.margin,
			Ratio:        ratio,
			Intersecting: ratio > 0,
		})
	}
	clear(o.dirty)

	if len(batch) == 0 {
		return 0
	}
	slices.SortFunc(batch, func(a, b Entry) int {
		if a.Rect.Top != b.Rect.Top {
			return a.Rect.Top - b.Rect.Top
		}
		return strings.Compare(a.Key, b.Key)
	})
	o.callback(batch)
	return len(batch)
}

// moved reports whether an intersecting target changed geometry since it
// was last reported. Ordering of visible rows depends on it.
func moved(t *target) bool {
	return t.ratio > 0 && t.reportedRect != t.rect
}
