// Package vscroll reconciles successive result sets against the rendered
// window, keeps the scroll position steady while rows above the fold come
// and go, and plans slice requests as the viewport moves.
package vscroll

import (
	"log/slog"

	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/tracker"
	"github.com/tujuhre12/dgrid/internal/window"
)

type anchor struct {
	key   string
	index int
	top   int
	ok    bool
}

// Controller owns the window map and all geometry bookkeeping. It never
// touches provider state; it only issues requests through Props callbacks.
type Controller struct {
	props Props

	window   *window.Map
	geometry map[string]Geometry
	nodes    []Node
	byIndex  map[int]string

	size  provider.SizeDetails
	slice provider.SliceDetails

	tracker *tracker.Tracker
	visible tracker.Visibility
	anchor  anchor

	scrollTop int
	viewport  int

	requested *provider.SliceDetails
	pending   *ScrollToDetails
}

var _ LifecycleObserver = (*Controller)(nil)

func New(props Props) *Controller {
	c := &Controller{
		window:   window.New(),
		geometry: make(map[string]Geometry),
		byIndex:  make(map[int]string),
	}
	c.tracker = tracker.New(c.onVisibility)
	c.SetProps(props)
	return c
}

// SetProps replaces the props. A new ScrollTo request is started right away.
func (c *Controller) SetProps(props Props) {
	props = props.withDefaults()
	scrollTo := props.ScrollTo
	if c.props.ScrollTo != nil && scrollTo != nil && *c.props.ScrollTo == *scrollTo {
		scrollTo = nil
	}
	c.props = props
	if scrollTo != nil {
		c.RequestScrollTo(scrollTo.Index)
	}
}

func (c *Controller) Props() Props {
	return c.props
}

// SetData reconciles a new result set against the window map and returns
// the nodes to lay out, margins included.
func (c *Controller) SetData(entries []Entry, size provider.SizeDetails, slice provider.SliceDetails) []Node {
	c.size = size
	c.slice = slice
	c.requested = nil

	estimate := c.EstimatedRowHeight()
	start := size.Start
	end := start + len(entries)

	current := make([]Node, 0, len(entries)+2)
	if start > 0 {
		current = append(current, Node{
			Key:    marginTopKey(start),
			Kind:   KindMarginTop,
			Height: start * estimate,
		})
	}
	clear(c.byIndex)
	for _, e := range entries {
		current = append(current, Node{Key: e.Key, Index: e.Index, Kind: KindRow})
		c.byIndex[e.Index] = e.Key
	}
	if end < size.TotalLength {
		current = append(current, Node{
			Key:    marginBottomKey(end),
			Index:  end,
			Kind:   KindMarginBottom,
			Height: (size.TotalLength - end) * estimate,
		})
	}

	c.reconcile(current)
	c.nodes = current
	c.replanPending()
	return current
}

// Nodes returns the nodes of the last reconciliation.
func (c *Controller) Nodes() []Node {
	return c.nodes
}

// Reset forgets the window so the next result set is laid out from scratch.
func (c *Controller) Reset() {
	c.window.Reset()
}

func (c *Controller) reconcile(current []Node) {
	previous := c.window.Keys()
	if len(previous) == 0 {
		c.fresh(current)
		return
	}

	prevPos := make(map[string]int, len(previous))
	for i, key := range previous {
		prevPos[key] = i
	}

	// Forward scan: misses accumulate into a block that is spliced in
	// before the next hit, or at the end.
	inserted := make(map[int][]Node)
	matched := make(map[string]bool, len(current))
	present := make(map[string]bool, len(current))
	var pending []Node
	cursor := 0
	for _, n := range current {
		present[n.Key] = true
		if j, ok := prevPos[n.Key]; ok && j >= cursor {
			if len(pending) > 0 {
				inserted[j] = append(inserted[j], pending...)
				pending = nil
			}
			matched[n.Key] = true
			cursor = j + 1
			continue
		}
		pending = append(pending, n)
	}
	if len(pending) > 0 {
		inserted[len(previous)] = append(inserted[len(previous)], pending...)
	}

	if len(matched) == 0 {
		slog.Debug("Window replaced", "previous", len(previous), "current", len(current))
		c.window.Reset()
		c.fresh(current)
		return
	}

	indexOf := make(map[string]int, len(current))
	for _, n := range current {
		indexOf[n.Key] = n.Index
	}

	old := c.window
	next := window.New()
	place := func(n Node) {
		if d, ok := old.Get(n.Key); ok {
			// Moved, or removed earlier and back before compensation.
			d.Remove = false
			d.Index = n.Index
			next.Set(n.Key, d)
			return
		}
		next.Set(n.Key, &window.Details{Add: true, Index: n.Index, Margin: n.Margin()})
	}

	for j, key := range previous {
		for _, n := range inserted[j] {
			place(n)
		}
		d, _ := old.Get(key)
		switch {
		case matched[key]:
			d.Remove = false
			d.Index = indexOf[key]
			next.Set(key, d)
		case present[key]:
			// Relocated through its inserted block.
		case d.Remove:
			next.Set(key, d)
		case d.Add:
			// Never folded into a correction, nothing to compensate.
		default:
			if g, ok := c.geometry[key]; ok {
				d.Height = g.Height
			}
			d.Remove = true
			next.Set(key, d)
		}
	}
	for _, n := range inserted[len(previous)] {
		place(n)
	}
	c.window = next
}

func (c *Controller) fresh(current []Node) {
	for _, n := range current {
		c.window.Set(n.Key, &window.Details{Add: true, Index: n.Index, Margin: n.Margin()})
	}
}

// OnMount records the geometry of a newly laid out element.
func (c *Controller) OnMount(key string, g Geometry) {
	c.geometry[key] = g
	c.tracker.Observe(key, tracker.Rect{Top: g.Top, Height: g.Height}, IsMarginKey(key))
}

// OnUpdate records new geometry for a kept element. A height change of an
// already folded entry is compensated on the next correction.
func (c *Controller) OnUpdate(key string, g Geometry) {
	c.geometry[key] = g
	if d, ok := c.window.Get(key); ok && !d.Add && d.Measured && d.Height != g.Height {
		d.Invalidating = true
	}
	c.tracker.Observe(key, tracker.Rect{Top: g.Top, Height: g.Height}, IsMarginKey(key))
}

func (c *Controller) OnUnmount(key string) {
	delete(c.geometry, key)
	c.tracker.Unobserve(key)
}

// Invalidate marks a kept entry whose content changed.
func (c *Controller) Invalidate(key string) {
	if d, ok := c.window.Get(key); ok && !d.Add {
		d.Invalidating = true
	}
}

// SetViewport sets the visible height in lines.
func (c *Controller) SetViewport(height int) {
	c.viewport = max(height, 0)
	c.clamp()
	c.tracker.SetRoot(c.scrollTop, c.viewport)
}

// CorrectScroll runs once per layout and returns the corrected scroll
// offset.
func (c *Controller) CorrectScroll() int {
	defer c.tracker.SetRoot(c.scrollTop, c.viewport)

	if c.window.AllAdded() {
		c.scrollTop = c.topMarginHeight()
		c.settle("")
		c.resolvePending()
		c.clamp()
		return c.scrollTop
	}
	if c.resolvePending() {
		c.settle("")
		return c.scrollTop
	}

	var first string
	if len(c.visible.Keys) > 0 {
		first = c.visible.Keys[0]
	}
	delta := c.settle(first)
	if delta != 0 {
		slog.Debug("Scroll corrected", "delta", delta, "anchor", first)
	}
	c.scrollTop += delta
	c.clamp()
	return c.scrollTop
}

// settle clears add flags of measured entries, folds invalidated heights
// and drops removed entries. Changes before the first visible key are
// returned as the scroll delta that keeps visible content in place.
func (c *Controller) settle(first string) int {
	delta := 0
	inPrefix := first != "" && c.window.Has(first)
	for key, d := range c.window.All() {
		if key == first {
			inPrefix = false
		}
		g, measured := c.geometry[key]
		switch {
		case d.Remove:
			if inPrefix {
				delta -= d.Height
			}
		case d.Add:
			if !measured {
				continue
			}
			if inPrefix {
				delta += g.Height
			}
			d.Add = false
			d.Height = g.Height
			d.Measured = true
		case d.Invalidating:
			if measured {
				if inPrefix {
					delta += g.Height - d.Height
				}
				d.Height = g.Height
				d.Measured = true
			}
			d.Invalidating = false
		case measured:
			d.Height = g.Height
			d.Measured = true
		}
	}
	c.window.DeleteFunc(func(_ string, d *window.Details) bool {
		return d.Remove
	})
	return delta
}

func (c *Controller) topMarginHeight() int {
	if len(c.nodes) == 0 || c.nodes[0].Kind != KindMarginTop {
		return 0
	}
	if g, ok := c.geometry[c.nodes[0].Key]; ok {
		return g.Height
	}
	return c.nodes[0].Height
}

// Flush delivers pending visibility changes. It reports whether the visible
// state changed, in which case a Plan is due.
func (c *Controller) Flush() bool {
	c.tracker.SetRoot(c.scrollTop, c.viewport)
	return c.tracker.Flush()
}

func (c *Controller) onVisibility(v tracker.Visibility) {
	c.visible = v
	if len(v.Keys) == 0 {
		return
	}
	key := v.Keys[0]
	d, ok := c.window.Get(key)
	if !ok {
		return
	}
	g, ok := c.geometry[key]
	if !ok {
		return
	}
	c.anchor = anchor{key: key, index: d.Index, top: g.Top, ok: true}
}

func (c *Controller) Visibility() tracker.Visibility {
	return c.visible
}

func (c *Controller) ScrollTop() int {
	return c.scrollTop
}

func (c *Controller) Viewport() int {
	return c.viewport
}

// SetScrollTop moves the viewport. It returns false when the clamped offset
// did not change.
func (c *Controller) SetScrollTop(top int) bool {
	before := c.scrollTop
	c.scrollTop = top
	c.clamp()
	c.tracker.SetRoot(c.scrollTop, c.viewport)
	return c.scrollTop != before
}

func (c *Controller) ScrollBy(delta int) bool {
	return c.SetScrollTop(c.scrollTop + delta)
}

// ContentHeight is the laid out height of all nodes.
func (c *Controller) ContentHeight() int {
	height := 0
	for _, n := range c.nodes {
		if g, ok := c.geometry[n.Key]; ok {
			height = max(height, g.Top+g.Height)
		}
	}
	return height
}

func (c *Controller) clamp() {
	maxTop := max(0, c.ContentHeight()-c.viewport)
	c.scrollTop = min(max(c.scrollTop, 0), maxTop)
}

// Geometry returns the laid out geometry of key.
func (c *Controller) Geometry(key string) (Geometry, bool) {
	g, ok := c.geometry[key]
	return g, ok
}

// Details returns the window entry of key.
func (c *Controller) Details(key string) (*window.Details, bool) {
	return c.window.Get(key)
}

// Window exposes the window map for inspection.
func (c *Controller) Window() *window.Map {
	return c.window
}

// KeyAt returns the loaded row key for a logical index.
func (c *Controller) KeyAt(index int) (string, bool) {
	key, ok := c.byIndex[index]
	return key, ok
}

func (c *Controller) Size() provider.SizeDetails {
	return c.size
}

func (c *Controller) Slice() provider.SliceDetails {
	return c.slice
}

// Pending returns the unresolved scroll-to request, if any.
func (c *Controller) Pending() *ScrollToDetails {
	return c.pending
}

// RequestSort forwards a sort request. The window is rebuilt from scratch
// when the sorted result arrives.
func (c *Controller) RequestSort(d provider.SortDetails) {
	c.Reset()
	if c.props.OnSortRequest != nil {
		c.props.OnSortRequest(d)
	}
}
