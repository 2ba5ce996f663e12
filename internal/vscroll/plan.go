package vscroll

import (
	"log/slog"
	"math"

	"github.com/tujuhre12/dgrid/internal/provider"
)

// EstimatedRowHeight is the mean measured height of the rendered rows, or
// the configured estimate when nothing has been measured yet.
func (c *Controller) EstimatedRowHeight() int {
	total, n := 0, 0
	for _, node := range c.nodes {
		if node.Margin() {
			continue
		}
		if g, ok := c.geometry[node.Key]; ok && g.Height > 0 {
			total += g.Height
			n++
		}
	}
	if n == 0 {
		return c.props.EstimatedRowHeight
	}
	return max(1, int(math.Round(float64(total)/float64(n))))
}

// EstimatedRowCount is the number of rows that fit the viewport. With no
// margin in view the visible rows are counted exactly.
func (c *Controller) EstimatedRowCount() int {
	if !c.visible.Empty() && !c.visible.MarginVisible() {
		return len(c.visible.Keys)
	}
	return max(1, c.viewport/c.EstimatedRowHeight())
}

// Plan decides whether the current viewport needs a different slice. It is
// meant to run, debounced, after visibility changes.
func (c *Controller) Plan() {
	if c.size.TotalLength == 0 {
		return
	}
	if c.pending != nil {
		c.requestSlice(c.proposeSlice(c.pending.Index), true)
		return
	}

	index, ok := c.firstVisibleIndex()
	if !ok || c.visible.MarginVisible() {
		estimate := c.estimateIndex()
		if !c.loaded(estimate) {
			c.requestScrollTo(estimate)
			return
		}
		if !ok {
			index = estimate
		}
	}
	c.planSlice(index)
}

func (c *Controller) firstVisibleIndex() (int, bool) {
	if c.visible.Empty() {
		return 0, false
	}
	d, ok := c.window.Get(c.visible.Keys[0])
	if !ok {
		return 0, false
	}
	return d.Index, true
}

// estimateIndex converts the scroll offset to a logical index. Inside a
// margin the offset into the margin is divided by the estimated row height;
// elsewhere the last visible anchor row is used as the origin.
func (c *Controller) estimateIndex() int {
	estimate := c.EstimatedRowHeight()
	index := c.scrollTop / estimate
	found := false
	for _, n := range c.nodes {
		if !n.Margin() {
			continue
		}
		g, ok := c.geometry[n.Key]
		if !ok || c.scrollTop < g.Top || c.scrollTop >= g.Top+g.Height {
			continue
		}
		offset := (c.scrollTop - g.Top) / estimate
		if n.Kind == KindMarginTop {
			index = offset
		} else {
			index = n.Index + offset
		}
		found = true
		break
	}
	if !found && c.anchor.ok {
		top := c.anchor.top
		if g, ok := c.geometry[c.anchor.key]; ok {
			top = g.Top
		}
		index = c.anchor.index + floorDiv(c.scrollTop-top, estimate)
	}
	return min(max(index, 0), max(c.size.TotalLength-1, 0))
}

func (c *Controller) loaded(index int) bool {
	key, ok := c.byIndex[index]
	if !ok {
		return false
	}
	_, ok = c.geometry[key]
	return ok
}

func (c *Controller) planSlice(index int) {
	c.requestSlice(c.proposeSlice(index), false)
}

// proposeSlice returns the window around a first visible index.
func (c *Controller) proposeSlice(index int) provider.SliceDetails {
	buffer := c.props.BufferRows
	total := c.size.TotalLength
	start := max(0, index-buffer)
	count := min(index, buffer) + c.EstimatedRowCount() + buffer
	if start+count > total {
		count = max(0, total-start)
	}
	return provider.SliceDetails{Start: start, Count: count}
}

// requestSlice emits a slice request unless it matches the loaded or the
// already requested window. Unless forced, a window that moved less than the
// drift threshold and touches neither boundary is ignored.
func (c *Controller) requestSlice(s provider.SliceDetails, force bool) bool {
	if s == c.slice || (c.requested != nil && *c.requested == s) {
		return false
	}
	if !force {
		boundary := s.Start == 0 || s.End() == c.size.TotalLength
		drift := c.props.RowDrift
		if !boundary && abs(s.Start-c.slice.Start) < drift && abs(s.Count-c.slice.Count) < drift {
			return false
		}
	}
	c.requested = &s
	slog.Debug("Requesting slice", "start", s.Start, "count", s.Count, "total", c.size.TotalLength)
	if c.props.OnSliceRequest != nil {
		c.props.OnSliceRequest(s)
	}
	return true
}

func (c *Controller) requestScrollTo(index int) {
	slog.Debug("Scrolled out of bounds", "scroll_top", c.scrollTop, "index", index)
	if c.props.OnScrollToRequest != nil {
		c.props.OnScrollToRequest(ScrollToDetails{Index: index})
		return
	}
	c.RequestScrollTo(index)
}

// RequestScrollTo brings index into view. It returns true when the row is
// already laid out and the viewport moved to it. Otherwise the request stays
// pending and a slice bracketing the index is requested. Before the first
// result set arrives the request is only recorded.
func (c *Controller) RequestScrollTo(index int) bool {
	c.pending = &ScrollToDetails{Index: max(index, 0)}
	if c.size.TotalLength == 0 {
		return false
	}
	c.pending.Index = min(c.pending.Index, c.size.TotalLength-1)
	if c.resolvePending() {
		return true
	}
	c.requestSlice(c.proposeSlice(c.pending.Index), true)
	return false
}

// replanPending clamps a pending request to a new result set and asks for
// a bracketing slice when its row is not part of it.
func (c *Controller) replanPending() {
	if c.pending == nil || c.size.TotalLength == 0 {
		return
	}
	c.pending.Index = min(c.pending.Index, c.size.TotalLength-1)
	if _, ok := c.byIndex[c.pending.Index]; ok {
		return
	}
	c.requestSlice(c.proposeSlice(c.pending.Index), true)
}

func (c *Controller) resolvePending() bool {
	if c.pending == nil {
		return false
	}
	key, ok := c.byIndex[c.pending.Index]
	if !ok {
		return false
	}
	g, ok := c.geometry[key]
	if !ok {
		return false
	}
	c.pending = nil
	c.props.ScrollTo = nil
	c.scrollTop = g.Top
	c.clamp()
	c.tracker.SetRoot(c.scrollTop, c.viewport)
	if c.props.OnScrollToComplete != nil {
		c.props.OnScrollToComplete()
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
