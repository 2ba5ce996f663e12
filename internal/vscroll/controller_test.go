package vscroll

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/window"
)

// harness lays out controller nodes the way the grid body does.
type harness struct {
	c         *Controller
	heights   map[string]int
	mounted   map[string]bool
	slices    []provider.SliceDetails
	scrollTos []ScrollToDetails
	completes int
}

func newHarness(props Props, viewport int) *harness {
	h := &harness{
		heights: make(map[string]int),
		mounted: make(map[string]bool),
	}
	props.OnSliceRequest = func(s provider.SliceDetails) {
		h.slices = append(h.slices, s)
	}
	props.OnScrollToComplete = func() {
		h.completes++
	}
	h.c = New(props)
	h.c.SetViewport(viewport)
	return h
}

func (h *harness) withScrollToRequests() *harness {
	props := h.c.Props()
	props.OnScrollToRequest = func(d ScrollToDetails) {
		h.scrollTos = append(h.scrollTos, d)
	}
	h.c.SetProps(props)
	return h
}

func keys(prefix string, from, to int) []string {
	var out []string
	for i := from; i < to; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

// data sets a result set of keys whose indices start at start.
func (h *harness) data(start, total int, keys ...string) {
	entries := make([]Entry, len(keys))
	for i, k := range keys {
		entries[i] = Entry{Key: k, Index: start + i}
	}
	h.c.SetData(entries,
		provider.SizeDetails{Start: start, DataLength: len(keys), TotalLength: total},
		provider.SliceDetails{Start: start, Count: len(keys)},
	)
}

func (h *harness) layout() {
	top := 0
	seen := make(map[string]bool)
	for _, n := range h.c.Nodes() {
		height := n.Height
		if !n.Margin() {
			height = 1
			if v, ok := h.heights[n.Key]; ok {
				height = v
			}
		}
		g := Geometry{Top: top, Height: height}
		if h.mounted[n.Key] {
			h.c.OnUpdate(n.Key, g)
		} else {
			h.c.OnMount(n.Key, g)
		}
		seen[n.Key] = true
		top += height
	}
	for key := range h.mounted {
		if !seen[key] {
			h.c.OnUnmount(key)
		}
	}
	h.mounted = seen
}

func (h *harness) render() int {
	h.layout()
	top := h.c.CorrectScroll()
	h.c.Flush()
	return top
}

func (h *harness) scroll(top int) {
	h.c.SetScrollTop(top)
	h.c.Flush()
}

func snapshot(m *window.Map) map[string]window.Details {
	out := make(map[string]window.Details)
	for k, d := range m.All() {
		out[k] = *d
	}
	return out
}

func TestFirstRenderSettlesAddFlags(t *testing.T) {
	t.Parallel()

	h := newHarness(Props{}, 10)
	h.data(0, 3, "a", "b", "c")
	for _, d := range snapshot(h.c.Window()) {
		require.True(t, d.Add)
	}

	require.Equal(t, 0, h.render())
	require.Equal(t, []string{"a", "b", "c"}, h.c.Window().Keys())
	for key, d := range snapshot(h.c.Window()) {
		require.False(t, d.Add, key)
		require.False(t, d.Remove, key)
	}
}

func TestFirstRenderScrollsPastTopMargin(t *testing.T) {
	t.Parallel()

	h := newHarness(Props{}, 3)
	h.data(5, 20, "r5", "r6", "r7")
	require.Equal(t, []string{"margin:top:5", "r5", "r6", "r7", "margin:bottom:8"}, h.c.Window().Keys())
	require.Equal(t, 5, h.render())
	require.Equal(t, []string{"r5", "r6", "r7"}, h.c.Visibility().Keys)
}

func TestReconcileIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(Props{}, 3)
	h.data(0, 5, "a", "b", "c", "d", "e")
	h.render()
	before := snapshot(h.c.Window())

	h.data(0, 5, "a", "b", "c", "d", "e")
	require.Equal(t, before, snapshot(h.c.Window()))
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, h.c.Window().Keys())
}

func TestReconcileRemoveAndAppend(t *testing.T) {
	t.Parallel()

	h := newHarness(Props{}, 10)
	h.heights["b"] = 2
	h.data(0, 5, "a", "b", "c", "d", "e")
	h.render()

	h.data(0, 5, "a", "c", "d", "e", "f")
	require.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, h.c.Window().Keys())

	b, ok := h.c.Details("b")
	require.True(t, ok)
	require.True(t, b.Remove)
	require.Equal(t, 2, b.Height)

	f, ok := h.c.Details("f")
	require.True(t, ok)
	require.True(t, f.Add)
	require.Equal(t, 4, f.Index)

	for _, key := range []string{"a", "c", "d", "e"} {
		d, _ := h.c.Details(key)
		require.False(t, d.Add, key)
		require.False(t, d.Remove, key)
	}
	c, _ := h.c.Details("c")
	require.Equal(t, 1, c.Index)

	h.render()
	require.False(t, h.c.Window().Has("b"))
}

func TestReconcileFullChurn(t *testing.T) {
	t.Parallel()

	h := newHarness(Props{}, 10)
	h.data(0, 3, "a", "b", "c")
	h.render()
	h.data(0, 3, "x", "y", "z")

	fresh := newHarness(Props{}, 10)
	fresh.data(0, 3, "x", "y", "z")

	require.Equal(t, snapshot(fresh.c.Window()), snapshot(h.c.Window()))
	require.Equal(t, []string{"x", "y", "z"}, h.c.Window().Keys())
	for _, d := range snapshot(h.c.Window()) {
		require.True(t, d.Add)
		require.False(t, d.Remove)
	}
}

func TestReconcileMovedKeysAreNotDuplicated(t *testing.T) {
	t.Parallel()

	h := newHarness(Props{}, 10)
	h.data(0, 4, "a", "b", "c", "d")
	h.render()

	h.data(0, 4, "d", "c", "b", "a")
	require.Equal(t, []string{"d", "c", "b", "a"}, h.c.Window().Keys())
	for key, d := range snapshot(h.c.Window()) {
		require.False(t, d.Add, key)
		require.False(t, d.Remove, key)
	}
	a, _ := h.c.Details("a")
	require.Equal(t, 3, a.Index)
}

func TestReconcileRestoresRemovedKey(t *testing.T) {
	t.Parallel()

	h := newHarness(Props{}, 10)
	h.data(0, 3, "a", "b", "c")
	h.render()

	h.data(0, 2, "a", "c")
	b, _ := h.c.Details("b")
	require.True(t, b.Remove)

	h.data(0, 3, "a", "b", "c")
	b, _ = h.c.Details("b")
	require.False(t, b.Remove)
	require.False(t, b.Add)
	require.Equal(t, []string{"a", "b", "c"}, h.c.Window().Keys())
}

func TestScrollCompensation(t *testing.T) {
	t.Parallel()

	t.Run("insertion above the first visible row", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 2)
		h.data(0, 5, "a", "b", "c", "d", "e")
		h.render()
		h.scroll(2)
		require.Equal(t, "c", h.c.Visibility().Keys[0])

		h.heights["x"] = 3
		h.data(0, 6, "a", "x", "b", "c", "d", "e")
		require.Equal(t, 5, h.render())
		require.Equal(t, "c", h.c.Visibility().Keys[0])
	})

	t.Run("removal above the first visible row", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 2)
		h.heights["b"] = 2
		h.data(0, 5, "a", "b", "c", "d", "e")
		h.render()
		h.scroll(3)
		require.Equal(t, "c", h.c.Visibility().Keys[0])

		h.data(0, 4, "a", "c", "d", "e")
		require.Equal(t, 1, h.render())
		require.Equal(t, "c", h.c.Visibility().Keys[0])
	})

	t.Run("visible row removed while rows are inserted above", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 2)
		h.data(0, 5, "a", "b", "c", "d", "e")
		h.render()
		h.scroll(2)
		require.Equal(t, []string{"c", "d"}, h.c.Visibility().Keys)

		h.heights["x"] = 3
		h.data(0, 5, "a", "x", "b", "d", "e")
		require.Equal(t, []string{"a", "x", "b", "c", "d", "e"}, h.c.Window().Keys())

		require.Equal(t, 5, h.render())
		require.Equal(t, "d", h.c.Visibility().Keys[0], "the next row takes the removed row's place")
		b, ok := h.c.Geometry("b")
		require.True(t, ok)
		require.Equal(t, h.c.ScrollTop()-1, b.Top, "rows above stay just above the fold")
		require.False(t, h.c.Window().Has("c"))
	})

	t.Run("changes below the fold do not move the viewport", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 2)
		h.data(0, 6, "a", "b", "c", "d", "e", "f")
		h.render()
		h.scroll(1)

		h.heights["x"] = 4
		h.data(0, 6, "a", "b", "c", "x", "e", "f")
		require.Equal(t, 1, h.render())
	})

	t.Run("height change above the fold", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 2)
		h.data(0, 4, "a", "b", "c", "d")
		h.render()
		h.scroll(2)

		h.heights["a"] = 3
		require.Equal(t, 4, h.render())
		require.Equal(t, "c", h.c.Visibility().Keys[0])
	})

	t.Run("margins take part in compensation", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 5)
		h.data(20, 100, keys("r", 20, 40)...)
		require.Equal(t, 20, h.render())
		h.scroll(25)
		require.Equal(t, "r25", h.c.Visibility().Keys[0])

		h.data(10, 100, keys("r", 10, 40)...)
		require.Equal(t, []string{"margin:top:20", "margin:top:10"}, h.c.Window().Keys()[:2])
		require.Equal(t, 25, h.render())
		require.Equal(t, "r25", h.c.Visibility().Keys[0])
		require.False(t, h.c.Window().Has("margin:top:20"))
	})
}

func TestSlicePlanning(t *testing.T) {
	t.Parallel()

	t.Run("window within drift is not requested", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{BufferRows: 10, RowDrift: 5}, 30)
		h.data(100, 1000, keys("r", 100, 150)...)
		require.Equal(t, 100, h.render())

		h.scroll(110)
		require.Equal(t, "r110", h.c.Visibility().Keys[0])
		require.Equal(t, 30, h.c.EstimatedRowCount())
		h.c.Plan()
		require.Empty(t, h.slices)

		h.scroll(112)
		h.c.Plan()
		require.Empty(t, h.slices)

		h.scroll(116)
		h.c.Plan()
		require.Equal(t, []provider.SliceDetails{{Start: 106, Count: 50}}, h.slices)

		h.c.Plan()
		require.Len(t, h.slices, 1, "same window is requested once")
	})

	t.Run("boundary windows bypass drift", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{BufferRows: 10, RowDrift: 5}, 20)
		h.data(0, 100, keys("r", 0, 33)...)
		h.render()
		h.scroll(2)
		h.c.Plan()
		require.Equal(t, []provider.SliceDetails{{Start: 0, Count: 32}}, h.slices)
	})

	t.Run("window is clamped to the total", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{BufferRows: 10, RowDrift: 5}, 10)
		h.data(60, 80, keys("r", 60, 80)...)
		h.render()
		h.scroll(75)
		h.c.Plan()
		require.Equal(t, 70, h.c.ScrollTop())
		require.Equal(t, provider.SliceDetails{Start: 60, Count: 20}, h.c.proposeSlice(70))
		require.Empty(t, h.slices)
	})
}

func TestOutOfBounds(t *testing.T) {
	t.Parallel()

	t.Run("empty visibility issues a scroll-to request", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 10).withScrollToRequests()
		h.data(0, 1000, keys("r", 0, 20)...)
		h.render()

		h.scroll(500)
		require.True(t, h.c.Visibility().Empty())
		require.Equal(t, 500, h.c.Visibility().ScrollTop)
		h.c.Plan()
		require.Equal(t, []ScrollToDetails{{Index: 500}}, h.scrollTos)
		require.Empty(t, h.slices)
	})

	t.Run("scroll-to degrades to a bracketing slice and resolves", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 10)
		h.data(0, 1000, keys("r", 0, 20)...)
		h.render()

		h.scroll(500)
		h.c.Plan()
		require.Equal(t, []provider.SliceDetails{{Start: 490, Count: 30}}, h.slices)
		require.Equal(t, &ScrollToDetails{Index: 500}, h.c.Pending())

		h.data(490, 1000, keys("r", 490, 520)...)
		require.Equal(t, 500, h.render())
		require.Nil(t, h.c.Pending())
		require.Equal(t, 1, h.completes)
		require.Equal(t, "r500", h.c.Visibility().Keys[0])
	})

	t.Run("top margin in view", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 10).withScrollToRequests()
		h.data(200, 1000, keys("r", 200, 250)...)
		require.Equal(t, 200, h.render())

		h.scroll(195)
		require.True(t, h.c.Visibility().MarginVisible())
		h.c.Plan()
		require.Equal(t, []ScrollToDetails{{Index: 195}}, h.scrollTos)
	})
}

func TestRequestScrollTo(t *testing.T) {
	t.Parallel()

	t.Run("loaded row scrolls immediately", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 5)
		h.data(0, 20, keys("r", 0, 20)...)
		h.render()

		require.True(t, h.c.RequestScrollTo(7))
		require.Equal(t, 7, h.c.ScrollTop())
		require.Equal(t, 1, h.completes)
		require.Nil(t, h.c.Pending())
		require.Empty(t, h.slices)
	})

	t.Run("index is clamped", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 5)
		h.data(0, 20, keys("r", 0, 20)...)
		h.render()

		require.True(t, h.c.RequestScrollTo(99))
		require.Equal(t, 15, h.c.ScrollTop())
	})

	t.Run("scroll-to prop before any data", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{ScrollTo: &ScrollToDetails{Index: 50}}, 10)
		require.Equal(t, &ScrollToDetails{Index: 50}, h.c.Pending())
		require.Empty(t, h.slices)

		h.data(0, 100, keys("r", 0, 20)...)
		require.Equal(t, []provider.SliceDetails{{Start: 40, Count: 30}}, h.slices)
		require.Equal(t, 0, h.render())
		h.c.Plan()
		require.Len(t, h.slices, 1, "the bracketing slice is requested once")
		require.NotNil(t, h.c.Pending())

		h.data(40, 100, keys("r", 40, 70)...)
		require.Equal(t, 50, h.render())
		require.Nil(t, h.c.Pending())
		require.Equal(t, 1, h.completes)
		require.Equal(t, "r50", h.c.Visibility().Keys[0])
	})

	t.Run("scroll-to beyond the first result set is clamped", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{ScrollTo: &ScrollToDetails{Index: 500}}, 5)
		h.data(0, 20, keys("r", 0, 20)...)
		require.Equal(t, &ScrollToDetails{Index: 19}, h.c.Pending())
		require.Empty(t, h.slices)
		require.Equal(t, 15, h.render())
		require.Equal(t, 1, h.completes)
	})

	t.Run("scroll-to prop", func(t *testing.T) {
		t.Parallel()
		h := newHarness(Props{}, 5)
		h.data(0, 100, keys("r", 0, 20)...)
		h.render()

		props := h.c.Props()
		props.ScrollTo = &ScrollToDetails{Index: 60}
		h.c.SetProps(props)
		require.Equal(t, []provider.SliceDetails{{Start: 50, Count: 25}}, h.slices)
		require.NotNil(t, h.c.Pending())
	})
}

func TestEstimates(t *testing.T) {
	t.Parallel()

	h := newHarness(Props{EstimatedRowHeight: 2}, 12)
	require.Equal(t, 2, h.c.EstimatedRowHeight())

	h.heights["b"] = 3
	h.data(0, 10, "a", "b")
	require.Equal(t, []Node{
		{Key: "a", Index: 0, Kind: KindRow},
		{Key: "b", Index: 1, Kind: KindRow},
		{Key: "margin:bottom:2", Index: 2, Kind: KindMarginBottom, Height: 16},
	}, h.c.Nodes())

	h.render()
	require.Equal(t, 2, h.c.EstimatedRowHeight())
	require.True(t, h.c.Visibility().MarginVisible())
	require.Equal(t, 6, h.c.EstimatedRowCount())
}

func BenchmarkReconcileScroll(b *testing.B) {
	h := newHarness(Props{}, 40)
	for i := range b.N {
		start := (i * 7) % 900
		h.data(start, 1000, keys("r", start, start+100)...)
		h.render()
	}
}
