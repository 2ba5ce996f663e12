package grid

import (
	"image/color"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/tujuhre12/dgrid/internal/csync"
	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/tracker"
	"github.com/tujuhre12/dgrid/internal/tui/styles"
	"github.com/tujuhre12/dgrid/internal/vscroll"
)

const (
	planDelay        = 16 * time.Millisecond
	wheelScrollLines = 3
)

var nextID atomic.Int64

type planMsg struct {
	body int64
	seq  int
}

// itemPosition is the laid out line range of one node. end is inclusive.
type itemPosition struct {
	key    string
	index  int
	kind   vscroll.Kind
	height int
	start  int
	end    int
}

type cachedView struct {
	hash uint64
	view string
}

// Body renders the rows of the current window. Only rows overlapping the
// viewport are drawn; unloaded regions are drawn as placeholder lines.
type Body[T any] struct {
	id    int64
	ctrl  *vscroll.Controller
	rows  rowRenderer[T]
	paged bool
	// base is the index of the first row of the page in paged mode.
	base int

	width, height int

	items map[string]provider.Item[T]
	// Virtual scrolling fields, one position per node in render order.
	itemPositions []itemPosition
	virtualHeight int
	mounted       map[string]bool
	viewCache     *csync.Map[string, cachedView]

	cursor     int
	focusedCol int
	planSeq    int
	rendered   string
}

func NewBody[T any](props vscroll.Props, columns []Column[T], reg Registry[T], field func(T, string) any) *Body[T] {
	if field == nil {
		field = func(v T, name string) any { return provider.Field(v, name) }
	}
	return &Body[T]{
		id:   nextID.Add(1),
		ctrl: vscroll.New(props),
		rows: rowRenderer[T]{
			registry: reg.withDefaults(),
			columns:  columns,
			field:    field,
		},
		items:     make(map[string]provider.Item[T]),
		mounted:   make(map[string]bool),
		viewCache: csync.NewMap[string, cachedView](),
	}
}

func (b *Body[T]) Controller() *vscroll.Controller {
	return b.ctrl
}

func (b *Body[T]) SetProps(props vscroll.Props) {
	b.ctrl.SetProps(props)
}

// SetPaged switches to page mode: the loaded page is the whole scroll range
// and no slices are planned.
func (b *Body[T]) SetPaged(paged bool) {
	b.paged = paged
}

// SetTree enables the expansion column prefix.
func (b *Body[T]) SetTree(tree bool) tea.Cmd {
	b.rows.tree = tree
	return b.layout()
}

func (b *Body[T]) SetColumns(columns []Column[T]) tea.Cmd {
	b.rows.columns = columns
	b.focusedCol = min(b.focusedCol, max(len(columns)-1, 0))
	return b.layout()
}

func (b *Body[T]) Columns() []Column[T] {
	return b.rows.columns
}

func (b *Body[T]) SetSize(width, height int) tea.Cmd {
	b.width, b.height = width, max(height, 0)
	b.rows.width = width
	b.ctrl.SetViewport(b.height)
	return b.layout()
}

func (b *Body[T]) GetSize() (int, int) {
	return b.width, b.height
}

// Reset forgets the window and moves the cursor to the top.
func (b *Body[T]) Reset() {
	b.ctrl.Reset()
	b.cursor = 0
}

// SetResult lays out a new result set.
func (b *Body[T]) SetResult(rs provider.ResultSet[T]) tea.Cmd {
	clear(b.items)
	for _, item := range rs.Items {
		b.items[item.ID] = item
	}

	entries := vscroll.EntriesOf(rs.Items)
	size, slice := rs.Size, rs.Slice
	if b.paged {
		b.base = size.Start
		for i := range entries {
			entries[i].Index -= b.base
		}
		n := len(entries)
		size = provider.SizeDetails{DataLength: n, TotalLength: n}
		slice = provider.SliceDetails{Count: n}
	} else {
		b.base = 0
	}
	b.ctrl.SetData(entries, size, slice)
	b.cursor = min(b.cursor, max(size.TotalLength-1, 0))
	return b.layout()
}

func (b *Body[T]) total() int {
	return b.ctrl.Size().TotalLength
}

// layout measures every node, reports geometry to the controller and
// applies its scroll correction.
func (b *Body[T]) layout() tea.Cmd {
	b.calculateItemPositions()
	b.ctrl.CorrectScroll()
	return b.afterScroll()
}

func (b *Body[T]) calculateItemPositions() {
	nodes := b.ctrl.Nodes()
	b.itemPositions = b.itemPositions[:0]
	seen := make(map[string]bool, len(nodes))
	top := 0
	for _, n := range nodes {
		height := n.Height
		if !n.Margin() {
			height = lipgloss.Height(b.rowView(n.Key, n.Index))
		}
		g := vscroll.Geometry{Top: top, Height: height}
		if b.mounted[n.Key] {
			b.ctrl.OnUpdate(n.Key, g)
		} else {
			b.ctrl.OnMount(n.Key, g)
		}
		seen[n.Key] = true
		b.itemPositions = append(b.itemPositions, itemPosition{
			key:    n.Key,
			index:  n.Index,
			kind:   n.Kind,
			height: height,
			start:  top,
			end:    top + height - 1,
		})
		top += height
	}
	b.virtualHeight = top
	for key := range b.mounted {
		if !seen[key] {
			b.ctrl.OnUnmount(key)
			b.viewCache.Del(key)
		}
	}
	b.mounted = seen
}

// afterScroll delivers visibility changes, redraws and schedules a plan when
// the visible rows changed.
func (b *Body[T]) afterScroll() tea.Cmd {
	changed := b.ctrl.Flush()
	b.renderVirtualScrolling()
	if !changed || b.paged {
		return nil
	}
	b.planSeq++
	msg := planMsg{body: b.id, seq: b.planSeq}
	return tea.Tick(planDelay, func(time.Time) tea.Msg {
		return msg
	})
}

func (b *Body[T]) rowView(key string, index int) string {
	item, ok := b.items[key]
	if !ok {
		return ""
	}
	state := RowState{
		Selected: index == b.cursor,
		Alt:      item.Index%2 == 1,
		Width:    b.width,
	}
	content := b.rows.content(item, state, b.focusedCol)
	if cached, ok := b.viewCache.Get(key); ok && cached.hash == content.hash {
		return cached.view
	}
	view := b.rows.render(item, content, state, b.focusedCol)
	b.viewCache.Set(key, cachedView{hash: content.hash, view: view})
	return view
}

// viewPosition is the inclusive line range of the viewport in the virtual
// space.
func (b *Body[T]) viewPosition() (int, int) {
	start := b.ctrl.ScrollTop()
	end := start + b.height - 1
	if b.virtualHeight > 0 {
		end = min(end, b.virtualHeight-1)
	}
	return start, end
}

// renderVirtualScrolling draws the lines of the nodes overlapping the
// viewport. Margins are drawn as placeholder lines.
func (b *Body[T]) renderVirtualScrolling() {
	if b.height <= 0 || b.width <= 0 {
		b.rendered = ""
		return
	}
	viewStart, viewEnd := b.viewPosition()
	placeholder := styles.CurrentTheme().S().Placeholder

	lines := make([]string, 0, b.height)
	for _, pos := range b.itemPositions {
		if pos.height <= 0 || pos.end < viewStart {
			continue
		}
		if pos.start > viewEnd {
			break
		}
		from := max(pos.start, viewStart)
		to := min(pos.end, viewEnd)
		if pos.kind != vscroll.KindRow {
			for range to - from + 1 {
				lines = append(lines, placeholder.Render("·"))
			}
			continue
		}
		itemLines := strings.Split(b.rowView(pos.key, pos.index), "\n")
		for i := from - pos.start; i < len(itemLines) && i <= to-pos.start; i++ {
			lines = append(lines, itemLines[i])
		}
	}
	for len(lines) < b.height {
		lines = append(lines, "")
	}
	b.rendered = strings.Join(lines[:b.height], "\n")
}

func (b *Body[T]) View() string {
	return b.draw(styles.CurrentTheme().S().Selection)
}

// draw paints the rendered lines into a cell buffer and gives the cells of
// the cursor row the selection background.
func (b *Body[T]) draw(selection color.Color) string {
	if b.height <= 0 || b.width <= 0 {
		return ""
	}
	area := uv.Rect(0, 0, b.width, b.height)
	scr := uv.NewScreenBuffer(area.Dx(), area.Dy())
	uv.NewStyledString(b.rendered).Draw(scr, area)

	if from, to, ok := b.cursorLines(); ok && selection != nil {
		for y := from; y <= to; y++ {
			for x := range scr.Width() {
				cell := scr.CellAt(x, y)
				if cell == nil {
					continue
				}
				cell = cell.Clone()
				cell.Style = cell.Style.Background(selection)
				scr.SetCell(x, y, cell)
			}
		}
	}
	return strings.ReplaceAll(scr.Render(), "\r\n", "\n")
}

// cursorLines returns the viewport lines covered by the cursor row.
func (b *Body[T]) cursorLines() (int, int, bool) {
	viewStart, viewEnd := b.viewPosition()
	for _, pos := range b.itemPositions {
		if pos.kind != vscroll.KindRow || pos.index != b.cursor || pos.height <= 0 {
			continue
		}
		if pos.end < viewStart || pos.start > viewEnd {
			return 0, 0, false
		}
		return max(pos.start, viewStart) - viewStart, min(pos.end, viewEnd) - viewStart, true
	}
	return 0, 0, false
}

func (b *Body[T]) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case planMsg:
		if msg.body != b.id || msg.seq != b.planSeq {
			return nil
		}
		before := b.ctrl.ScrollTop()
		b.ctrl.Plan()
		if b.ctrl.ScrollTop() != before {
			return b.afterScroll()
		}
	case tea.MouseWheelMsg:
		switch msg.Button {
		case tea.MouseWheelDown:
			return b.ScrollBy(wheelScrollLines)
		case tea.MouseWheelUp:
			return b.ScrollBy(-wheelScrollLines)
		}
	}
	return nil
}

func (b *Body[T]) ScrollBy(lines int) tea.Cmd {
	if !b.ctrl.ScrollBy(lines) {
		return nil
	}
	return b.afterScroll()
}

// Cursor returns the index of the focused row in the full result set.
func (b *Body[T]) Cursor() int {
	return b.base + b.cursor
}

// SelectedItem returns the focused row if it is loaded.
func (b *Body[T]) SelectedItem() (provider.Item[T], bool) {
	key, ok := b.ctrl.KeyAt(b.cursor)
	if !ok {
		return provider.Item[T]{}, false
	}
	item, ok := b.items[key]
	return item, ok
}

func (b *Body[T]) MoveCursor(delta int) tea.Cmd {
	return b.SetCursor(b.cursor + delta)
}

// SetCursor focuses a row by its index in the scroll range and scrolls it
// into view.
func (b *Body[T]) SetCursor(index int) tea.Cmd {
	total := b.total()
	if total == 0 {
		return nil
	}
	b.cursor = min(max(index, 0), total-1)
	return tea.Batch(b.layout(), b.ensureCursorVisible())
}

// ScrollTo focuses an index of the full result set.
func (b *Body[T]) ScrollTo(index int) tea.Cmd {
	return b.SetCursor(index - b.base)
}

func (b *Body[T]) CursorTop() tea.Cmd {
	return b.SetCursor(0)
}

func (b *Body[T]) CursorBottom() tea.Cmd {
	return b.SetCursor(b.total() - 1)
}

// PageRows is the number of rows a page movement skips.
func (b *Body[T]) PageRows() int {
	return max(b.ctrl.EstimatedRowCount(), 1)
}

func (b *Body[T]) ensureCursorVisible() tea.Cmd {
	key, ok := b.ctrl.KeyAt(b.cursor)
	if ok {
		if g, ok := b.ctrl.Geometry(key); ok {
			top := b.ctrl.ScrollTop()
			switch {
			case g.Top < top:
				b.ctrl.SetScrollTop(g.Top)
			case g.Top+g.Height > top+b.height:
				b.ctrl.SetScrollTop(g.Top + g.Height - b.height)
			default:
				return nil
			}
			return b.afterScroll()
		}
	}
	b.ctrl.RequestScrollTo(b.cursor)
	return b.afterScroll()
}

func (b *Body[T]) FocusColumn(delta int) tea.Cmd {
	n := len(b.rows.columns)
	if n == 0 {
		return nil
	}
	b.focusedCol = (b.focusedCol + delta + n) % n
	return b.layout()
}

func (b *Body[T]) FocusedColumn() int {
	return b.focusedCol
}

// RequestSort resets the window and forwards the sort to the provider.
func (b *Body[T]) RequestSort(d provider.SortDetails) {
	b.ctrl.RequestSort(d)
}

// VisibleRange returns the indices of the first and last rows overlapping
// the viewport.
func (b *Body[T]) VisibleRange() (first, last int, ok bool) {
	els := make([]tracker.Element, 0, len(b.itemPositions))
	for _, p := range b.itemPositions {
		els = append(els, tracker.Element{
			Key:    p.key,
			Rect:   tracker.Rect{Top: p.start, Height: p.height},
			Margin: p.kind != vscroll.KindRow,
		})
	}
	keys := tracker.Visible(b.ctrl.ScrollTop(), b.height, els)
	if len(keys) == 0 {
		return 0, 0, false
	}
	firstItem, ok1 := b.items[keys[0]]
	lastItem, ok2 := b.items[keys[len(keys)-1]]
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return firstItem.Index, lastItem.Index, true
}
