package grid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/v2/help"
	"github.com/charmbracelet/bubbles/v2/key"
	"github.com/charmbracelet/bubbles/v2/paginator"
	"github.com/charmbracelet/bubbles/v2/textinput"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/tujuhre12/dgrid/internal/provider"
	"github.com/tujuhre12/dgrid/internal/pubsub"
	"github.com/tujuhre12/dgrid/internal/tui/styles"
	"github.com/tujuhre12/dgrid/internal/vscroll"
)

type resultMsg[T any] struct {
	grid int64
	gen  int
	rs   provider.ResultSet[T]
}

type confOptions[T any] struct {
	width, height int
	columns       []Column[T]
	autoSize      bool
	registry      Registry[T]
	field         func(T, string) any
	props         vscroll.Props
	keyMap        KeyMap
	perPage       int
	tree          bool
	copyFn        func(string) error
}

type Option[T any] func(*confOptions[T])

func WithSize[T any](width, height int) Option[T] {
	return func(o *confOptions[T]) {
		o.width = width
		o.height = height
	}
}

// WithColumns sets the columns. Columns without a width are sized from the
// first result set.
func WithColumns[T any](columns ...Column[T]) Option[T] {
	return func(o *confOptions[T]) {
		o.columns = columns
	}
}

func WithRegistry[T any](reg Registry[T]) Option[T] {
	return func(o *confOptions[T]) {
		o.registry = reg
	}
}

// WithFieldFunc sets how column fields are read from items.
func WithFieldFunc[T any](fn func(T, string) any) Option[T] {
	return func(o *confOptions[T]) {
		o.field = fn
	}
}

func WithScrollProps[T any](props vscroll.Props) Option[T] {
	return func(o *confOptions[T]) {
		o.props = props
	}
}

func WithKeyMap[T any](keyMap KeyMap) Option[T] {
	return func(o *confOptions[T]) {
		o.keyMap = keyMap
	}
}

// WithPageSize switches the grid to pagination with perPage rows a page.
func WithPageSize[T any](perPage int) Option[T] {
	return func(o *confOptions[T]) {
		o.perPage = perPage
	}
}

// WithTree shows expansion markers in the first column.
func WithTree[T any]() Option[T] {
	return func(o *confOptions[T]) {
		o.tree = true
	}
}

// WithClipboard replaces the function used to copy rows.
func WithClipboard[T any](fn func(string) error) Option[T] {
	return func(o *confOptions[T]) {
		o.copyFn = fn
	}
}

// Grid is a sortable, filterable, virtually scrolled table over a provider.
type Grid[T any] struct {
	*confOptions[T]

	id       int64
	provider provider.Provider[T]
	sub      pubsub.Subscription
	mailbox  *pubsub.Mailbox[provider.ResultSet[T]]
	ctx      context.Context
	cancel   context.CancelFunc
	gen      int

	result    provider.ResultSet[T]
	hasResult bool

	body      *Body[T]
	filter    textinput.Model
	filtering bool
	help      help.Model
	paginator paginator.Model

	status    string
	statusErr bool
}

func New[T any](p provider.Provider[T], opts ...Option[T]) *Grid[T] {
	o := &confOptions[T]{
		keyMap: DefaultKeyMap(),
		copyFn: clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(o)
	}
	for _, c := range o.columns {
		if c.Width <= 0 {
			o.autoSize = true
		}
	}

	g := &Grid[T]{
		confOptions: o,
		id:          nextID.Add(1),
	}

	t := styles.CurrentTheme().S()
	g.filter = textinput.New()
	g.filter.Prompt = ""
	g.help = help.New()
	g.help.Styles = t.Help
	g.paginator = paginator.New()
	g.paginator.Type = paginator.Arabic
	g.paginator.ArabicFormat = "page %d/%d"

	props := o.props
	props.OnSliceRequest = g.onSliceRequest
	props.OnSortRequest = g.onSortRequest
	g.body = NewBody(props, o.columns, o.registry, o.field)
	g.body.SetPaged(o.perPage > 0)
	g.body.rows.tree = o.tree

	g.SetProvider(p)
	return g
}

// SetProvider rebinds the grid. The previous subscription is cancelled and
// results it already queued are ignored.
func (g *Grid[T]) SetProvider(p provider.Provider[T]) tea.Cmd {
	g.Close()
	g.provider = p
	g.gen++
	g.hasResult = false
	g.body.Reset()
	if p == nil {
		return nil
	}
	g.ctx, g.cancel = context.WithCancel(context.Background())
	g.mailbox = pubsub.NewMailbox[provider.ResultSet[T]]()
	if g.perPage > 0 {
		if err := p.Limit(provider.LimitDetails{Page: 1, PerPage: g.perPage}); err != nil {
			g.setError(err)
		}
	}
	box := g.mailbox
	g.sub = p.Observe(func(rs provider.ResultSet[T]) {
		box.Put(rs)
	})
	return g.listen()
}

// Close unsubscribes from the provider.
func (g *Grid[T]) Close() {
	if g.sub != nil {
		g.sub.Unsubscribe()
		g.sub = nil
	}
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

func (g *Grid[T]) listen() tea.Cmd {
	if g.mailbox == nil {
		return nil
	}
	ctx, box, id, gen := g.ctx, g.mailbox, g.id, g.gen
	return func() tea.Msg {
		rs, ok := box.Take(ctx)
		if !ok {
			return nil
		}
		return resultMsg[T]{grid: id, gen: gen, rs: rs}
	}
}

func (g *Grid[T]) onSliceRequest(s provider.SliceDetails) {
	if g.provider == nil {
		return
	}
	if err := g.provider.Slice(s); err != nil {
		slog.Error("Failed to request slice", "start", s.Start, "count", s.Count, "error", err)
		g.setError(err)
	}
}

func (g *Grid[T]) onSortRequest(d provider.SortDetails) {
	if g.provider == nil {
		return
	}
	if err := g.provider.Sort(d); err != nil {
		g.setError(fmt.Errorf("failed to sort by %s: %w", d.ColumnID, err))
	}
}

func (g *Grid[T]) Init() tea.Cmd {
	return tea.Batch(g.listen(), g.SetSize(g.width, g.height))
}

func (g *Grid[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return g, g.SetSize(msg.Width, msg.Height)
	case resultMsg[T]:
		if msg.grid != g.id || msg.gen != g.gen {
			return g, nil
		}
		return g, tea.Batch(g.applyResult(msg.rs), g.listen())
	case planMsg:
		return g, g.body.Update(msg)
	case tea.MouseWheelMsg:
		return g, g.body.Update(msg)
	case tea.KeyPressMsg:
		if g.filtering {
			return g, g.updateFilter(msg)
		}
		return g, g.handleKey(msg)
	}
	return g, nil
}

func (g *Grid[T]) applyResult(rs provider.ResultSet[T]) tea.Cmd {
	filterChanged := g.hasResult && rs.Filter != g.result.Filter
	g.result = rs
	g.hasResult = true

	var cmds []tea.Cmd
	if g.autoSize {
		g.autoSize = false
		cmds = append(cmds, g.body.SetColumns(AutoSize(g.body.Columns(), rs.Items, g.body.rows.field)))
	}
	if g.perPage > 0 {
		page := PageOf(rs.Size, g.perPage)
		g.paginator.PerPage = g.perPage
		g.paginator.SetTotalPages(rs.Size.TotalLength)
		g.paginator.Page = max(page.Page-1, 0)
	}
	if filterChanged && g.perPage == 0 {
		g.body.Reset()
		cmds = append(cmds, g.body.SetResult(rs), g.body.CursorTop())
		return tea.Batch(cmds...)
	}
	cmds = append(cmds, g.body.SetResult(rs))
	return tea.Batch(cmds...)
}

func (g *Grid[T]) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	k := g.keyMap
	switch {
	case key.Matches(msg, k.Quit):
		g.Close()
		return tea.Quit
	case key.Matches(msg, k.Down):
		return g.body.MoveCursor(1)
	case key.Matches(msg, k.Up):
		return g.body.MoveCursor(-1)
	case key.Matches(msg, k.PageDown):
		return g.body.MoveCursor(g.body.PageRows())
	case key.Matches(msg, k.PageUp):
		return g.body.MoveCursor(-g.body.PageRows())
	case key.Matches(msg, k.HalfPageDown):
		return g.body.MoveCursor(max(g.body.PageRows()/2, 1))
	case key.Matches(msg, k.HalfPageUp):
		return g.body.MoveCursor(-max(g.body.PageRows()/2, 1))
	case key.Matches(msg, k.Home):
		return g.body.CursorTop()
	case key.Matches(msg, k.End):
		return g.body.CursorBottom()
	case key.Matches(msg, k.Left):
		return g.body.FocusColumn(-1)
	case key.Matches(msg, k.Right):
		return g.body.FocusColumn(1)
	case key.Matches(msg, k.Sort):
		return g.sortFocused(false)
	case key.Matches(msg, k.SortAppend):
		return g.sortFocused(true)
	case key.Matches(msg, k.Expand):
		return g.toggleExpanded()
	case key.Matches(msg, k.Filter):
		g.filtering = true
		g.filter.SetValue(g.result.Filter)
		g.filter.CursorEnd()
		return tea.Batch(g.filter.Focus(), g.SetSize(g.width, g.height))
	case key.Matches(msg, k.ClearFilter):
		if g.result.Filter != "" {
			return g.applyFilter("")
		}
	case key.Matches(msg, k.Copy):
		return g.copyRow()
	case key.Matches(msg, k.PrevPage):
		return g.turnPage(-1)
	case key.Matches(msg, k.NextPage):
		return g.turnPage(1)
	case key.Matches(msg, k.Help):
		g.help.ShowAll = !g.help.ShowAll
		return g.SetSize(g.width, g.height)
	}
	return nil
}

func (g *Grid[T]) updateFilter(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		g.filtering = false
		g.filter.Blur()
		return g.SetSize(g.width, g.height)
	case "esc":
		g.filtering = false
		g.filter.Blur()
		return tea.Batch(g.applyFilter(""), g.SetSize(g.width, g.height))
	}
	var cmd tea.Cmd
	before := g.filter.Value()
	g.filter, cmd = g.filter.Update(msg)
	if g.filter.Value() != before {
		return tea.Batch(cmd, g.applyFilter(g.filter.Value()))
	}
	return cmd
}

func (g *Grid[T]) applyFilter(query string) tea.Cmd {
	if g.provider == nil {
		return nil
	}
	if err := g.provider.Filter(query); err != nil {
		g.setError(fmt.Errorf("failed to filter: %w", err))
	}
	return nil
}

func (g *Grid[T]) sortFocused(appendSort bool) tea.Cmd {
	columns := g.body.Columns()
	if len(columns) == 0 || g.provider == nil {
		return nil
	}
	col := columns[g.body.FocusedColumn()]
	d, ok := SortRequest(col, g.result.Sort)
	if !ok {
		g.setStatus(fmt.Sprintf("%s is not sortable", col.Title()))
		return nil
	}
	if !appendSort {
		g.body.RequestSort(d)
		return nil
	}
	g.body.Controller().Reset()
	if err := g.provider.Sort(AppendSort(g.result.Sort, d)...); err != nil {
		g.setError(fmt.Errorf("failed to sort by %s: %w", d.ColumnID, err))
	}
	return nil
}

func (g *Grid[T]) toggleExpanded() tea.Cmd {
	item, ok := g.body.SelectedItem()
	if !ok || !item.CanExpand || g.provider == nil {
		return nil
	}
	if err := g.provider.ToggleExpanded(item.ID); err != nil {
		g.setError(err)
	}
	return nil
}

func (g *Grid[T]) copyRow() tea.Cmd {
	item, ok := g.body.SelectedItem()
	if !ok {
		return nil
	}
	columns := g.body.Columns()
	values := make([]string, len(columns))
	for i, col := range columns {
		values[i] = strings.ReplaceAll(col.Content(item, g.body.rows.field), "\t", " ")
	}
	if err := g.copyFn(strings.Join(values, "\t")); err != nil {
		g.setError(fmt.Errorf("failed to copy row: %w", err))
		return nil
	}
	g.setStatus("copied row " + item.ID)
	return nil
}

func (g *Grid[T]) turnPage(delta int) tea.Cmd {
	if g.perPage <= 0 || g.provider == nil {
		return nil
	}
	current := PageOf(g.result.Size, g.perPage)
	page := current.Page + delta
	if page < 1 || page > max(current.Pages, 1) {
		return nil
	}
	g.body.Reset()
	if err := g.provider.Limit(provider.LimitDetails{Page: page, PerPage: g.perPage}); err != nil {
		g.setError(err)
	}
	return nil
}

func (g *Grid[T]) setStatus(s string) {
	g.status, g.statusErr = s, false
}

func (g *Grid[T]) setError(err error) {
	slog.Error("Grid error", "error", err)
	g.status, g.statusErr = err.Error(), true
}

// SetSize sizes the grid. The header takes one line and the footer the
// status line plus help.
func (g *Grid[T]) SetSize(width, height int) tea.Cmd {
	g.width, g.height = width, height
	g.help.Width = width
	g.filter.SetWidth(max(width-2, 1))
	bodyHeight := max(height-1-lipgloss.Height(g.footerView()), 0)
	return g.body.SetSize(width, bodyHeight)
}

func (g *Grid[T]) View() string {
	if g.width <= 0 || g.height <= 0 {
		return ""
	}
	header := RenderHeader(g.registry, g.body.Columns(), g.result.Sort, g.body.FocusedColumn())
	header = lipgloss.NewStyle().Width(g.width).MaxWidth(g.width).Render(header)
	return lipgloss.JoinVertical(lipgloss.Left, header, g.body.View(), g.footerView())
}

// Result returns the last result set received from the provider.
func (g *Grid[T]) Result() (provider.ResultSet[T], bool) {
	return g.result, g.hasResult
}

func (g *Grid[T]) Body() *Body[T] {
	return g.body
}

// ScrollTo focuses a row by its index in the full result set.
func (g *Grid[T]) ScrollTo(index int) tea.Cmd {
	return g.body.ScrollTo(index)
}

func (g *Grid[T]) Status() string {
	return g.status
}
