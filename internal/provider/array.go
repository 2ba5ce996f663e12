package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/sahilm/fuzzy"
	"github.com/tujuhre12/dgrid/internal/pubsub"
	"golang.org/x/text/language"
)

type options[T any] struct {
	idField  string
	idFunc   func(T) string
	field    func(T, string) any
	text     func(T) string
	children func(T) []T
	fields   []string
	locale   language.Tag
	query    Query
}

type Option[T any] func(*options[T])

// WithIDField sets the field used as item id. Defaults to "id".
func WithIDField[T any](name string) Option[T] {
	return func(o *options[T]) {
		o.idField = name
	}
}

// WithIDFunc overrides id resolution.
func WithIDFunc[T any](fn func(T) string) Option[T] {
	return func(o *options[T]) {
		o.idFunc = fn
	}
}

// WithFieldFunc overrides field resolution used for sorting.
func WithFieldFunc[T any](fn func(T, string) any) Option[T] {
	return func(o *options[T]) {
		o.field = fn
	}
}

// WithTextFunc sets the text matched by Filter.
func WithTextFunc[T any](fn func(T) string) Option[T] {
	return func(o *options[T]) {
		o.text = fn
	}
}

// WithChildren enables tree expansion.
func WithChildren[T any](fn func(T) []T) Option[T] {
	return func(o *options[T]) {
		o.children = fn
	}
}

// WithFields restricts sorting to the given fields. Sorting by anything
// else fails with ErrUnknownField.
func WithFields[T any](names ...string) Option[T] {
	return func(o *options[T]) {
		o.fields = names
	}
}

// WithLocale sets the collation locale for string comparison.
func WithLocale[T any](tag language.Tag) Option[T] {
	return func(o *options[T]) {
		o.locale = tag
	}
}

// WithQuery sets the initial query state.
func WithQuery[T any](q Query) Option[T] {
	return func(o *options[T]) {
		o.query = q
	}
}

// Array is an in-memory provider. Every command rebuilds the result set
// from the source data and publishes it synchronously. Result sets are
// stamped with a version while p.mu is held, so a result set built before
// another is never published after it.
type Array[T any] struct {
	mu       sync.Mutex
	version  uint64
	opts     options[T]
	data     []T
	query    Query
	expanded map[string]bool
	visible  map[string]bool
	comparer *Comparer
	broker   *pubsub.Broker[ResultSet[T]]
}

var _ Provider[any] = (*Array[any])(nil)

func NewArray[T any](data []T, opts ...Option[T]) *Array[T] {
	o := options[T]{
		idField: "id",
		locale:  language.Und,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.field == nil {
		o.field = func(v T, name string) any { return Field(v, name) }
	}
	if o.idFunc == nil {
		o.idFunc = func(v T) string {
			if id := o.field(v, o.idField); id != nil {
				return fmt.Sprint(id)
			}
			return ""
		}
	}
	if o.text == nil {
		o.text = func(v T) string { return Text(v) }
	}

	p := &Array[T]{
		opts:     o,
		data:     data,
		query:    o.query,
		expanded: make(map[string]bool),
		comparer: NewComparer(o.locale),
		broker:   pubsub.NewBroker[ResultSet[T]](),
	}
	p.mu.Lock()
	rs, v := p.build(), p.nextVersion()
	p.mu.Unlock()
	p.broker.PublishVersion(pubsub.CreatedEvent, v, rs)
	return p
}

// Observe subscribes fn to result sets. The latest result set is replayed
// immediately.
func (p *Array[T]) Observe(fn func(ResultSet[T])) pubsub.Subscription {
	return p.broker.Observe(func(e pubsub.Event[ResultSet[T]]) {
		fn(e.Payload)
	})
}

// Events streams result sets until ctx is done. A slow reader skips
// intermediate result sets and only sees the latest one.
func (p *Array[T]) Events(ctx context.Context) <-chan ResultSet[T] {
	box := pubsub.NewMailbox[ResultSet[T]]()
	sub := p.Observe(box.Put)
	ch := make(chan ResultSet[T])
	go func() {
		defer close(ch)
		defer sub.Unsubscribe()
		for {
			rs, ok := box.Take(ctx)
			if !ok {
				return
			}
			select {
			case ch <- rs:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Latest returns the last published result set.
func (p *Array[T]) Latest() (ResultSet[T], bool) {
	e, ok := p.broker.Latest()
	return e.Payload, ok
}

func (p *Array[T]) Query() Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.query
}

func (p *Array[T]) Sort(details ...SortDetails) error {
	if err := p.validateSort(details); err != nil {
		return err
	}
	return p.update(func(q *Query) {
		q.Sort = slices.Clone(details)
	})
}

// Slice sets the materialized window. Out of range values are clamped when
// the result set is built.
func (p *Array[T]) Slice(details SliceDetails) error {
	return p.update(func(q *Query) {
		q.Slice = &details
		q.Limit = nil
	})
}

// Limit selects a page of PerPage items.
func (p *Array[T]) Limit(details LimitDetails) error {
	if details.PerPage <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, details.PerPage)
	}
	details.Page = max(details.Page, 1)
	return p.update(func(q *Query) {
		q.Limit = &details
		q.Slice = &SliceDetails{
			Start: (details.Page - 1) * details.PerPage,
			Count: details.PerPage,
		}
	})
}

func (p *Array[T]) Filter(query string) error {
	return p.update(func(q *Query) {
		q.Filter = query
	})
}

// Configure replaces the whole query state at once.
func (p *Array[T]) Configure(q Query) error {
	if err := p.validateSort(q.Sort); err != nil {
		return err
	}
	if q.Limit != nil && q.Limit.PerPage <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, q.Limit.PerPage)
	}
	return p.update(func(cur *Query) {
		*cur = q
		if q.Limit != nil {
			page := max(q.Limit.Page, 1)
			cur.Limit = &LimitDetails{Page: page, PerPage: q.Limit.PerPage}
			cur.Slice = &SliceDetails{Start: (page - 1) * q.Limit.PerPage, Count: q.Limit.PerPage}
		}
	})
}

// ToggleExpanded expands or collapses a visible item.
func (p *Array[T]) ToggleExpanded(id string) error {
	p.mu.Lock()
	if !p.visible[id] {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	expanded := !p.expanded[id]
	p.expanded[id] = expanded
	rs, v := p.build(), p.nextVersion()
	p.mu.Unlock()

	slog.Debug("Toggled expansion", "id", id, "expanded", expanded)
	p.broker.PublishVersion(pubsub.UpdatedEvent, v, rs)
	return nil
}

// SetData replaces the source items and republishes with the current query.
func (p *Array[T]) SetData(data []T) {
	p.mu.Lock()
	p.data = data
	rs, v := p.build(), p.nextVersion()
	p.mu.Unlock()
	p.broker.PublishVersion(pubsub.UpdatedEvent, v, rs)
}

func (p *Array[T]) update(fn func(*Query)) error {
	p.mu.Lock()
	fn(&p.query)
	rs, v := p.build(), p.nextVersion()
	p.mu.Unlock()
	p.broker.PublishVersion(pubsub.UpdatedEvent, v, rs)
	return nil
}

// nextVersion stamps a freshly built result set. Callers hold p.mu.
func (p *Array[T]) nextVersion() uint64 {
	p.version++
	return p.version
}

func (p *Array[T]) validateSort(details []SortDetails) error {
	if len(p.opts.fields) == 0 {
		return nil
	}
	for _, d := range details {
		if !slices.Contains(p.opts.fields, d.ColumnID) {
			return fmt.Errorf("%w: %s", ErrUnknownField, d.ColumnID)
		}
	}
	return nil
}

// build runs filter, sort, expansion and slicing. Callers hold p.mu.
func (p *Array[T]) build() ResultSet[T] {
	all := p.expand(p.filter(p.data))
	total := len(all)

	p.visible = make(map[string]bool, total)
	for i := range all {
		all[i].Index = i
		p.visible[all[i].ID] = true
	}

	start, count := 0, total
	if s := p.query.Slice; s != nil {
		start = min(max(s.Start, 0), total)
		count = max(s.Count, 0)
	}
	end := min(start+count, total)

	items := make([]Item[T], end-start)
	copy(items, all[start:end])

	var limit *LimitDetails
	if p.query.Limit != nil {
		l := *p.query.Limit
		limit = &l
	}

	return ResultSet[T]{
		Items: items,
		Size: SizeDetails{
			Start:       start,
			DataLength:  len(items),
			TotalLength: total,
		},
		Slice:  SliceDetails{Start: start, Count: count},
		Sort:   slices.Clone(p.query.Sort),
		Limit:  limit,
		Filter: p.query.Filter,
	}
}

// filter keeps the items matching the query, in source order.
func (p *Array[T]) filter(data []T) []T {
	if p.query.Filter == "" {
		return data
	}
	texts := make([]string, len(data))
	for i, d := range data {
		texts[i] = p.opts.text(d)
	}
	matches := fuzzy.Find(p.query.Filter, texts)
	indexes := make([]int, 0, len(matches))
	for _, m := range matches {
		indexes = append(indexes, m.Index)
	}
	slices.Sort(indexes)

	out := make([]T, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, data[i])
	}
	return out
}

func (p *Array[T]) sorted(data []T) []T {
	if len(p.query.Sort) == 0 {
		return data
	}
	out := slices.Clone(data)
	slices.SortStableFunc(out, p.compare)
	return out
}

func (p *Array[T]) compare(a, b T) int {
	for _, s := range p.query.Sort {
		r := p.comparer.Compare(p.opts.field(a, s.ColumnID), p.opts.field(b, s.ColumnID))
		if r == 0 {
			continue
		}
		if s.Descending {
			return -r
		}
		return r
	}
	return 0
}

// expand walks the tree depth first, emitting children only below expanded
// parents. Siblings are sorted with the same chain as the roots.
func (p *Array[T]) expand(roots []T) []Item[T] {
	var out []Item[T]
	var walk func(nodes []T, level int)
	walk = func(nodes []T, level int) {
		for _, d := range p.sorted(nodes) {
			id := p.opts.idFunc(d)
			var children []T
			if p.opts.children != nil {
				children = p.opts.children(d)
			}
			canExpand := len(children) > 0
			expanded := canExpand && p.expanded[id]
			out = append(out, Item[T]{
				ID:            id,
				Data:          d,
				ExpandedLevel: level,
				CanExpand:     canExpand,
				IsExpanded:    expanded,
			})
			if expanded {
				walk(children, level+1)
			}
		}
	}
	walk(roots, 0)
	return out
}
