package vscroll

import (
	"strconv"
	"strings"

	"github.com/tujuhre12/dgrid/internal/provider"
)

const (
	DefaultBufferRows         = 10
	DefaultRowDrift           = 5
	DefaultEstimatedRowHeight = 1
)

const (
	marginTopPrefix    = "margin:top:"
	marginBottomPrefix = "margin:bottom:"
)

// ScrollToDetails asks for a logical index to be brought into view.
type ScrollToDetails struct {
	Index int
}

// Props configures a Controller. Zero values select the defaults.
type Props struct {
	// BufferRows is the number of rows loaded beyond each edge of the
	// viewport.
	BufferRows int
	// RowDrift is the minimum change of a slice window, in rows, that is
	// worth a request.
	RowDrift int
	// EstimatedRowHeight is used before any row has been measured.
	EstimatedRowHeight int

	ScrollTo           *ScrollToDetails
	OnScrollToRequest  func(ScrollToDetails)
	OnScrollToComplete func()
	OnSliceRequest     func(provider.SliceDetails)
	OnSortRequest      func(provider.SortDetails)
}

func (p Props) withDefaults() Props {
	if p.BufferRows <= 0 {
		p.BufferRows = DefaultBufferRows
	}
	if p.RowDrift <= 0 {
		p.RowDrift = DefaultRowDrift
	}
	if p.EstimatedRowHeight <= 0 {
		p.EstimatedRowHeight = DefaultEstimatedRowHeight
	}
	return p
}

// Entry is one row of the current result set.
type Entry struct {
	Key   string
	Index int
}

// EntriesOf adapts provider items to entries.
func EntriesOf[T any](items []provider.Item[T]) []Entry {
	entries := make([]Entry, len(items))
	for i, item := range items {
		entries[i] = Entry{Key: item.ID, Index: item.Index}
	}
	return entries
}

type Kind int

const (
	KindRow Kind = iota
	KindMarginTop
	KindMarginBottom
)

// Node is one element to lay out, in render order. Margin nodes carry their
// estimated height; row heights are measured by the presentation layer.
type Node struct {
	Key    string
	Index  int
	Kind   Kind
	Height int
}

func (n Node) Margin() bool {
	return n.Kind != KindRow
}

// Geometry is the laid out position of an element in lines, relative to
// the top of the scrollable content.
type Geometry struct {
	Top    int
	Height int
}

// LifecycleObserver receives element lifecycle notifications from the
// presentation layer.
type LifecycleObserver interface {
	OnMount(key string, g Geometry)
	OnUpdate(key string, g Geometry)
	OnUnmount(key string)
}

func marginTopKey(start int) string {
	return marginTopPrefix + strconv.Itoa(start)
}

func marginBottomKey(end int) string {
	return marginBottomPrefix + strconv.Itoa(end)
}

// IsMarginKey reports whether key names a margin sentinel.
func IsMarginKey(key string) bool {
	return strings.HasPrefix(key, marginTopPrefix) || strings.HasPrefix(key, marginBottomPrefix)
}
