package provider

import (
	"errors"
	"strconv"

	"github.com/tujuhre12/dgrid/internal/pubsub"
	"github.com/zeebo/xxh3"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidLimit = errors.New("items per page must be positive")
	ErrNotFound     = errors.New("item not found")
)

// Item is one row of a result set. Index is the position of the item in the
// full sorted, filtered and expanded sequence, not in the slice.
type Item[T any] struct {
	ID            string
	Index         int
	Data          T
	ExpandedLevel int
	IsExpanded    bool
	CanExpand     bool
}

// SliceDetails is a window [Start, Start+Count) into the full result set.
type SliceDetails struct {
	Start int
	Count int
}

func (s SliceDetails) End() int {
	return s.Start + s.Count
}

// SizeDetails describes how much of the result set was materialized.
// DataLength never exceeds TotalLength.
type SizeDetails struct {
	Start       int
	DataLength  int
	TotalLength int
}

type SortDetails struct {
	ColumnID   string
	Descending bool
}

// LimitDetails selects a page. Page is 1-based.
type LimitDetails struct {
	Page    int
	PerPage int
}

// Query is the full query state of a provider.
type Query struct {
	Sort   []SortDetails
	Slice  *SliceDetails
	Limit  *LimitDetails
	Filter string
}

type ResultSet[T any] struct {
	Items  []Item[T]
	Size   SizeDetails
	Slice  SliceDetails
	Sort   []SortDetails
	Limit  *LimitDetails
	Filter string
}

// Fingerprint hashes the identity, position and window of a result set.
// Two result sets with the same rows in the same places share a fingerprint.
func (r ResultSet[T]) Fingerprint() uint64 {
	h := xxh3.New()
	for _, item := range r.Items {
		h.WriteString(item.ID)
		h.WriteString(":")
		h.WriteString(strconv.Itoa(item.Index))
		h.WriteString(":")
		h.WriteString(strconv.Itoa(item.ExpandedLevel))
		if item.IsExpanded {
			h.WriteString("+")
		}
		h.WriteString(";")
	}
	h.WriteString(strconv.Itoa(r.Size.Start))
	h.WriteString("/")
	h.WriteString(strconv.Itoa(r.Size.DataLength))
	h.WriteString("/")
	h.WriteString(strconv.Itoa(r.Size.TotalLength))
	h.WriteString("/")
	h.WriteString(strconv.Itoa(r.Slice.Count))
	for _, s := range r.Sort {
		h.WriteString(s.ColumnID)
		if s.Descending {
			h.WriteString("-")
		}
	}
	h.WriteString(r.Filter)
	return h.Sum64()
}

// SortFor returns the sort entry for a column, if any.
func (r ResultSet[T]) SortFor(columnID string) (SortDetails, bool) {
	return findSort(r.Sort, columnID)
}

// Provider is the observable contract consumed by the grid.
type Provider[T any] interface {
	Observe(fn func(ResultSet[T])) pubsub.Subscription
	Sort(details ...SortDetails) error
	Slice(details SliceDetails) error
	Limit(details LimitDetails) error
	ToggleExpanded(id string) error
	Filter(query string) error
}

// ToggleSort returns the sort request for clicking a column header: a column
// that is currently sorted ascending flips to descending, anything else sorts
// ascending.
func ToggleSort(current []SortDetails, columnID string) SortDetails {
	existing, ok := findSort(current, columnID)
	return SortDetails{
		ColumnID:   columnID,
		Descending: ok && !existing.Descending,
	}
}

func findSort(details []SortDetails, columnID string) (SortDetails, bool) {
	for _, d := range details {
		if d.ColumnID == columnID {
			return d, true
		}
	}
	return SortDetails{}, false
}
