package provider

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Team string   `json:"team"`
	Age  int      `json:"age"`
	Kids []person `json:"kids,omitempty"`
}

func people() []person {
	return []person{
		{ID: "1", Name: "carol", Team: "red", Age: 35},
		{ID: "2", Name: "alice", Team: "blue", Age: 30},
		{ID: "3", Name: "bob", Team: "red", Age: 25},
		{ID: "4", Name: "dave", Team: "blue", Age: 30},
		{ID: "5", Name: "erin", Team: "green", Age: 41},
	}
}

func ids[T any](rs ResultSet[T]) []string {
	out := make([]string, 0, len(rs.Items))
	for _, item := range rs.Items {
		out = append(out, item.ID)
	}
	return out
}

func latest[T any](t *testing.T, p *Array[T]) ResultSet[T] {
	t.Helper()
	rs, ok := p.Latest()
	require.True(t, ok)
	return rs
}

func TestArrayInitialResult(t *testing.T) {
	t.Parallel()

	p := NewArray(people())
	rs := latest(t, p)

	require.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(rs))
	require.Equal(t, SizeDetails{Start: 0, DataLength: 5, TotalLength: 5}, rs.Size)
	for i, item := range rs.Items {
		assert.Equal(t, i, item.Index)
		assert.False(t, item.CanExpand)
	}
}

func TestArraySort(t *testing.T) {
	t.Parallel()

	t.Run("ascending by one key", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.NoError(t, p.Sort(SortDetails{ColumnID: "name"}))
		require.Equal(t, []string{"2", "3", "1", "4", "5"}, ids(latest(t, p)))
	})

	t.Run("descending flips the comparison", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.NoError(t, p.Sort(SortDetails{ColumnID: "name", Descending: true}))
		require.Equal(t, []string{"5", "4", "1", "3", "2"}, ids(latest(t, p)))
	})

	t.Run("later keys break ties", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.NoError(t, p.Sort(
			SortDetails{ColumnID: "team"},
			SortDetails{ColumnID: "age", Descending: true},
		))
		// blue: dave 30, alice 30 tie on age keeps source order; green; red: carol 35, bob 25
		require.Equal(t, []string{"2", "4", "5", "1", "3"}, ids(latest(t, p)))
	})

	t.Run("equal keys keep source order", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.NoError(t, p.Sort(SortDetails{ColumnID: "age"}))
		require.Equal(t, []string{"3", "2", "4", "1", "5"}, ids(latest(t, p)))
	})

	t.Run("sorting twice is idempotent", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		chain := []SortDetails{{ColumnID: "team"}, {ColumnID: "name"}}
		require.NoError(t, p.Sort(chain...))
		first := latest(t, p)
		require.NoError(t, p.Sort(chain...))
		second := latest(t, p)
		require.Equal(t, first, second)
		require.Equal(t, first.Fingerprint(), second.Fingerprint())
	})

	t.Run("reverse sort reverses order without ties", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.NoError(t, p.Sort(SortDetails{ColumnID: "name"}))
		asc := ids(latest(t, p))
		require.NoError(t, p.Sort(SortDetails{ColumnID: "name", Descending: true}))
		desc := ids(latest(t, p))
		slices.Reverse(desc)
		require.Equal(t, asc, desc)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people(), WithFields[person]("name", "age"))
		before := latest(t, p)
		err := p.Sort(SortDetails{ColumnID: "salary"})
		require.ErrorIs(t, err, ErrUnknownField)
		require.Equal(t, before, latest(t, p))
	})
}

func TestArraySlice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		slice     SliceDetails
		wantIDs   []string
		wantStart int
	}{
		{name: "window", slice: SliceDetails{Start: 1, Count: 2}, wantIDs: []string{"2", "3"}, wantStart: 1},
		{name: "count past end", slice: SliceDetails{Start: 3, Count: 10}, wantIDs: []string{"4", "5"}, wantStart: 3},
		{name: "start at total", slice: SliceDetails{Start: 5, Count: 3}, wantIDs: []string{}, wantStart: 5},
		{name: "start past total", slice: SliceDetails{Start: 50, Count: 3}, wantIDs: []string{}, wantStart: 5},
		{name: "negative start", slice: SliceDetails{Start: -4, Count: 2}, wantIDs: []string{"1", "2"}, wantStart: 0},
		{name: "negative count", slice: SliceDetails{Start: 1, Count: -2}, wantIDs: []string{}, wantStart: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewArray(people())
			require.NoError(t, p.Slice(tt.slice))
			rs := latest(t, p)
			require.Equal(t, tt.wantIDs, ids(rs))
			require.Equal(t, len(tt.wantIDs), rs.Size.DataLength)
			require.Equal(t, 5, rs.Size.TotalLength)
			require.Equal(t, tt.wantStart, rs.Size.Start)
			require.Equal(t, tt.wantStart, rs.Slice.Start)
		})
	}

	t.Run("indices are positions in the full result", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.NoError(t, p.Slice(SliceDetails{Start: 2, Count: 2}))
		rs := latest(t, p)
		require.Equal(t, 2, rs.Items[0].Index)
		require.Equal(t, 3, rs.Items[1].Index)
	})

	t.Run("slicing twice is idempotent", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.NoError(t, p.Slice(SliceDetails{Start: 1, Count: 3}))
		first := latest(t, p)
		require.NoError(t, p.Slice(SliceDetails{Start: 1, Count: 3}))
		require.Equal(t, first, latest(t, p))
	})
}

func TestArrayLimit(t *testing.T) {
	t.Parallel()

	t.Run("selects a page", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.NoError(t, p.Limit(LimitDetails{Page: 2, PerPage: 2}))
		rs := latest(t, p)
		require.Equal(t, []string{"3", "4"}, ids(rs))
		require.Equal(t, &LimitDetails{Page: 2, PerPage: 2}, rs.Limit)
		require.Equal(t, SliceDetails{Start: 2, Count: 2}, rs.Slice)
	})

	t.Run("page below one clamps", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.NoError(t, p.Limit(LimitDetails{Page: 0, PerPage: 3}))
		require.Equal(t, []string{"1", "2", "3"}, ids(latest(t, p)))
	})

	t.Run("invalid per page", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.ErrorIs(t, p.Limit(LimitDetails{Page: 1}), ErrInvalidLimit)
	})

	t.Run("slice clears the limit", func(t *testing.T) {
		t.Parallel()
		p := NewArray(people())
		require.NoError(t, p.Limit(LimitDetails{Page: 1, PerPage: 2}))
		require.NoError(t, p.Slice(SliceDetails{Start: 0, Count: 5}))
		require.Nil(t, latest(t, p).Limit)
	})
}

func TestArrayFilter(t *testing.T) {
	t.Parallel()

	p := NewArray(people(), WithTextFunc(func(v person) string { return v.Name }))
	require.NoError(t, p.Filter("ali"))
	rs := latest(t, p)
	require.Equal(t, []string{"2"}, ids(rs))
	require.Equal(t, 1, rs.Size.TotalLength)
	require.Equal(t, "ali", rs.Filter)

	require.NoError(t, p.Filter("e"))
	require.Equal(t, []string{"2", "4", "5"}, ids(latest(t, p)))

	require.NoError(t, p.Filter(""))
	require.Len(t, latest(t, p).Items, 5)
}

func tree() []person {
	return []person{
		{ID: "b", Name: "beta", Kids: []person{
			{ID: "b2", Name: "beta two"},
			{ID: "b1", Name: "beta one", Kids: []person{
				{ID: "b1a", Name: "beta one a"},
			}},
		}},
		{ID: "a", Name: "alpha"},
	}
}

func TestArrayExpansion(t *testing.T) {
	t.Parallel()

	newTree := func() *Array[person] {
		return NewArray(tree(),
			WithChildren(func(v person) []person { return v.Kids }),
		)
	}

	t.Run("only roots are visible initially", func(t *testing.T) {
		t.Parallel()
		p := newTree()
		rs := latest(t, p)
		require.Equal(t, []string{"b", "a"}, ids(rs))
		require.True(t, rs.Items[0].CanExpand)
		require.False(t, rs.Items[0].IsExpanded)
		require.False(t, rs.Items[1].CanExpand)
	})

	t.Run("expanding inserts children after the parent", func(t *testing.T) {
		t.Parallel()
		p := newTree()
		require.NoError(t, p.ToggleExpanded("b"))
		rs := latest(t, p)
		require.Equal(t, []string{"b", "b2", "b1", "a"}, ids(rs))
		require.True(t, rs.Items[0].IsExpanded)
		require.Equal(t, 1, rs.Items[1].ExpandedLevel)
		require.Equal(t, 3, rs.Items[3].Index)
		require.Equal(t, 4, rs.Size.TotalLength)
	})

	t.Run("nested expansion and sorted siblings", func(t *testing.T) {
		t.Parallel()
		p := newTree()
		require.NoError(t, p.Sort(SortDetails{ColumnID: "name"}))
		require.NoError(t, p.ToggleExpanded("b"))
		require.NoError(t, p.ToggleExpanded("b1"))
		rs := latest(t, p)
		require.Equal(t, []string{"a", "b", "b1", "b1a", "b2"}, ids(rs))
		require.Equal(t, 2, rs.Items[3].ExpandedLevel)
	})

	t.Run("collapsing hides descendants", func(t *testing.T) {
		t.Parallel()
		p := newTree()
		require.NoError(t, p.ToggleExpanded("b"))
		require.NoError(t, p.ToggleExpanded("b1"))
		require.NoError(t, p.ToggleExpanded("b"))
		require.Equal(t, []string{"b", "a"}, ids(latest(t, p)))
	})

	t.Run("hidden items cannot be toggled", func(t *testing.T) {
		t.Parallel()
		p := newTree()
		require.ErrorIs(t, p.ToggleExpanded("b1"), ErrNotFound)
		require.ErrorIs(t, p.ToggleExpanded("missing"), ErrNotFound)
	})
}

func TestArrayObserve(t *testing.T) {
	t.Parallel()

	p := NewArray(people())
	var got []ResultSet[person]
	sub := p.Observe(func(rs ResultSet[person]) {
		got = append(got, rs)
	})
	require.Len(t, got, 1, "latest result set is replayed")

	require.NoError(t, p.Slice(SliceDetails{Start: 0, Count: 2}))
	require.Len(t, got, 2)
	require.Equal(t, []string{"1", "2"}, ids(got[1]))

	sub.Unsubscribe()
	require.NoError(t, p.Slice(SliceDetails{Start: 2, Count: 2}))
	require.Len(t, got, 2)
}

func TestArrayEvents(t *testing.T) {
	t.Parallel()

	p := NewArray(people(), WithTextFunc(func(v person) string { return v.Name }))
	ctx, cancel := context.WithCancel(t.Context())
	ch := p.Events(ctx)

	recv := func() (ResultSet[person], bool) {
		t.Helper()
		select {
		case rs, ok := <-ch:
			return rs, ok
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for a result set")
			return ResultSet[person]{}, false
		}
	}

	rs, ok := recv()
	require.True(t, ok)
	require.Equal(t, 5, rs.Size.TotalLength)

	require.NoError(t, p.Filter("alice"))
	rs, ok = recv()
	require.True(t, ok)
	require.Equal(t, []string{"2"}, ids(rs))

	cancel()
	_, ok = recv()
	require.False(t, ok, "channel closes with the context")
}

func TestArraySetData(t *testing.T) {
	t.Parallel()

	p := NewArray(people())
	require.NoError(t, p.Sort(SortDetails{ColumnID: "age"}))
	require.NoError(t, p.Slice(SliceDetails{Start: 0, Count: 2}))

	p.SetData(append(people(), person{ID: "6", Name: "finn", Age: 1}))
	rs := latest(t, p)
	require.Equal(t, []string{"6", "3"}, ids(rs))
	require.Equal(t, 6, rs.Size.TotalLength)
}

func TestArrayConcurrentSetData(t *testing.T) {
	t.Parallel()

	grown := append(people(), person{ID: "6"}, person{ID: "7"})
	for range 200 {
		p := NewArray(people()[:3])

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.SetData(grown)
		}()
		go func() {
			defer wg.Done()
			_ = p.Slice(SliceDetails{Start: 0, Count: 100})
		}()
		wg.Wait()

		rs := latest(t, p)
		require.Equal(t, 7, rs.Size.TotalLength, "the last built result set is the latest")
		require.Len(t, rs.Items, 7)
	}
}

func TestArrayObserversSeeBuildOrder(t *testing.T) {
	t.Parallel()

	p := NewArray(people())
	var mu sync.Mutex
	var totals []int
	sub := p.Observe(func(rs ResultSet[person]) {
		mu.Lock()
		totals = append(totals, rs.Size.TotalLength)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	var wg sync.WaitGroup
	for n := 1; n <= 20; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data := make([]person, n)
			for i := range data {
				data[i] = person{ID: fmt.Sprint(i)}
			}
			p.SetData(data)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	rs := latest(t, p)
	require.Equal(t, rs.Size.TotalLength, totals[len(totals)-1], "observers end on the latest result set")
	require.LessOrEqual(t, len(totals), 21)
}

func TestArrayConfigure(t *testing.T) {
	t.Parallel()

	p := NewArray(people())
	err := p.Configure(Query{
		Sort:  []SortDetails{{ColumnID: "name"}},
		Limit: &LimitDetails{Page: 1, PerPage: 2},
	})
	require.NoError(t, err)
	rs := latest(t, p)
	require.Equal(t, []string{"2", "3"}, ids(rs))
	require.Equal(t, SliceDetails{Start: 0, Count: 2}, rs.Slice)

	require.ErrorIs(t, p.Configure(Query{Limit: &LimitDetails{Page: 1}}), ErrInvalidLimit)
}

func TestToggleSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		current []SortDetails
		column  string
		want    SortDetails
	}{
		{current: nil, column: "name", want: SortDetails{ColumnID: "name"}},
		{current: []SortDetails{{ColumnID: "name"}}, column: "name", want: SortDetails{ColumnID: "name", Descending: true}},
		{current: []SortDetails{{ColumnID: "name", Descending: true}}, column: "name", want: SortDetails{ColumnID: "name"}},
		{current: []SortDetails{{ColumnID: "age"}}, column: "name", want: SortDetails{ColumnID: "name"}},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, ToggleSort(tt.current, tt.column))
		})
	}
}

func BenchmarkArraySort(b *testing.B) {
	data := make([]person, 10_000)
	for i := range data {
		data[i] = person{ID: fmt.Sprint(i), Name: fmt.Sprintf("name %d", i%977), Age: i % 83}
	}
	p := NewArray(data)
	b.ResetTimer()
	for i := range b.N {
		_ = p.Sort(SortDetails{ColumnID: "age", Descending: i%2 == 0}, SortDetails{ColumnID: "name"})
	}
}
