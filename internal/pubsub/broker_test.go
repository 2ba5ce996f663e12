package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker(t *testing.T) {
	t.Parallel()

	t.Run("delivers to subscribers in order", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		var got []string
		b.Observe(func(e Event[int]) { got = append(got, "first") })
		b.Observe(func(e Event[int]) { got = append(got, "second") })

		b.Publish(UpdatedEvent, 1)
		require.Equal(t, []string{"first", "second"}, got)
	})

	t.Run("replays latest to late subscriber", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		b.Publish(CreatedEvent, 1)
		b.Publish(UpdatedEvent, 2)

		var got []Event[int]
		b.Observe(func(e Event[int]) { got = append(got, e) })
		require.Len(t, got, 1)
		require.Equal(t, UpdatedEvent, got[0].Type)
		require.Equal(t, 2, got[0].Payload)
		require.Equal(t, uint64(2), got[0].Version)
	})

	t.Run("no replay before first publish", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		calls := 0
		b.Observe(func(Event[int]) { calls++ })
		require.Zero(t, calls)
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		calls := 0
		sub := b.Observe(func(Event[int]) { calls++ })
		b.Publish(UpdatedEvent, 1)
		sub.Unsubscribe()
		sub.Unsubscribe()
		b.Publish(UpdatedEvent, 2)
		require.Equal(t, 1, calls)
		require.Zero(t, b.SubscriberCount())
	})

	t.Run("subscriber may publish from callback", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		var got []int
		b.Observe(func(e Event[int]) {
			got = append(got, e.Payload)
			if e.Payload < 3 {
				b.Publish(UpdatedEvent, e.Payload+1)
			}
		})
		b.Publish(UpdatedEvent, 1)
		require.Equal(t, []int{1, 2, 3}, got)
		latest, ok := b.Latest()
		require.True(t, ok)
		require.Equal(t, 3, latest.Payload)
	})

	t.Run("drops events older than the latest", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		var got []int
		b.Observe(func(e Event[int]) { got = append(got, e.Payload) })

		b.PublishVersion(UpdatedEvent, 2, 20)
		b.PublishVersion(UpdatedEvent, 1, 10)
		b.PublishVersion(UpdatedEvent, 2, 21)
		b.PublishVersion(UpdatedEvent, 3, 30)
		require.Equal(t, []int{20, 30}, got)

		latest, ok := b.Latest()
		require.True(t, ok)
		require.Equal(t, 30, latest.Payload)
		require.Equal(t, uint64(3), latest.Version)
	})

	t.Run("publish stamps after explicit versions", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		b.PublishVersion(UpdatedEvent, 5, 1)
		b.Publish(UpdatedEvent, 2)
		latest, ok := b.Latest()
		require.True(t, ok)
		require.Equal(t, 2, latest.Payload)
		require.Equal(t, uint64(6), latest.Version)
	})

	t.Run("replay never follows a newer event", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		b.Publish(UpdatedEvent, 1)

		var got []int
		b.Observe(func(e Event[int]) {
			got = append(got, e.Payload)
			if e.Payload == 1 {
				b.Publish(UpdatedEvent, 2)
				b.Observe(func(e Event[int]) { got = append(got, e.Payload*10) })
			}
		})
		require.Equal(t, []int{1, 2, 20}, got, "the late subscriber skips the stale replay")
	})

	t.Run("concurrent versions settle on the highest", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		var mu sync.Mutex
		last := 0
		b.Observe(func(e Event[int]) {
			mu.Lock()
			defer mu.Unlock()
			assert.Greater(t, e.Payload, last)
			last = e.Payload
		})
		var wg sync.WaitGroup
		for i := 1; i <= 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.PublishVersion(UpdatedEvent, uint64(i), i)
			}()
		}
		wg.Wait()
		latest, ok := b.Latest()
		require.True(t, ok)
		require.Equal(t, 50, latest.Payload)
		mu.Lock()
		require.Equal(t, 50, last)
		mu.Unlock()
	})

	t.Run("shutdown ignores further events", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		calls := 0
		b.Observe(func(Event[int]) { calls++ })
		b.Shutdown()
		b.Publish(UpdatedEvent, 1)
		require.Zero(t, calls)
	})

	t.Run("concurrent publish", func(t *testing.T) {
		t.Parallel()
		b := NewBroker[int]()
		var mu sync.Mutex
		calls := 0
		b.Observe(func(Event[int]) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.Publish(UpdatedEvent, i)
			}()
		}
		wg.Wait()
		require.Equal(t, 20, calls)
	})
}

func TestMailbox(t *testing.T) {
	t.Parallel()

	t.Run("keeps only the latest value", func(t *testing.T) {
		t.Parallel()
		m := NewMailbox[int]()
		m.Put(1)
		m.Put(2)
		m.Put(3)
		v, ok := m.Take(context.Background())
		require.True(t, ok)
		require.Equal(t, 3, v)
	})

	t.Run("take returns when context is done", func(t *testing.T) {
		t.Parallel()
		m := NewMailbox[int]()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, ok := m.Take(ctx)
		require.False(t, ok)
	})
}
