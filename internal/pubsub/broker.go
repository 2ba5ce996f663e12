package pubsub

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
)

// Subscription is the handle returned by Observe. Unsubscribe is safe to
// call more than once.
type Subscription interface {
	Unsubscribe()
}

type subscription[T any] struct {
	id     uint64
	fn     func(Event[T])
	last   uint64
	closed atomic.Bool
	once   sync.Once
	cancel func()
}

func (s *subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
	})
}

// delivery is a queued event. A nil target broadcasts to every subscriber.
type delivery[T any] struct {
	event  Event[T]
	target *subscription[T]
}

// Broker is a callback registry that remembers the latest event and
// replays it to late subscribers.
//
// Deliveries are serialized: an event published while another delivery is
// running, from a callback or from another goroutine, is queued and handed
// out by the running delivery in version order. A subscriber never sees an
// event older than one it already received.
type Broker[T any] struct {
	mu       sync.Mutex
	subs     map[uint64]*subscription[T]
	nextID   uint64
	version  uint64
	latest   *Event[T]
	queue    []delivery[T]
	draining bool
	done     bool
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs: make(map[uint64]*subscription[T]),
	}
}

// Observe registers fn and, if an event was already published, calls it
// with the latest one before any later event.
func (b *Broker[T]) Observe(fn func(Event[T])) Subscription {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return &subscription[T]{cancel: func() {}}
	}
	s := &subscription[T]{id: b.nextID, fn: fn}
	b.nextID++
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, s.id)
	}
	b.subs[s.id] = s
	if b.latest != nil {
		b.queue = append(b.queue, delivery[T]{event: *b.latest, target: s})
	}
	b.drain()
	return s
}

// Publish delivers payload to every subscriber after any event published
// before it.
func (b *Broker[T]) Publish(t EventType, payload T) {
	b.mu.Lock()
	b.enqueue(Event[T]{Type: t, Payload: payload, Version: b.version + 1})
}

// PublishVersion delivers payload stamped with version. Producers that build
// payloads under their own lock use it to keep publication in build order:
// a payload older than the latest delivered event is dropped.
func (b *Broker[T]) PublishVersion(t EventType, version uint64, payload T) {
	b.mu.Lock()
	b.enqueue(Event[T]{Type: t, Payload: payload, Version: version})
}

// enqueue is called with b.mu held and releases it.
func (b *Broker[T]) enqueue(event Event[T]) {
	if b.done {
		b.mu.Unlock()
		return
	}
	b.version = max(b.version, event.Version)
	b.queue = append(b.queue, delivery[T]{event: event})
	b.drain()
}

// drain is called with b.mu held and releases it. Only one goroutine
// delivers at a time; the others leave their events in the queue.
func (b *Broker[T]) drain() {
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 && !b.done {
		d := b.queue[0]
		b.queue = b.queue[1:]

		var targets []*subscription[T]
		if d.target != nil {
			targets = []*subscription[T]{d.target}
		} else {
			if b.latest != nil && d.event.Version <= b.latest.Version {
				continue
			}
			event := d.event
			b.latest = &event
			targets = b.sorted()
		}
		b.mu.Unlock()

		for _, s := range targets {
			if s.closed.Load() || (s.last != 0 && d.event.Version <= s.last) {
				continue
			}
			s.last = d.event.Version
			s.fn(d.event)
		}

		b.mu.Lock()
	}
	b.queue = nil
	b.draining = false
	b.mu.Unlock()
}

func (b *Broker[T]) sorted() []*subscription[T] {
	out := make([]*subscription[T], 0, len(b.subs))
	for _, s := range b.subs {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *subscription[T]) int {
		return cmp.Compare(a.id, b.id)
	})
	return out
}

// Latest returns the most recently delivered event.
func (b *Broker[T]) Latest() (Event[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return Event[T]{}, false
	}
	return *b.latest, true
}

func (b *Broker[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Shutdown drops all subscribers. Further publishes are ignored.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	b.queue = nil
	clear(b.subs)
}
