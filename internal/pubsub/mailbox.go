package pubsub

import (
	"context"
)

// Mailbox holds at most one pending value. Putting a new value replaces an
// unread one, so a slow reader only ever sees the latest state.
type Mailbox[T any] struct {
	ch chan T
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// Put never blocks.
func (m *Mailbox[T]) Put(v T) {
	for {
		select {
		case m.ch <- v:
			return
		default:
		}
		select {
		case <-m.ch:
		default:
		}
	}
}

// Take blocks until a value is available or ctx is done.
func (m *Mailbox[T]) Take(ctx context.Context) (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}
