package csync

import (
	"iter"
	"maps"
	"sync"
)

// Map is a map guarded by a read/write mutex.
type Map[K comparable, V any] struct {
	inner map[K]V
	mu    sync.RWMutex
}

func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		inner: make(map[K]V),
	}
}

func NewMapFrom[K comparable, V any](m map[K]V) *Map[K, V] {
	return &Map[K, V]{
		inner: m,
	}
}

func (m *Map[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner[key] = value
}

func (m *Map[K, V]) Del(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inner, key)
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.inner[key]
	return v, ok
}

// GetOrSet returns the value for key, computing and storing it with fn when
// the key is missing.
func (m *Map[K, V]) GetOrSet(key K, fn func() V) V {
	if v, ok := m.Get(key); ok {
		return v
	}
	v := fn()
	m.Set(key, v)
	return v
}

func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.inner)
}

// Reset replaces the contents of the map. A nil input clears it.
func (m *Map[K, V]) Reset(input map[K]V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if input == nil {
		input = make(map[K]V)
	}
	m.inner = input
}

// Seq2 iterates over a snapshot of the map.
func (m *Map[K, V]) Seq2() iter.Seq2[K, V] {
	m.mu.RLock()
	snapshot := maps.Clone(m.inner)
	m.mu.RUnlock()
	return func(yield func(K, V) bool) {
		for k, v := range snapshot {
			if !yield(k, v) {
				return
			}
		}
	}
}
