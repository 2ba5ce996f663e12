// Package window keeps per-item rendering metadata in render order.
package window

import (
	"iter"
	"slices"
)

// Details is the rendering state of one key.
//
// An entry starts with Add set. Add is cleared once the entry's height has
// been folded into a scroll correction. Remove is set when the key leaves the
// rendered set; the entry keeps its last height until the correction that
// compensates for it deletes it.
type Details struct {
	Add          bool
	Remove       bool
	Index        int
	Height       int
	Measured     bool
	Invalidating bool
	Margin       bool
}

type entry struct {
	key     string
	details *Details
}

// Map is an ordered association from key to Details. Iteration follows
// insertion order and lookups are constant time.
type Map struct {
	entries []entry
	index   map[string]int
}

func New() *Map {
	return &Map{index: make(map[string]int)}
}

func (m *Map) Len() int {
	return len(m.entries)
}

func (m *Map) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}
	return keys
}

func (m *Map) Get(key string) (*Details, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].details, true
}

func (m *Map) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

// Position returns the render position of key.
func (m *Map) Position(key string) (int, bool) {
	i, ok := m.index[key]
	return i, ok
}

// Set replaces the details of an existing key in place, or appends a new
// key at the end.
func (m *Map) Set(key string, d *Details) {
	if i, ok := m.index[key]; ok {
		m.entries[i].details = d
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, entry{key: key, details: d})
}

// Delete removes key and keeps the order of the remaining keys.
func (m *Map) Delete(key string) bool {
	i, ok := m.index[key]
	if !ok {
		return false
	}
	m.entries = slices.Delete(m.entries, i, i+1)
	delete(m.index, key)
	for j := i; j < len(m.entries); j++ {
		m.index[m.entries[j].key] = j
	}
	return true
}

// DeleteFunc removes every entry for which fn returns true.
func (m *Map) DeleteFunc(fn func(key string, d *Details) bool) int {
	before := len(m.entries)
	m.entries = slices.DeleteFunc(m.entries, func(e entry) bool {
		return fn(e.key, e.details)
	})
	if len(m.entries) == before {
		return 0
	}
	clear(m.index)
	for i, e := range m.entries {
		m.index[e.key] = i
	}
	return before - len(m.entries)
}

// All iterates in render order.
func (m *Map) All() iter.Seq2[string, *Details] {
	return func(yield func(string, *Details) bool) {
		for _, e := range m.entries {
			if !yield(e.key, e.details) {
				return
			}
		}
	}
}

func (m *Map) Reset() {
	m.entries = m.entries[:0]
	clear(m.index)
}

// AllAdded reports whether every entry is still freshly added. An empty map
// counts as freshly built.
func (m *Map) AllAdded() bool {
	for _, e := range m.entries {
		if !e.details.Add {
			return false
		}
	}
	return true
}
