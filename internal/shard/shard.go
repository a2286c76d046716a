// Package shard provides a string-keyed map split across independently
// locked shards. Operations on different keys rarely contend, and there is
// no lock spanning the whole map.
package shard

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultCount is the shard count used when New is given n <= 0.
const DefaultCount = 64

type bucket[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// Map is a sharded map. The zero value is not usable; call New.
type Map[V any] struct {
	buckets []*bucket[V]
}

// New returns a Map with n shards.
func New[V any](n int) *Map[V] {
	if n <= 0 {
		n = DefaultCount
	}
	m := &Map[V]{buckets: make([]*bucket[V], n)}
	for i := range m.buckets {
		m.buckets[i] = &bucket[V]{items: make(map[string]V)}
	}
	return m
}

func (m *Map[V]) bucketFor(key string) *bucket[V] {
	return m.buckets[xxhash.Sum64String(key)%uint64(len(m.buckets))]
}

// Update runs fn with exclusive access to the shard that owns key. fn may
// read and mutate items freely, including keys other than key that happen
// to share the shard.
func (m *Map[V]) Update(key string, fn func(items map[string]V)) {
	b := m.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.items)
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key string) (V, bool) {
	b := m.bucketFor(key)
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.items[key]
	return v, ok
}

// Sweep visits each shard in turn under its write lock and deletes every
// entry for which drop returns true. It returns the number deleted.
func (m *Map[V]) Sweep(drop func(key string, v V) bool) int {
	removed := 0
	for _, b := range m.buckets {
		b.mu.Lock()
		for k, v := range b.items {
			if drop(k, v) {
				delete(b.items, k)
				removed++
			}
		}
		b.mu.Unlock()
	}
	return removed
}

// Len returns the total number of entries. Shards are counted one at a
// time, so the result is approximate under concurrent writes.
func (m *Map[V]) Len() int {
	n := 0
	for _, b := range m.buckets {
		b.mu.RLock()
		n += len(b.items)
		b.mu.RUnlock()
	}
	return n
}
