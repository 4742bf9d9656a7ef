// Package sync provides generic synchronized data structures.
package sync

import "sync"

// Map is a generic synchronized map. It is a wrapper around Go's
// standard sync.Map, with all the same caveats.
type Map[K comparable, V any] struct {
	m sync.Map
}

// Store a key,value pair.
func (sm *Map[K, V]) Store(k K, v V) {
	sm.m.Store(k, v)
}

// Load returns a value given a key and whether the key was present.
func (sm *Map[K, V]) Load(k K) (V, bool) {
	vAny, ok := sm.m.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	return vAny.(V), true
}

// LoadOrStore returns the existing value for the key if present.
// Otherwise, it stores and returns the given value. The loaded result
// is true if the value was already in the map.
func (sm *Map[K, V]) LoadOrStore(k K, v V) (V, bool) {
	vAny, loaded := sm.m.LoadOrStore(k, v)
	return vAny.(V), loaded
}

// Iter returns an iterator to range over the elements of the map.
func (sm *Map[K, V]) Iter() func(func(K, V) bool) {
	return func(yield func(K, V) bool) {
		sm.m.Range(func(k, v any) bool {
			return yield(k.(K), v.(V))
		})
	}
}
