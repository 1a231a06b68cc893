// Package storage holds the in-memory backend for the store. The Table is
// not safe for concurrent use; callers serialize access.
package storage

type Table[V any] struct {
	items    map[string]V
	volatile map[string]struct{}
}

func NewTable[V any]() *Table[V] {
	return &Table[V]{
		items:    make(map[string]V),
		volatile: make(map[string]struct{}),
	}
}

func (t *Table[V]) Load(key string) (V, bool) {
	v, ok := t.items[key]
	return v, ok
}

// Store inserts or overwrites key. volatile marks whether the entry carries
// an expiry, which makes it a candidate for sweep sampling.
func (t *Table[V]) Store(key string, value V, volatile bool) {
	t.items[key] = value
	t.SetVolatile(key, volatile)
}

// SetVolatile moves key in or out of the sweep candidate index.
func (t *Table[V]) SetVolatile(key string, volatile bool) {
	if volatile {
		t.volatile[key] = struct{}{}
	} else {
		delete(t.volatile, key)
	}
}

func (t *Table[V]) Delete(key string) bool {
	_, existed := t.items[key]
	delete(t.items, key)
	delete(t.volatile, key)
	return existed
}

func (t *Table[V]) Len() int { return len(t.items) }

func (t *Table[V]) VolatileLen() int { return len(t.volatile) }

// SampleVolatile returns up to n keys that carry an expiry. Go's randomized
// map iteration order makes this a uniform-ish sample, which keeps sweep
// cost independent of total key count.
func (t *Table[V]) SampleVolatile(n int) []string {
	if n <= 0 || len(t.volatile) == 0 {
		return nil
	}
	keys := make([]string, 0, n)
	for k := range t.volatile {
		keys = append(keys, k)
		if len(keys) == n {
			break
		}
	}
	return keys
}

func (t *Table[V]) Range(fn func(key string, value V) bool) {
	for k, v := range t.items {
		if !fn(k, v) {
			return
		}
	}
}

func (t *Table[V]) Clear() {
	t.items = make(map[string]V)
	t.volatile = make(map[string]struct{})
}
