package eviction

import (
	"container/heap"
	"time"
)

// TTL evicts the entry with the soonest deadline. Only entries that carry
// an expiry are candidates. Equal deadlines fall back to insertion order.
type TTL struct {
	heap  *deadlineHeap
	index map[string]*deadlineItem
}

func NewTTL() *TTL {
	h := &deadlineHeap{}
	heap.Init(h)
	return &TTL{heap: h, index: make(map[string]*deadlineItem)}
}

func (t *TTL) OnAccess(key string) {}

func (t *TTL) OnInsert(key string, seq uint64, expiresAt time.Time) {
	if expiresAt.IsZero() {
		return
	}
	if existing, ok := t.index[key]; ok {
		existing.expiresAt = expiresAt
		heap.Fix(t.heap, existing.pos)
		return
	}
	item := &deadlineItem{key: key, seq: seq, expiresAt: expiresAt}
	heap.Push(t.heap, item)
	t.index[key] = item
}

func (t *TTL) OnUpdate(key string, expiresAt time.Time) {
	existing, ok := t.index[key]
	if !ok {
		t.OnInsert(key, ^uint64(0), expiresAt)
		return
	}
	if expiresAt.IsZero() {
		heap.Remove(t.heap, existing.pos)
		delete(t.index, key)
		return
	}
	existing.expiresAt = expiresAt
	heap.Fix(t.heap, existing.pos)
}

func (t *TTL) OnDelete(key string) {
	if existing, ok := t.index[key]; ok {
		heap.Remove(t.heap, existing.pos)
		delete(t.index, key)
	}
}

func (t *TTL) Victim() (string, bool) {
	if t.heap.Len() == 0 {
		return "", false
	}
	return (*t.heap)[0].key, true
}

func (t *TTL) Decay() {}

func (t *TTL) Len() int { return t.heap.Len() }

func (t *TTL) Clear() {
	t.heap = &deadlineHeap{}
	heap.Init(t.heap)
	t.index = make(map[string]*deadlineItem)
}

type deadlineItem struct {
	key       string
	seq       uint64
	expiresAt time.Time
	pos       int
}

type deadlineHeap []*deadlineItem

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool {
	if h[i].expiresAt.Equal(h[j].expiresAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].expiresAt.Before(h[j].expiresAt)
}

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *deadlineHeap) Push(x any) {
	item := x.(*deadlineItem)
	item.pos = len(*h)
	*h = append(*h, item)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.pos = -1
	*h = old[:n-1]
	return item
}

var _ Policy = (*TTL)(nil)
