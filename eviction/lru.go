package eviction

import (
	"container/list"
	"time"
)

// LRU keeps candidates on a recency list: front is most recently used, the
// victim comes from the back. Fresh inserts go to the front, so untouched
// entries drain in insertion order, which is the required tie-break.
type LRU struct {
	volatileOnly bool
	order        *list.List
	index        map[string]*list.Element
}

func NewLRU(volatileOnly bool) *LRU {
	return &LRU{
		volatileOnly: volatileOnly,
		order:        list.New(),
		index:        make(map[string]*list.Element),
	}
}

func (l *LRU) OnAccess(key string) {
	if elem, ok := l.index[key]; ok {
		l.order.MoveToFront(elem)
	}
}

func (l *LRU) OnInsert(key string, seq uint64, expiresAt time.Time) {
	if l.volatileOnly && expiresAt.IsZero() {
		return
	}
	if elem, ok := l.index[key]; ok {
		l.order.MoveToFront(elem)
		return
	}
	l.index[key] = l.order.PushFront(key)
}

func (l *LRU) OnUpdate(key string, expiresAt time.Time) {
	elem, tracked := l.index[key]

	if l.volatileOnly && expiresAt.IsZero() {
		if tracked {
			l.order.Remove(elem)
			delete(l.index, key)
		}
		return
	}

	// A write counts as a use.
	if tracked {
		l.order.MoveToFront(elem)
		return
	}
	l.index[key] = l.order.PushFront(key)
}

func (l *LRU) OnDelete(key string) {
	if elem, ok := l.index[key]; ok {
		l.order.Remove(elem)
		delete(l.index, key)
	}
}

func (l *LRU) Victim() (string, bool) {
	elem := l.order.Back()
	if elem == nil {
		return "", false
	}
	return elem.Value.(string), true
}

func (l *LRU) Decay() {}

func (l *LRU) Len() int { return l.order.Len() }

func (l *LRU) Clear() {
	l.order.Init()
	l.index = make(map[string]*list.Element)
}

var _ Policy = (*LRU)(nil)
