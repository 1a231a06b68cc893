package kvcache

type RemovalReason uint8

const (
	ReasonDeleted RemovalReason = iota + 1
	ReasonExpired
	ReasonEvicted
)

func (r RemovalReason) String() string {
	switch r {
	case ReasonDeleted:
		return "deleted"
	case ReasonExpired:
		return "expired"
	case ReasonEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// EventHandlers are invoked synchronously while the store lock is held;
// handlers must not call back into the store.
type EventHandlers struct {
	OnWrite   func(key string)
	OnRemoval func(reason RemovalReason, key string, value Value)
}
