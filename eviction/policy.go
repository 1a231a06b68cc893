// Package eviction implements the victim-selection policies the store
// consults under budget pressure. Policies keep their own bookkeeping,
// fed by the store through the On* callbacks; they hold no locks because
// the store serializes all calls.
package eviction

import (
	"fmt"
	"time"
)

type Kind string

const (
	// None rejects writes that would exceed the budget instead of evicting.
	None           Kind = "none"
	AllKeysLRU     Kind = "allkeys-lru"
	VolatileLRU    Kind = "volatile-lru"
	AllKeysLFU     Kind = "allkeys-lfu"
	VolatileLFU    Kind = "volatile-lfu"
	AllKeysRandom  Kind = "allkeys-random"
	VolatileRandom Kind = "volatile-random"
	VolatileTTL    Kind = "volatile-ttl"
)

func (k Kind) Valid() bool {
	switch k {
	case None, AllKeysLRU, VolatileLRU, AllKeysLFU, VolatileLFU,
		AllKeysRandom, VolatileRandom, VolatileTTL:
		return true
	}
	return false
}

// VolatileScoped reports whether the policy only considers entries that
// have an expiry set.
func (k Kind) VolatileScoped() bool {
	switch k {
	case VolatileLRU, VolatileLFU, VolatileRandom, VolatileTTL:
		return true
	}
	return false
}

// Policy tracks eviction candidates. seq is the entry's insertion sequence
// number; ordered policies use it to break ties deterministically, oldest
// insertion first. A zero expiresAt means the entry has no expiry, which
// removes it from volatile-scoped candidate sets.
type Policy interface {
	OnAccess(key string)
	OnInsert(key string, seq uint64, expiresAt time.Time)
	OnUpdate(key string, expiresAt time.Time)
	OnDelete(key string)
	Victim() (key string, ok bool)
	Decay()
	Len() int
	Clear()
}

// New builds the policy for kind. None yields a nil Policy: the caller
// rejects over-budget writes itself.
func New(kind Kind) (Policy, error) {
	switch kind {
	case None:
		return nil, nil
	case AllKeysLRU:
		return NewLRU(false), nil
	case VolatileLRU:
		return NewLRU(true), nil
	case AllKeysLFU:
		return NewLFU(false), nil
	case VolatileLFU:
		return NewLFU(true), nil
	case AllKeysRandom:
		return NewRandom(false), nil
	case VolatileRandom:
		return NewRandom(true), nil
	case VolatileTTL:
		return NewTTL(), nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", kind)
	}
}
