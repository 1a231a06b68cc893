package kvcache

import (
	"time"

	"github.com/google/uuid"
)

// Lock is a lease on a key. Presence of the key means held; the random
// token stored as its value identifies the holder, so a holder that
// outlives its TTL can never release (or extend) a lock someone else
// acquired in the meantime.
//
// Acquire never blocks. Callers that want blocking semantics retry with
// backoff above this layer.
type Lock struct {
	store *Store
	key   string
	token string
	ttl   time.Duration
}

func NewLock(store *Store, key string, ttl time.Duration) *Lock {
	return &Lock{
		store: store,
		key:   key,
		token: uuid.NewString(),
		ttl:   ttl,
	}
}

// Token returns the holder identity; useful for logging and tests.
func (l *Lock) Token() string { return l.token }

// Acquire attempts to take the lock. False means another holder has it.
func (l *Lock) Acquire() (bool, error) {
	return l.store.SetIfAbsent(l.key, StringValue(l.token), l.ttl)
}

// Release drops the lock if this instance still holds it. Releasing a
// lock that expired and was re-acquired by someone else is a no-op.
func (l *Lock) Release() (bool, error) {
	return l.store.CompareAndDelete(l.key, l.token)
}

// Extend renews the lease if this instance still holds it.
func (l *Lock) Extend() (bool, error) {
	return l.store.CompareAndTouch(l.key, l.token, l.ttl)
}
