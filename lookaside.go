package kvcache

import (
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// sentinelAbsent marks a cached "looked up, found nothing" result. Only
// the look-aside layer interprets it; to the store it is an ordinary
// string value.
const sentinelAbsent = "\x00kvcache:absent\x00"

// Loader fetches a value from the backing source. found=false means the
// source has no value for key, which is itself cacheable.
type Loader interface {
	Load(key string) (value string, found bool, err error)
}

type LoaderFunc func(key string) (string, bool, error)

func (f LoaderFunc) Load(key string) (string, bool, error) { return f(key) }

// Lookaside is a read-through front on the store. Concurrent misses for
// the same key collapse into a single loader call, and misses in the
// backing source are remembered under a short TTL so repeated lookups for
// absent keys stop hammering the source.
type Lookaside struct {
	store  *Store
	loader Loader
	ttl    time.Duration
	negTTL time.Duration
	group  singleflight.Group
}

func NewLookaside(store *Store, loader Loader, ttl, negTTL time.Duration) *Lookaside {
	return &Lookaside{
		store:  store,
		loader: loader,
		ttl:    ttl,
		negTTL: negTTL,
	}
}

// Get returns the cached value for key, loading and caching it on a miss.
// found=false with a nil error means the backing source has no value.
func (l *Lookaside) Get(key string) (string, bool, error) {
	switch str, err := l.store.GetString(key); {
	case err == nil:
		if str == sentinelAbsent {
			return "", false, nil
		}
		return str, true, nil
	case !errors.Is(err, ErrNotFound):
		return "", false, err
	}

	type loaded struct {
		value string
		found bool
	}
	res, err, _ := l.group.Do(key, func() (any, error) {
		value, found, err := l.loader.Load(key)
		if err != nil {
			return nil, err
		}
		if !found {
			// Remember the miss, but never clobber a value written since.
			if _, err := l.store.SetIfAbsent(key, StringValue(sentinelAbsent), l.negTTL); err != nil {
				return nil, err
			}
			return loaded{}, nil
		}
		if err := l.store.Set(key, StringValue(value), l.ttl); err != nil {
			return nil, err
		}
		return loaded{value: value, found: true}, nil
	})
	if err != nil {
		return "", false, err
	}

	out := res.(loaded)
	return out.value, out.found, nil
}

// Invalidate drops key so the next Get reloads it; it also clears a
// cached negative result.
func (l *Lookaside) Invalidate(key string) (bool, error) {
	return l.store.Delete(key)
}
