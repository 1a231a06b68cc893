package kvcache

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Current   int64
	Remaining int64
	// RetryAfter is how long until the window frees up; zero when allowed.
	RetryAfter time.Duration
}

// FixedWindowLimiter counts requests per id in fixed windows: the first
// increment creates the counter with the window's TTL, so the whole count
// resets when the window's key expires. The boundary reset is deliberate;
// callers that need smoothing use SlidingWindowLimiter.
type FixedWindowLimiter struct {
	store  *Store
	limit  int64
	window time.Duration
}

func NewFixedWindowLimiter(store *Store, limit int64, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("%w: limit and window must be positive", ErrInvalidArgument)
	}
	return &FixedWindowLimiter{store: store, limit: limit, window: window}, nil
}

func (f *FixedWindowLimiter) Allow(id string) (Decision, error) {
	key := "ratelimit:fixed:" + id

	current, err := f.store.IncrBy(key, 1, f.window)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Allowed:   current <= f.limit,
		Limit:     f.limit,
		Current:   current,
		Remaining: f.limit - current,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		if info, ok := f.store.Info(key); ok && info.HasTTL {
			d.RetryAfter = info.TTL
		}
	}
	return d, nil
}

// SlidingWindowLimiter keeps a per-id sorted-set log of request
// timestamps. Each check prunes entries older than the window and admits
// while the survivor count is under the limit, so the rate rolls smoothly
// instead of resetting at window boundaries.
type SlidingWindowLimiter struct {
	store  *Store
	limit  int
	window time.Duration
}

func NewSlidingWindowLimiter(store *Store, limit int, window time.Duration) (*SlidingWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("%w: limit and window must be positive", ErrInvalidArgument)
	}
	return &SlidingWindowLimiter{store: store, limit: limit, window: window}, nil
}

func (s *SlidingWindowLimiter) Allow(id string) (Decision, error) {
	key := "ratelimit:sliding:" + id
	now := s.store.Now()
	cutoff := float64(now.Add(-s.window).UnixNano())

	if _, err := s.store.ZRemRangeByScore(key, math.Inf(-1), cutoff); err != nil {
		return Decision{}, err
	}
	count, err := s.store.ZCard(key)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Limit: int64(s.limit), Current: int64(count)}
	if count >= s.limit {
		// Oldest surviving timestamp decides when a slot frees up.
		oldest, zerr := s.store.ZRange(key, 0, 0)
		if zerr == nil && len(oldest) == 1 {
			freeAt := time.Unix(0, int64(oldest[0].Score)).Add(s.window)
			d.RetryAfter = freeAt.Sub(now)
		}
		return d, nil
	}

	member := fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString())
	if _, err := s.store.ZAdd(key, member, float64(now.UnixNano())); err != nil {
		return Decision{}, err
	}
	// The log only needs to outlive its own window.
	if _, err := s.store.Touch(key, s.window); err != nil {
		return Decision{}, err
	}

	d.Allowed = true
	d.Current++
	d.Remaining = int64(s.limit - count - 1)
	return d, nil
}
