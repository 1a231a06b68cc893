package kvcache

import (
	"fmt"
	"math"
)

// Hash and sorted-set operations. Each is atomic with respect to the whole
// entry: a concurrent reader sees the collection before or after the
// mutation, never between.

// HSet writes one field of the hash under key, creating the hash (with no
// expiry) if the key is absent.
func (s *Store) HSet(key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		v := newHashValue()
		v.hash[field] = value
		return s.insertLocked(key, v, 0)
	}
	if e.value.kind != KindHash {
		return fmt.Errorf("%w: hash write on %s value", ErrTypeMismatch, e.value.kind)
	}
	e.value.hash[field] = value
	e.lastAccess = s.clk.Now()
	e.accessCount++
	s.writeBackLocked(key, e)
	return nil
}

// HGet reads one field. Absence of the key or the field is ok=false, not
// an error.
func (s *Store) HGet(key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", false, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		s.metrics.Misses.Add(1)
		return "", false, nil
	}
	if e.value.kind != KindHash {
		return "", false, fmt.Errorf("%w: hash read on %s value", ErrTypeMismatch, e.value.kind)
	}
	s.touchAccessLocked(key, e)
	s.metrics.Hits.Add(1)
	v, exists := e.value.hash[field]
	return v, exists, nil
}

// HDel removes fields and returns how many existed. Deleting the last
// field removes the key.
func (s *Store) HDel(key string, fields ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		return 0, nil
	}
	if e.value.kind != KindHash {
		return 0, fmt.Errorf("%w: hash delete on %s value", ErrTypeMismatch, e.value.kind)
	}

	removed := 0
	for _, f := range fields {
		if _, exists := e.value.hash[f]; exists {
			delete(e.value.hash, f)
			removed++
		}
	}
	if len(e.value.hash) == 0 {
		s.removeLocked(key, ReasonDeleted)
		return removed, nil
	}
	if removed > 0 {
		e.lastAccess = s.clk.Now()
		e.accessCount++
		s.writeBackLocked(key, e)
	}
	return removed, nil
}

// HGetAll returns a copy of the whole hash; nil when the key is absent.
func (s *Store) HGetAll(key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		s.metrics.Misses.Add(1)
		return nil, nil
	}
	if e.value.kind != KindHash {
		return nil, fmt.Errorf("%w: hash read on %s value", ErrTypeMismatch, e.value.kind)
	}
	s.touchAccessLocked(key, e)
	s.metrics.Hits.Add(1)

	out := make(map[string]string, len(e.value.hash))
	for f, v := range e.value.hash {
		out[f] = v
	}
	return out, nil
}

// ZAdd inserts or rescores a member; true means the member was new. The
// sorted set is created (with no expiry) if the key is absent.
func (s *Store) ZAdd(key, member string, score float64) (bool, error) {
	if math.IsNaN(score) {
		return false, fmt.Errorf("%w: score is not a number", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		v := newSortedSetValue()
		v.zset.Add(member, score)
		if err := s.insertLocked(key, v, 0); err != nil {
			return false, err
		}
		return true, nil
	}
	if e.value.kind != KindSortedSet {
		return false, fmt.Errorf("%w: sorted-set write on %s value", ErrTypeMismatch, e.value.kind)
	}
	created := e.value.zset.Add(member, score)
	e.lastAccess = s.clk.Now()
	e.accessCount++
	s.writeBackLocked(key, e)
	return created, nil
}

// ZIncrBy adds delta to member's score, inserting the member (and the set)
// as needed.
func (s *Store) ZIncrBy(key, member string, delta float64) (float64, error) {
	if math.IsNaN(delta) {
		return 0, fmt.Errorf("%w: delta is not a number", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		v := newSortedSetValue()
		v.zset.Add(member, delta)
		if err := s.insertLocked(key, v, 0); err != nil {
			return 0, err
		}
		return delta, nil
	}
	if e.value.kind != KindSortedSet {
		return 0, fmt.Errorf("%w: sorted-set write on %s value", ErrTypeMismatch, e.value.kind)
	}
	score := e.value.zset.IncrBy(member, delta)
	e.lastAccess = s.clk.Now()
	e.accessCount++
	s.writeBackLocked(key, e)
	return score, nil
}

func (s *Store) ZScore(key, member string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, false, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		s.metrics.Misses.Add(1)
		return 0, false, nil
	}
	if e.value.kind != KindSortedSet {
		return 0, false, fmt.Errorf("%w: sorted-set read on %s value", ErrTypeMismatch, e.value.kind)
	}
	s.touchAccessLocked(key, e)
	s.metrics.Hits.Add(1)
	score, exists := e.value.zset.Score(member)
	return score, exists, nil
}

// ZRank returns member's zero-based position in score order.
func (s *Store) ZRank(key, member string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, false, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		s.metrics.Misses.Add(1)
		return 0, false, nil
	}
	if e.value.kind != KindSortedSet {
		return 0, false, fmt.Errorf("%w: sorted-set read on %s value", ErrTypeMismatch, e.value.kind)
	}
	s.touchAccessLocked(key, e)
	s.metrics.Hits.Add(1)
	rank, exists := e.value.zset.Rank(member)
	return rank, exists, nil
}

// ZRange returns members between ranks start and stop inclusive; negative
// indexes count from the highest score.
func (s *Store) ZRange(key string, start, stop int) ([]ScoredMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		s.metrics.Misses.Add(1)
		return nil, nil
	}
	if e.value.kind != KindSortedSet {
		return nil, fmt.Errorf("%w: sorted-set read on %s value", ErrTypeMismatch, e.value.kind)
	}
	s.touchAccessLocked(key, e)
	s.metrics.Hits.Add(1)
	return e.value.zset.RangeByRank(start, stop), nil
}

func (s *Store) ZRangeByScore(key string, min, max float64) ([]ScoredMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		s.metrics.Misses.Add(1)
		return nil, nil
	}
	if e.value.kind != KindSortedSet {
		return nil, fmt.Errorf("%w: sorted-set read on %s value", ErrTypeMismatch, e.value.kind)
	}
	s.touchAccessLocked(key, e)
	s.metrics.Hits.Add(1)
	return e.value.zset.RangeByScore(min, max), nil
}

// ZRem removes members; removing the last member removes the key.
func (s *Store) ZRem(key string, members ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		return 0, nil
	}
	if e.value.kind != KindSortedSet {
		return 0, fmt.Errorf("%w: sorted-set delete on %s value", ErrTypeMismatch, e.value.kind)
	}

	removed := 0
	for _, m := range members {
		if e.value.zset.Remove(m) {
			removed++
		}
	}
	return removed, s.finishZRemoval(key, e, removed)
}

// ZRemRangeByScore removes members with min <= score <= max.
func (s *Store) ZRemRangeByScore(key string, min, max float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		return 0, nil
	}
	if e.value.kind != KindSortedSet {
		return 0, fmt.Errorf("%w: sorted-set delete on %s value", ErrTypeMismatch, e.value.kind)
	}

	removed := e.value.zset.RemoveRangeByScore(min, max)
	return removed, s.finishZRemoval(key, e, removed)
}

func (s *Store) ZCard(key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		return 0, nil
	}
	if e.value.kind != KindSortedSet {
		return 0, fmt.Errorf("%w: sorted-set read on %s value", ErrTypeMismatch, e.value.kind)
	}
	return e.value.zset.Len(), nil
}

func (s *Store) finishZRemoval(key string, e *entry, removed int) error {
	if e.value.zset.Len() == 0 {
		s.removeLocked(key, ReasonDeleted)
		return nil
	}
	if removed > 0 {
		e.lastAccess = s.clk.Now()
		e.accessCount++
		s.writeBackLocked(key, e)
	}
	return nil
}
