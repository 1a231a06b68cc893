// Package kvcache is an in-memory key-value engine with per-key expiry,
// pluggable eviction under an entry budget, and the atomic primitives
// needed for locks and rate limiters.
package kvcache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FabioDiCeglie/kvcache/clock"
	"github.com/FabioDiCeglie/kvcache/eviction"
	"github.com/FabioDiCeglie/kvcache/storage"
)

type entry struct {
	value       Value
	expiresAt   time.Time // zero means no expiry
	createdAt   time.Time
	lastAccess  time.Time
	accessCount uint64
	seq         uint64
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store owns all entries. Operations on the same key are totally ordered;
// an entry past its deadline is never returned, whether or not the sweep
// has reclaimed it yet.
type Store struct {
	mu        sync.Mutex
	cfg       Config
	table     *storage.Table[*entry]
	policy    eviction.Policy
	clk       clock.Clock
	metrics   *Metrics
	events    EventHandlers
	seq       uint64
	lastDecay time.Time
	closed    bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clk = c }
}

func WithEventHandlers(h EventHandlers) Option {
	return func(s *Store) { s.events = h }
}

func Open(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	policy, err := eviction.New(cfg.EvictionPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := &Store{
		cfg:       cfg,
		table:     storage.NewTable[*entry](),
		policy:    policy,
		clk:       clock.System(),
		metrics:   &Metrics{},
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.lastDecay = s.clk.Now()

	if cfg.SweepInterval > 0 {
		go s.sweepLoop()
	}

	return s, nil
}

// Now exposes the store's clock so collaborators built on top (limiters,
// lock holders) share its notion of time.
func (s *Store) Now() time.Time { return s.clk.Now() }

// Get returns a snapshot of the value under key, or ok=false if the key is
// absent or expired. An expired entry is reclaimed on the spot.
func (s *Store) Get(key string) (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Value{}, false
	}

	e, ok := s.lookup(key)
	if !ok {
		s.metrics.Misses.Add(1)
		return Value{}, false
	}

	s.touchAccessLocked(key, e)
	s.metrics.Hits.Add(1)
	return e.value.snapshot(), true
}

// GetString returns the string under key. Absence (and expiry) is
// ErrNotFound; a key holding another kind is a type mismatch.
func (s *Store) GetString(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		s.metrics.Misses.Add(1)
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	str, isStr := e.value.Str()
	if !isStr {
		return "", fmt.Errorf("%w: string read on %s value", ErrTypeMismatch, e.value.kind)
	}
	s.touchAccessLocked(key, e)
	s.metrics.Hits.Add(1)
	return str, nil
}

// Set overwrites key unconditionally. A zero ttl clears any prior expiry;
// a positive ttl sets a fresh one; a negative ttl is rejected.
func (s *Store) Set(key string, value Value, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("%w: negative ttl", ErrInvalidArgument)
	}
	if value.kind == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		return s.insertLocked(key, value, ttl)
	}

	now := s.clk.Now()
	e.value = value
	e.lastAccess = now
	e.accessCount++
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	s.writeBackLocked(key, e)
	return nil
}

// SetIfAbsent writes only when key is absent or expired. This is the
// acquisition primitive for locks and negative caches.
func (s *Store) SetIfAbsent(key string, value Value, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		return false, fmt.Errorf("%w: negative ttl", ErrInvalidArgument)
	}
	if value.kind == 0 {
		return false, fmt.Errorf("%w: empty value", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	if err := s.insertLocked(key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes key. A key that has already expired counts as absent, so
// deleting it returns false, not an error.
func (s *Store) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	if _, ok := s.lookup(key); !ok {
		return false, nil
	}
	s.removeLocked(key, ReasonDeleted)
	return true, nil
}

// CompareAndDelete removes key only when it holds the expected string.
// This is the safe lock release: a stale token never deletes a lock that
// someone else acquired after expiry.
func (s *Store) CompareAndDelete(key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	str, isStr := e.value.Str()
	if !isStr {
		return false, fmt.Errorf("%w: compare-and-delete on %s value", ErrTypeMismatch, e.value.kind)
	}
	if str != expected {
		return false, nil
	}
	s.removeLocked(key, ReasonDeleted)
	return true, nil
}

// CompareAndTouch resets key's expiry only when it holds the expected
// string. Lock holders use it to extend their lease without risking
// extending someone else's.
func (s *Store) CompareAndTouch(key, expected string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("%w: ttl must be positive", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	str, isStr := e.value.Str()
	if !isStr {
		return false, fmt.Errorf("%w: compare-and-touch on %s value", ErrTypeMismatch, e.value.kind)
	}
	if str != expected {
		return false, nil
	}
	s.setExpiryLocked(key, e, s.clk.Now().Add(ttl))
	return true, nil
}

// IncrBy atomically adds delta to the counter under key, creating it with
// value delta (and ttlIfCreated, when positive) if absent. The first
// increment in a rate-limit window therefore creates the window's counter
// and its deadline in one step.
func (s *Store) IncrBy(key string, delta int64, ttlIfCreated time.Duration) (int64, error) {
	if ttlIfCreated < 0 {
		return 0, fmt.Errorf("%w: negative ttl", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		if err := s.insertLocked(key, IntValue(delta), ttlIfCreated); err != nil {
			return 0, err
		}
		return delta, nil
	}

	n, isInt := e.value.Int()
	if !isInt {
		return 0, fmt.Errorf("%w: increment on %s value", ErrTypeMismatch, e.value.kind)
	}
	n += delta
	e.value = IntValue(n)
	e.lastAccess = s.clk.Now()
	e.accessCount++
	s.writeBackLocked(key, e)
	return n, nil
}

// Touch resets key's expiry without altering its value.
func (s *Store) Touch(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("%w: ttl must be positive", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	s.setExpiryLocked(key, e, s.clk.Now().Add(ttl))
	return true, nil
}

// Persist removes key's expiry. Returns true only when the key existed and
// actually had one.
func (s *Store) Persist(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	e, ok := s.lookup(key)
	if !ok || e.expiresAt.IsZero() {
		return false, nil
	}
	s.setExpiryLocked(key, e, time.Time{})
	return true, nil
}

// EntryInfo is a metadata snapshot for one entry.
type EntryInfo struct {
	Kind        Kind
	HasTTL      bool
	TTL         time.Duration
	CreatedAt   time.Time
	LastAccess  time.Time
	AccessCount uint64
}

// Info inspects key without counting as an access.
func (s *Store) Info(key string) (EntryInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return EntryInfo{}, false
	}

	e, ok := s.lookup(key)
	if !ok {
		return EntryInfo{}, false
	}

	info := EntryInfo{
		Kind:        e.value.kind,
		CreatedAt:   e.createdAt,
		LastAccess:  e.lastAccess,
		AccessCount: e.accessCount,
	}
	if !e.expiresAt.IsZero() {
		info.HasTTL = true
		info.TTL = e.expiresAt.Sub(s.clk.Now())
	}
	return info, true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Len()
}

// Keys returns the live (non-expired) keys.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	keys := make([]string, 0, s.table.Len())
	s.table.Range(func(k string, e *entry) bool {
		if !e.expired(now) {
			keys = append(keys, k)
		}
		return true
	})
	return keys
}

// Flush discards every entry.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.table.Clear()
	if s.policy != nil {
		s.policy.Clear()
	}
	return nil
}

// Configure swaps the eviction policy and budget at runtime. Candidate
// state is rebuilt in last-access order so recency survives the switch;
// LFU frequencies restart at one and converge through decay. If the new
// budget is smaller than the current population, the store evicts down to
// it immediately.
func (s *Store) Configure(kind eviction.Kind, maxEntries int) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown eviction policy %q", ErrInvalidArgument, kind)
	}
	if maxEntries < 0 {
		return fmt.Errorf("%w: negative budget", ErrInvalidArgument)
	}
	if kind != eviction.None && maxEntries <= 0 {
		return fmt.Errorf("%w: policy %q requires a budget", ErrInvalidArgument, kind)
	}

	policy, err := eviction.New(kind)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.cfg.EvictionPolicy = kind
	s.cfg.MaxEntries = maxEntries
	s.policy = policy

	if policy == nil {
		return nil
	}

	type seeded struct {
		key string
		e   *entry
	}
	all := make([]seeded, 0, s.table.Len())
	s.table.Range(func(k string, e *entry) bool {
		all = append(all, seeded{k, e})
		return true
	})
	sort.Slice(all, func(i, j int) bool {
		if all[i].e.lastAccess.Equal(all[j].e.lastAccess) {
			return all[i].e.seq < all[j].e.seq
		}
		return all[i].e.lastAccess.Before(all[j].e.lastAccess)
	})
	for _, se := range all {
		policy.OnInsert(se.key, se.e.seq, se.e.expiresAt)
	}

	for maxEntries > 0 && s.table.Len() > maxEntries {
		key, ok := policy.Victim()
		if !ok {
			break
		}
		s.removeLocked(key, ReasonEvicted)
	}
	return nil
}

// SweepExpired runs the active reclamation pass: sample a bounded batch of
// volatile keys, remove the dead ones, and repeat while a quarter or more
// of the sample was expired (the same stop rule Redis uses). The store
// lock is released between batches so foreground operations are never
// blocked for more than one batch.
func (s *Store) SweepExpired() int {
	sample := s.cfg.SweepSampleSize
	if sample <= 0 {
		sample = 20
	}

	total := 0
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return total
		}
		keys := s.table.SampleVolatile(sample)
		now := s.clk.Now()
		expired := 0
		for _, k := range keys {
			if e, ok := s.table.Load(k); ok && e.expired(now) {
				s.removeLocked(k, ReasonExpired)
				expired++
			}
		}
		s.mu.Unlock()

		total += expired
		if len(keys) == 0 || expired*4 < len(keys) {
			return total
		}
	}
}

func (s *Store) Metrics() MetricsSnapshot { return s.metrics.Snapshot() }

func (s *Store) ResetMetrics() { s.metrics.Reset() }

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	hasSweep := s.cfg.SweepInterval > 0
	s.mu.Unlock()

	close(s.stopCh)
	if hasSweep {
		<-s.stoppedCh
	}
	return nil
}

func (s *Store) sweepLoop() {
	defer close(s.stoppedCh)

	ticker := s.clk.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C():
			s.SweepExpired()
			s.maybeDecay()
		}
	}
}

func (s *Store) maybeDecay() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.policy == nil || s.cfg.LFUDecayInterval <= 0 {
		return
	}
	now := s.clk.Now()
	if now.Sub(s.lastDecay) < s.cfg.LFUDecayInterval {
		return
	}
	s.policy.Decay()
	s.lastDecay = now
}

// lookup loads key, lazily reclaiming it when expired. Caller holds mu.
func (s *Store) lookup(key string) (*entry, bool) {
	e, ok := s.table.Load(key)
	if !ok {
		return nil, false
	}
	if e.expired(s.clk.Now()) {
		s.removeLocked(key, ReasonExpired)
		return nil, false
	}
	return e, true
}

func (s *Store) touchAccessLocked(key string, e *entry) {
	e.lastAccess = s.clk.Now()
	e.accessCount++
	if s.policy != nil {
		s.policy.OnAccess(key)
	}
}

// insertLocked adds a new entry, freeing room first. The write that would
// exceed the budget never lands unless eviction succeeds.
func (s *Store) insertLocked(key string, v Value, ttl time.Duration) error {
	if err := s.ensureCapacityLocked(); err != nil {
		return err
	}

	now := s.clk.Now()
	s.seq++
	e := &entry{
		value:      v,
		createdAt:  now,
		lastAccess: now,
		seq:        s.seq,
	}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	s.table.Store(key, e, !e.expiresAt.IsZero())
	if s.policy != nil {
		s.policy.OnInsert(key, e.seq, e.expiresAt)
	}
	s.metrics.Writes.Add(1)
	if s.events.OnWrite != nil {
		s.events.OnWrite(key)
	}
	return nil
}

// writeBackLocked records an in-place mutation of an existing entry.
func (s *Store) writeBackLocked(key string, e *entry) {
	s.table.SetVolatile(key, !e.expiresAt.IsZero())
	if s.policy != nil {
		s.policy.OnUpdate(key, e.expiresAt)
	}
	s.metrics.Writes.Add(1)
	if s.events.OnWrite != nil {
		s.events.OnWrite(key)
	}
}

func (s *Store) setExpiryLocked(key string, e *entry, expiresAt time.Time) {
	e.expiresAt = expiresAt
	s.table.SetVolatile(key, !expiresAt.IsZero())
	if s.policy != nil {
		s.policy.OnUpdate(key, expiresAt)
	}
}

func (s *Store) ensureCapacityLocked() error {
	if s.cfg.MaxEntries <= 0 {
		return nil
	}
	for s.table.Len() >= s.cfg.MaxEntries {
		if s.policy == nil {
			s.metrics.Rejections.Add(1)
			return ErrResourceExhausted
		}
		key, ok := s.policy.Victim()
		if !ok {
			s.metrics.Rejections.Add(1)
			return ErrResourceExhausted
		}
		s.removeLocked(key, ReasonEvicted)
	}
	return nil
}

func (s *Store) removeLocked(key string, reason RemovalReason) {
	e, ok := s.table.Load(key)
	if !ok {
		return
	}
	s.table.Delete(key)
	if s.policy != nil {
		s.policy.OnDelete(key)
	}
	switch reason {
	case ReasonDeleted:
		s.metrics.Deletes.Add(1)
	case ReasonExpired:
		s.metrics.Expirations.Add(1)
	case ReasonEvicted:
		s.metrics.Evictions.Add(1)
	}
	if s.events.OnRemoval != nil {
		s.events.OnRemoval(reason, key, e.value)
	}
}
