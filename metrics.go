package kvcache

import "sync/atomic"

type Metrics struct {
	Hits        atomic.Uint64
	Misses      atomic.Uint64
	Writes      atomic.Uint64
	Deletes     atomic.Uint64
	Expirations atomic.Uint64
	Evictions   atomic.Uint64
	Rejections  atomic.Uint64
}

type MetricsSnapshot struct {
	Hits        uint64
	Misses      uint64
	Writes      uint64
	Deletes     uint64
	Expirations uint64
	Evictions   uint64
	Rejections  uint64
	HitRate     float64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	hits := m.Hits.Load()
	misses := m.Misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return MetricsSnapshot{
		Hits:        hits,
		Misses:      misses,
		Writes:      m.Writes.Load(),
		Deletes:     m.Deletes.Load(),
		Expirations: m.Expirations.Load(),
		Evictions:   m.Evictions.Load(),
		Rejections:  m.Rejections.Load(),
		HitRate:     hitRate,
	}
}

func (m *Metrics) Reset() {
	m.Hits.Store(0)
	m.Misses.Store(0)
	m.Writes.Store(0)
	m.Deletes.Store(0)
	m.Expirations.Store(0)
	m.Evictions.Store(0)
	m.Rejections.Store(0)
}
