package eviction

import "time"

// LFU groups candidates into frequency buckets and evicts from the lowest
// one. Within a bucket, the oldest insertion wins the tie. Decay halves
// every count so frequency reflects recent popularity rather than lifetime
// totals.
type LFU struct {
	volatileOnly bool
	entries      map[string]*lfuEntry
	buckets      map[uint32]map[string]*lfuEntry
	minFreq      uint32
	minValid     bool
}

type lfuEntry struct {
	seq  uint64
	freq uint32
}

func NewLFU(volatileOnly bool) *LFU {
	return &LFU{
		volatileOnly: volatileOnly,
		entries:      make(map[string]*lfuEntry),
		buckets:      make(map[uint32]map[string]*lfuEntry),
	}
}

func (l *LFU) OnAccess(key string) {
	if e, ok := l.entries[key]; ok {
		l.bump(key, e)
	}
}

func (l *LFU) OnInsert(key string, seq uint64, expiresAt time.Time) {
	if l.volatileOnly && expiresAt.IsZero() {
		return
	}
	if e, ok := l.entries[key]; ok {
		l.bump(key, e)
		return
	}
	e := &lfuEntry{seq: seq, freq: 1}
	l.entries[key] = e
	l.addToBucket(key, e)
	if !l.minValid || e.freq < l.minFreq {
		l.minFreq = e.freq
		l.minValid = true
	}
}

func (l *LFU) OnUpdate(key string, expiresAt time.Time) {
	e, tracked := l.entries[key]

	if l.volatileOnly && expiresAt.IsZero() {
		if tracked {
			l.drop(key, e)
		}
		return
	}

	if tracked {
		l.bump(key, e)
		return
	}
	// Entry just became eligible (e.g. expiry added via touch). Its
	// insertion sequence is unknown here; treating it as newest keeps the
	// tie-break stable for everything already tracked.
	l.OnInsert(key, ^uint64(0), expiresAt)
}

func (l *LFU) OnDelete(key string) {
	if e, ok := l.entries[key]; ok {
		l.drop(key, e)
	}
}

func (l *LFU) Victim() (string, bool) {
	if len(l.entries) == 0 {
		return "", false
	}
	if !l.minValid {
		l.recomputeMin()
	}
	bucket := l.buckets[l.minFreq]

	// Oldest insertion in the lowest bucket.
	var victim string
	var found bool
	var bestSeq uint64
	for k, e := range bucket {
		if !found || e.seq < bestSeq {
			victim, bestSeq, found = k, e.seq, true
		}
	}
	return victim, found
}

// Decay halves every frequency, flooring at one, and rebuilds the buckets.
func (l *LFU) Decay() {
	rebuilt := make(map[uint32]map[string]*lfuEntry)
	for key, e := range l.entries {
		e.freq /= 2
		if e.freq == 0 {
			e.freq = 1
		}
		b, ok := rebuilt[e.freq]
		if !ok {
			b = make(map[string]*lfuEntry)
			rebuilt[e.freq] = b
		}
		b[key] = e
	}
	l.buckets = rebuilt
	l.minValid = false
}

func (l *LFU) Len() int { return len(l.entries) }

func (l *LFU) Clear() {
	l.entries = make(map[string]*lfuEntry)
	l.buckets = make(map[uint32]map[string]*lfuEntry)
	l.minValid = false
}

func (l *LFU) bump(key string, e *lfuEntry) {
	l.removeFromBucket(key, e)
	e.freq++
	l.addToBucket(key, e)
}

func (l *LFU) drop(key string, e *lfuEntry) {
	l.removeFromBucket(key, e)
	delete(l.entries, key)
}

func (l *LFU) addToBucket(key string, e *lfuEntry) {
	b, ok := l.buckets[e.freq]
	if !ok {
		b = make(map[string]*lfuEntry)
		l.buckets[e.freq] = b
	}
	b[key] = e
}

func (l *LFU) removeFromBucket(key string, e *lfuEntry) {
	b := l.buckets[e.freq]
	delete(b, key)
	if len(b) == 0 {
		delete(l.buckets, e.freq)
		if l.minValid && l.minFreq == e.freq {
			// The next occupied bucket for a bump is freq+1; anything else
			// forces a rescan on the next Victim call.
			if _, ok := l.buckets[e.freq+1]; ok {
				l.minFreq = e.freq + 1
			} else {
				l.minValid = false
			}
		}
	}
}

func (l *LFU) recomputeMin() {
	first := true
	for freq := range l.buckets {
		if first || freq < l.minFreq {
			l.minFreq = freq
			first = false
		}
	}
	l.minValid = !first
}

var _ Policy = (*LFU)(nil)
