package eviction

import (
	"math/rand"
	"time"
)

// Random picks victims uniformly from the candidate set. A key slice with
// swap-remove keeps every operation O(1).
type Random struct {
	volatileOnly bool
	keys         []string
	pos          map[string]int
	rng          *rand.Rand
}

func NewRandom(volatileOnly bool) *Random {
	return &Random{
		volatileOnly: volatileOnly,
		pos:          make(map[string]int),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Random) OnAccess(key string) {}

func (r *Random) OnInsert(key string, seq uint64, expiresAt time.Time) {
	if r.volatileOnly && expiresAt.IsZero() {
		return
	}
	if _, ok := r.pos[key]; ok {
		return
	}
	r.pos[key] = len(r.keys)
	r.keys = append(r.keys, key)
}

func (r *Random) OnUpdate(key string, expiresAt time.Time) {
	if r.volatileOnly && expiresAt.IsZero() {
		r.OnDelete(key)
		return
	}
	r.OnInsert(key, 0, expiresAt)
}

func (r *Random) OnDelete(key string) {
	i, ok := r.pos[key]
	if !ok {
		return
	}
	last := len(r.keys) - 1
	r.keys[i] = r.keys[last]
	r.pos[r.keys[i]] = i
	r.keys = r.keys[:last]
	delete(r.pos, key)
}

func (r *Random) Victim() (string, bool) {
	if len(r.keys) == 0 {
		return "", false
	}
	return r.keys[r.rng.Intn(len(r.keys))], true
}

func (r *Random) Decay() {}

func (r *Random) Len() int { return len(r.keys) }

func (r *Random) Clear() {
	r.keys = nil
	r.pos = make(map[string]int)
}

var _ Policy = (*Random)(nil)
