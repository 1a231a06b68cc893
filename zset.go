package kvcache

import "sort"

// ScoredMember pairs a sorted-set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// SortedSet keeps members ordered by (score, member). The ordered slice is
// maintained on every write so rank and range reads are a binary search
// plus a copy.
type SortedSet struct {
	scores map[string]float64
	sorted []ScoredMember
}

func newSortedSet() *SortedSet {
	return &SortedSet{scores: make(map[string]float64)}
}

func (z *SortedSet) Len() int { return len(z.sorted) }

// Add inserts member with score, or updates its score. Returns true when
// the member was new.
func (z *SortedSet) Add(member string, score float64) bool {
	old, exists := z.scores[member]
	if exists {
		if old == score {
			return false
		}
		z.removeSorted(member, old)
	}
	z.scores[member] = score
	z.insertSorted(member, score)
	return !exists
}

func (z *SortedSet) Remove(member string) bool {
	score, ok := z.scores[member]
	if !ok {
		return false
	}
	delete(z.scores, member)
	z.removeSorted(member, score)
	return true
}

func (z *SortedSet) Score(member string) (float64, bool) {
	score, ok := z.scores[member]
	return score, ok
}

// Rank returns the zero-based position of member in score order.
func (z *SortedSet) Rank(member string) (int, bool) {
	score, ok := z.scores[member]
	if !ok {
		return 0, false
	}
	return z.position(member, score), true
}

// IncrBy adds delta to member's score, inserting it at delta if absent.
func (z *SortedSet) IncrBy(member string, delta float64) float64 {
	score := z.scores[member] + delta
	z.Add(member, score)
	return score
}

// RangeByRank returns members between start and stop inclusive. Negative
// indexes count from the end, -1 being the highest-scored member.
func (z *SortedSet) RangeByRank(start, stop int) []ScoredMember {
	n := len(z.sorted)
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return nil
	}
	out := make([]ScoredMember, stop-start+1)
	copy(out, z.sorted[start:stop+1])
	return out
}

// RangeByScore returns members with min <= score <= max in score order.
func (z *SortedSet) RangeByScore(min, max float64) []ScoredMember {
	lo := sort.Search(len(z.sorted), func(i int) bool {
		return z.sorted[i].Score >= min
	})
	hi := sort.Search(len(z.sorted), func(i int) bool {
		return z.sorted[i].Score > max
	})
	if lo >= hi {
		return nil
	}
	out := make([]ScoredMember, hi-lo)
	copy(out, z.sorted[lo:hi])
	return out
}

// RemoveRangeByScore deletes members with min <= score <= max and returns
// how many were removed.
func (z *SortedSet) RemoveRangeByScore(min, max float64) int {
	victims := z.RangeByScore(min, max)
	for _, sm := range victims {
		delete(z.scores, sm.Member)
	}
	if len(victims) > 0 {
		lo := z.lowerBound(min)
		z.sorted = append(z.sorted[:lo], z.sorted[lo+len(victims):]...)
	}
	return len(victims)
}

func (z *SortedSet) clone() *SortedSet {
	scores := make(map[string]float64, len(z.scores))
	for m, s := range z.scores {
		scores[m] = s
	}
	sorted := make([]ScoredMember, len(z.sorted))
	copy(sorted, z.sorted)
	return &SortedSet{scores: scores, sorted: sorted}
}

func (z *SortedSet) lowerBound(min float64) int {
	return sort.Search(len(z.sorted), func(i int) bool {
		return z.sorted[i].Score >= min
	})
}

// position locates member, which must be present with the given score.
func (z *SortedSet) position(member string, score float64) int {
	i := sort.Search(len(z.sorted), func(i int) bool {
		if z.sorted[i].Score != score {
			return z.sorted[i].Score > score
		}
		return z.sorted[i].Member >= member
	})
	return i
}

func (z *SortedSet) insertSorted(member string, score float64) {
	i := z.position(member, score)
	z.sorted = append(z.sorted, ScoredMember{})
	copy(z.sorted[i+1:], z.sorted[i:])
	z.sorted[i] = ScoredMember{Member: member, Score: score}
}

func (z *SortedSet) removeSorted(member string, score float64) {
	i := z.position(member, score)
	z.sorted = append(z.sorted[:i], z.sorted[i+1:]...)
}
