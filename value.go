package kvcache

// Kind tags the value variant an entry holds.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindHash
	KindSortedSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindHash:
		return "hash"
	case KindSortedSet:
		return "sortedset"
	default:
		return "unknown"
	}
}

// Value is the tagged union stored under a key: a UTF-8 string, an integer
// counter, a field map, or a sorted set. Values returned by the store are
// snapshots; mutating them never affects stored state.
type Value struct {
	kind Kind
	str  string
	num  int64
	hash map[string]string
	zset *SortedSet
}

func StringValue(s string) Value { return Value{kind: KindString, str: s} }

func IntValue(n int64) Value { return Value{kind: KindInt, num: n} }

func newHashValue() Value {
	return Value{kind: KindHash, hash: make(map[string]string)}
}

func newSortedSetValue() Value {
	return Value{kind: KindSortedSet, zset: newSortedSet()}
}

func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload; ok is false for other kinds.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Int returns the counter payload; ok is false for other kinds.
func (v Value) Int() (int64, bool) {
	return v.num, v.kind == KindInt
}

// Hash returns a copy of the field map; ok is false for other kinds.
func (v Value) Hash() (map[string]string, bool) {
	if v.kind != KindHash {
		return nil, false
	}
	out := make(map[string]string, len(v.hash))
	for f, fv := range v.hash {
		out[f] = fv
	}
	return out, true
}

// SortedSet returns a copy of the sorted set; ok is false for other kinds.
func (v Value) SortedSet() (*SortedSet, bool) {
	if v.kind != KindSortedSet {
		return nil, false
	}
	return v.zset.clone(), true
}

// snapshot deep-copies v so callers never share internals with the store.
func (v Value) snapshot() Value {
	switch v.kind {
	case KindHash:
		hash := make(map[string]string, len(v.hash))
		for f, fv := range v.hash {
			hash[f] = fv
		}
		return Value{kind: KindHash, hash: hash}
	case KindSortedSet:
		return Value{kind: KindSortedSet, zset: v.zset.clone()}
	default:
		return v
	}
}
