package kvcache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/FabioDiCeglie/kvcache/eviction"
)

// Dispatcher is the single entry point for external collaborators: it maps
// an operation name plus string arguments onto store calls and folds the
// result into a Reply. It is stateless; all state lives in the Store.
type Dispatcher struct {
	store *Store
}

func NewDispatcher(store *Store) *Dispatcher {
	return &Dispatcher{store: store}
}

type ReplyKind uint8

const (
	ReplyNil ReplyKind = iota + 1
	ReplyOK
	ReplyBool
	ReplyInt
	ReplyFloat
	ReplyString
	ReplyArray
	ReplyError
)

type Reply struct {
	Kind  ReplyKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Array []string
	Err   error
}

func nilReply() Reply             { return Reply{Kind: ReplyNil} }
func okReply() Reply              { return Reply{Kind: ReplyOK} }
func boolReply(b bool) Reply      { return Reply{Kind: ReplyBool, Bool: b} }
func intReply(n int64) Reply      { return Reply{Kind: ReplyInt, Int: n} }
func floatReply(f float64) Reply  { return Reply{Kind: ReplyFloat, Float: f} }
func strReply(s string) Reply     { return Reply{Kind: ReplyString, Str: s} }
func arrayReply(a []string) Reply { return Reply{Kind: ReplyArray, Array: a} }
func errReply(err error) Reply    { return Reply{Kind: ReplyError, Err: err} }

// Dispatch executes one operation. TTL arguments are Go duration strings
// ("30s", "250ms"); an omitted TTL means no expiry.
func (d *Dispatcher) Dispatch(op string, args ...string) Reply {
	switch strings.ToUpper(op) {
	case "GET":
		if err := arity("GET", args, 1, 1); err != nil {
			return errReply(err)
		}
		return d.get(args[0])
	case "SET":
		if err := arity("SET", args, 2, 3); err != nil {
			return errReply(err)
		}
		ttl, err := parseTTLArg(args, 2)
		if err != nil {
			return errReply(err)
		}
		if err := d.store.Set(args[0], StringValue(args[1]), ttl); err != nil {
			return errReply(err)
		}
		return okReply()
	case "SETNX":
		if err := arity("SETNX", args, 2, 3); err != nil {
			return errReply(err)
		}
		ttl, err := parseTTLArg(args, 2)
		if err != nil {
			return errReply(err)
		}
		set, err := d.store.SetIfAbsent(args[0], StringValue(args[1]), ttl)
		if err != nil {
			return errReply(err)
		}
		return boolReply(set)
	case "DEL":
		if err := arity("DEL", args, 1, 1); err != nil {
			return errReply(err)
		}
		removed, err := d.store.Delete(args[0])
		if err != nil {
			return errReply(err)
		}
		return boolReply(removed)
	case "INCR":
		if err := arity("INCR", args, 1, 2); err != nil {
			return errReply(err)
		}
		ttl, err := parseTTLArg(args, 1)
		if err != nil {
			return errReply(err)
		}
		n, err := d.store.IncrBy(args[0], 1, ttl)
		if err != nil {
			return errReply(err)
		}
		return intReply(n)
	case "INCRBY":
		if err := arity("INCRBY", args, 2, 3); err != nil {
			return errReply(err)
		}
		delta, err := parseInt(args[1])
		if err != nil {
			return errReply(err)
		}
		ttl, err := parseTTLArg(args, 2)
		if err != nil {
			return errReply(err)
		}
		n, err := d.store.IncrBy(args[0], delta, ttl)
		if err != nil {
			return errReply(err)
		}
		return intReply(n)
	case "EXPIRE":
		if err := arity("EXPIRE", args, 2, 2); err != nil {
			return errReply(err)
		}
		ttl, err := parseTTL(args[1])
		if err != nil {
			return errReply(err)
		}
		set, err := d.store.Touch(args[0], ttl)
		if err != nil {
			return errReply(err)
		}
		return boolReply(set)
	case "PERSIST":
		if err := arity("PERSIST", args, 1, 1); err != nil {
			return errReply(err)
		}
		cleared, err := d.store.Persist(args[0])
		if err != nil {
			return errReply(err)
		}
		return boolReply(cleared)
	case "TTL":
		if err := arity("TTL", args, 1, 1); err != nil {
			return errReply(err)
		}
		info, ok := d.store.Info(args[0])
		if !ok {
			return intReply(-2)
		}
		if !info.HasTTL {
			return intReply(-1)
		}
		return intReply(int64(info.TTL.Seconds()))
	case "HSET":
		if err := arity("HSET", args, 3, 3); err != nil {
			return errReply(err)
		}
		if err := d.store.HSet(args[0], args[1], args[2]); err != nil {
			return errReply(err)
		}
		return okReply()
	case "HGET":
		if err := arity("HGET", args, 2, 2); err != nil {
			return errReply(err)
		}
		v, ok, err := d.store.HGet(args[0], args[1])
		if err != nil {
			return errReply(err)
		}
		if !ok {
			return nilReply()
		}
		return strReply(v)
	case "HDEL":
		if err := arity("HDEL", args, 2, -1); err != nil {
			return errReply(err)
		}
		removed, err := d.store.HDel(args[0], args[1:]...)
		if err != nil {
			return errReply(err)
		}
		return intReply(int64(removed))
	case "HGETALL":
		if err := arity("HGETALL", args, 1, 1); err != nil {
			return errReply(err)
		}
		fields, err := d.store.HGetAll(args[0])
		if err != nil {
			return errReply(err)
		}
		return arrayReply(flattenHash(fields))
	case "ZADD":
		if err := arity("ZADD", args, 3, 3); err != nil {
			return errReply(err)
		}
		score, err := parseFloat(args[1])
		if err != nil {
			return errReply(err)
		}
		created, err := d.store.ZAdd(args[0], args[2], score)
		if err != nil {
			return errReply(err)
		}
		return boolReply(created)
	case "ZINCRBY":
		if err := arity("ZINCRBY", args, 3, 3); err != nil {
			return errReply(err)
		}
		delta, err := parseFloat(args[1])
		if err != nil {
			return errReply(err)
		}
		score, err := d.store.ZIncrBy(args[0], args[2], delta)
		if err != nil {
			return errReply(err)
		}
		return floatReply(score)
	case "ZSCORE":
		if err := arity("ZSCORE", args, 2, 2); err != nil {
			return errReply(err)
		}
		score, ok, err := d.store.ZScore(args[0], args[1])
		if err != nil {
			return errReply(err)
		}
		if !ok {
			return nilReply()
		}
		return floatReply(score)
	case "ZRANK":
		if err := arity("ZRANK", args, 2, 2); err != nil {
			return errReply(err)
		}
		rank, ok, err := d.store.ZRank(args[0], args[1])
		if err != nil {
			return errReply(err)
		}
		if !ok {
			return nilReply()
		}
		return intReply(int64(rank))
	case "ZRANGE":
		if err := arity("ZRANGE", args, 3, 3); err != nil {
			return errReply(err)
		}
		start, err := parseInt(args[1])
		if err != nil {
			return errReply(err)
		}
		stop, err := parseInt(args[2])
		if err != nil {
			return errReply(err)
		}
		members, err := d.store.ZRange(args[0], int(start), int(stop))
		if err != nil {
			return errReply(err)
		}
		out := make([]string, len(members))
		for i, m := range members {
			out[i] = m.Member
		}
		return arrayReply(out)
	case "ZREM":
		if err := arity("ZREM", args, 2, -1); err != nil {
			return errReply(err)
		}
		removed, err := d.store.ZRem(args[0], args[1:]...)
		if err != nil {
			return errReply(err)
		}
		return intReply(int64(removed))
	case "ZCARD":
		if err := arity("ZCARD", args, 1, 1); err != nil {
			return errReply(err)
		}
		n, err := d.store.ZCard(args[0])
		if err != nil {
			return errReply(err)
		}
		return intReply(int64(n))
	case "CASDEL":
		if err := arity("CASDEL", args, 2, 2); err != nil {
			return errReply(err)
		}
		removed, err := d.store.CompareAndDelete(args[0], args[1])
		if err != nil {
			return errReply(err)
		}
		return boolReply(removed)
	case "CONFIGURE":
		if err := arity("CONFIGURE", args, 2, 2); err != nil {
			return errReply(err)
		}
		budget, err := parseInt(args[1])
		if err != nil {
			return errReply(err)
		}
		if err := d.store.Configure(evictionKind(args[0]), int(budget)); err != nil {
			return errReply(err)
		}
		return okReply()
	case "KEYS":
		if err := arity("KEYS", args, 0, 0); err != nil {
			return errReply(err)
		}
		keys := d.store.Keys()
		sort.Strings(keys)
		return arrayReply(keys)
	case "LEN":
		if err := arity("LEN", args, 0, 0); err != nil {
			return errReply(err)
		}
		return intReply(int64(d.store.Len()))
	case "FLUSH":
		if err := arity("FLUSH", args, 0, 0); err != nil {
			return errReply(err)
		}
		if err := d.store.Flush(); err != nil {
			return errReply(err)
		}
		return okReply()
	default:
		return errReply(fmt.Errorf("%w: unknown operation %q", ErrInvalidArgument, op))
	}
}

func (d *Dispatcher) get(key string) Reply {
	v, ok := d.store.Get(key)
	if !ok {
		return nilReply()
	}
	switch v.Kind() {
	case KindString:
		str, _ := v.Str()
		return strReply(str)
	case KindInt:
		n, _ := v.Int()
		return strReply(strconv.FormatInt(n, 10))
	default:
		return errReply(fmt.Errorf("%w: GET on %s value", ErrTypeMismatch, v.Kind()))
	}
}

// flattenHash renders a field map as [field, value, ...] pairs in field
// order, so replies are stable across runs.
func flattenHash(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	out := make([]string, 0, 2*len(names))
	for _, f := range names {
		out = append(out, f, fields[f])
	}
	return out
}

func evictionKind(raw string) eviction.Kind {
	return eviction.Kind(strings.ToLower(raw))
}

func arity(op string, args []string, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return fmt.Errorf("%w: wrong number of arguments for %s", ErrInvalidArgument, op)
	}
	return nil
}

// parseTTLArg reads the optional TTL at position i; missing means none.
func parseTTLArg(args []string, i int) (time.Duration, error) {
	if len(args) <= i {
		return 0, nil
	}
	return parseTTL(args[i])
}

func parseTTL(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: bad ttl %q", ErrInvalidArgument, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: negative ttl %q", ErrInvalidArgument, raw)
	}
	return d, nil
}

func parseInt(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad integer %q", ErrInvalidArgument, raw)
	}
	return n, nil
}

func parseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad score %q", ErrInvalidArgument, raw)
	}
	return f, nil
}
