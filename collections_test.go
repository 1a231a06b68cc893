package kvcache

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/FabioDiCeglie/kvcache/clock"
)

func TestHash_SetGet(t *testing.T) {
	s := openTestStore(t, testConfig())

	if err := s.HSet("user:1", "name", "alice"); err != nil {
		t.Fatalf("hset failed: %v", err)
	}
	if err := s.HSet("user:1", "email", "alice@example.com"); err != nil {
		t.Fatalf("hset failed: %v", err)
	}

	v, ok, err := s.HGet("user:1", "name")
	if err != nil || !ok || v != "alice" {
		t.Fatalf("hget = %q, %v, %v", v, ok, err)
	}

	// Absent field and absent key are ok=false, not errors.
	if _, ok, err := s.HGet("user:1", "phone"); err != nil || ok {
		t.Fatalf("absent field: ok=%v err=%v", ok, err)
	}
	if _, ok, err := s.HGet("user:2", "name"); err != nil || ok {
		t.Fatalf("absent key: ok=%v err=%v", ok, err)
	}
}

func TestHash_GetAllReturnsCopy(t *testing.T) {
	s := openTestStore(t, testConfig())
	s.HSet("h", "a", "1")

	all, err := s.HGetAll("h")
	if err != nil || len(all) != 1 {
		t.Fatalf("hgetall = %v, %v", all, err)
	}
	all["a"] = "mutated"
	all["b"] = "new"

	v, _, _ := s.HGet("h", "a")
	if v != "1" {
		t.Fatalf("stored value mutated through returned map: %q", v)
	}
	if _, ok, _ := s.HGet("h", "b"); ok {
		t.Fatal("field added through returned map")
	}

	if all, err := s.HGetAll("missing"); err != nil || all != nil {
		t.Fatalf("absent key: %v, %v", all, err)
	}
}

func TestHash_DelLastFieldRemovesKey(t *testing.T) {
	s := openTestStore(t, testConfig())
	s.HSet("h", "a", "1")
	s.HSet("h", "b", "2")

	n, err := s.HDel("h", "a", "missing")
	if err != nil || n != 1 {
		t.Fatalf("hdel = %d, %v", n, err)
	}

	n, err = s.HDel("h", "b")
	if err != nil || n != 1 {
		t.Fatalf("hdel = %d, %v", n, err)
	}
	if s.Len() != 0 {
		t.Fatal("key should be gone after last field is deleted")
	}

	if n, err := s.HDel("h", "a"); err != nil || n != 0 {
		t.Fatalf("hdel on absent key = %d, %v", n, err)
	}
}

func TestHash_TypeMismatch(t *testing.T) {
	s := openTestStore(t, testConfig())
	s.Set("str", StringValue("v"), 0)

	if err := s.HSet("str", "f", "v"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("hset: %v", err)
	}
	if _, _, err := s.HGet("str", "f"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("hget: %v", err)
	}
	if _, err := s.HDel("str", "f"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("hdel: %v", err)
	}
	if _, err := s.HGetAll("str"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("hgetall: %v", err)
	}

	// The value is untouched.
	v, ok := s.Get("str")
	if !ok {
		t.Fatal("value disappeared")
	}
	if str, _ := v.Str(); str != "v" {
		t.Fatalf("value corrupted: %q", str)
	}
}

func TestHash_ExpiredKeyTreatedAsAbsent(t *testing.T) {
	mock := clock.NewMock(time.Now())
	s := openTestStore(t, testConfig(), WithClock(mock))

	s.HSet("h", "a", "1")
	if set, err := s.Touch("h", time.Minute); err != nil || !set {
		t.Fatalf("touch = %v, %v", set, err)
	}
	mock.Advance(2 * time.Minute)

	// A write after expiry starts a fresh hash.
	if err := s.HSet("h", "b", "2"); err != nil {
		t.Fatalf("hset failed: %v", err)
	}
	if _, ok, _ := s.HGet("h", "a"); ok {
		t.Fatal("expired field resurfaced")
	}
	if v, ok, _ := s.HGet("h", "b"); !ok || v != "2" {
		t.Fatalf("hget = %q, %v", v, ok)
	}
}

func TestZSet_AddScoreRank(t *testing.T) {
	s := openTestStore(t, testConfig())

	created, err := s.ZAdd("board", "alice", 100)
	if err != nil || !created {
		t.Fatalf("zadd = %v, %v", created, err)
	}
	s.ZAdd("board", "bob", 50)

	created, err = s.ZAdd("board", "alice", 120)
	if err != nil || created {
		t.Fatalf("rescore should not report new: %v, %v", created, err)
	}

	score, ok, err := s.ZScore("board", "alice")
	if err != nil || !ok || score != 120 {
		t.Fatalf("zscore = %v, %v, %v", score, ok, err)
	}
	rank, ok, err := s.ZRank("board", "bob")
	if err != nil || !ok || rank != 0 {
		t.Fatalf("zrank = %v, %v, %v", rank, ok, err)
	}

	n, err := s.ZCard("board")
	if err != nil || n != 2 {
		t.Fatalf("zcard = %d, %v", n, err)
	}
}

func TestZSet_NaNRejected(t *testing.T) {
	s := openTestStore(t, testConfig())

	if _, err := s.ZAdd("z", "m", math.NaN()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zadd: %v", err)
	}
	if _, err := s.ZIncrBy("z", "m", math.NaN()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zincrby: %v", err)
	}
	if s.Len() != 0 {
		t.Fatal("rejected write created a key")
	}
}

func TestZSet_IncrBy(t *testing.T) {
	s := openTestStore(t, testConfig())

	score, err := s.ZIncrBy("z", "m", 3)
	if err != nil || score != 3 {
		t.Fatalf("zincrby = %v, %v", score, err)
	}
	score, err = s.ZIncrBy("z", "m", -1.5)
	if err != nil || score != 1.5 {
		t.Fatalf("zincrby = %v, %v", score, err)
	}
}

func TestZSet_Ranges(t *testing.T) {
	s := openTestStore(t, testConfig())
	s.ZAdd("z", "a", 1)
	s.ZAdd("z", "b", 2)
	s.ZAdd("z", "c", 3)

	got, err := s.ZRange("z", 0, -1)
	if err != nil {
		t.Fatalf("zrange failed: %v", err)
	}
	if !equalStrings(members(got), []string{"a", "b", "c"}) {
		t.Fatalf("zrange = %v", members(got))
	}

	got, err = s.ZRangeByScore("z", 2, 3)
	if err != nil {
		t.Fatalf("zrangebyscore failed: %v", err)
	}
	if !equalStrings(members(got), []string{"b", "c"}) {
		t.Fatalf("zrangebyscore = %v", members(got))
	}

	if got, err := s.ZRange("missing", 0, -1); err != nil || got != nil {
		t.Fatalf("absent key: %v, %v", got, err)
	}
}

func TestZSet_RemLastMemberRemovesKey(t *testing.T) {
	s := openTestStore(t, testConfig())
	s.ZAdd("z", "a", 1)
	s.ZAdd("z", "b", 2)

	n, err := s.ZRem("z", "a", "missing")
	if err != nil || n != 1 {
		t.Fatalf("zrem = %d, %v", n, err)
	}
	n, err = s.ZRem("z", "b")
	if err != nil || n != 1 {
		t.Fatalf("zrem = %d, %v", n, err)
	}
	if s.Len() != 0 {
		t.Fatal("key should be gone after last member is removed")
	}
}

func TestZSet_RemRangeByScore(t *testing.T) {
	s := openTestStore(t, testConfig())
	for i, m := range []string{"a", "b", "c", "d"} {
		s.ZAdd("z", m, float64(i))
	}

	n, err := s.ZRemRangeByScore("z", 1, 2)
	if err != nil || n != 2 {
		t.Fatalf("zremrangebyscore = %d, %v", n, err)
	}
	card, _ := s.ZCard("z")
	if card != 2 {
		t.Fatalf("zcard = %d, want 2", card)
	}

	// Removing everything removes the key.
	n, err = s.ZRemRangeByScore("z", math.Inf(-1), math.Inf(1))
	if err != nil || n != 2 {
		t.Fatalf("zremrangebyscore = %d, %v", n, err)
	}
	if s.Len() != 0 {
		t.Fatal("key should be gone after range removal emptied it")
	}
}

func TestZSet_TypeMismatch(t *testing.T) {
	s := openTestStore(t, testConfig())
	s.Set("str", StringValue("v"), 0)

	if _, err := s.ZAdd("str", "m", 1); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("zadd: %v", err)
	}
	if _, _, err := s.ZScore("str", "m"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("zscore: %v", err)
	}
	if _, err := s.ZCard("str"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("zcard: %v", err)
	}
}
