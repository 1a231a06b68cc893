package eviction

import (
	"testing"
	"time"
)

func TestLFU_VictimIsLeastFrequentlyUsed(t *testing.T) {
	l := NewLFU(false)
	insertN(l, 3, time.Time{}) // a, b, c all at freq 1

	l.OnAccess("a")
	l.OnAccess("a")
	l.OnAccess("b")

	victim, ok := l.Victim()
	if !ok || victim != "c" {
		t.Fatalf("victim = %q, %v; want \"c\"", victim, ok)
	}
}

func TestLFU_TieBreakByInsertionSequence(t *testing.T) {
	l := NewLFU(false)
	insertN(l, 3, time.Time{})

	// All at the same frequency: oldest insertion goes first.
	for _, want := range []string{"a", "b", "c"} {
		victim, ok := l.Victim()
		if !ok || victim != want {
			t.Fatalf("victim = %q, %v; want %q", victim, ok, want)
		}
		l.OnDelete(victim)
	}
}

func TestLFU_BumpMovesBuckets(t *testing.T) {
	l := NewLFU(false)
	insertN(l, 2, time.Time{}) // a, b

	// Bump "a" past "b", delete "b", then "a" must be the victim again.
	l.OnAccess("a")
	victim, ok := l.Victim()
	if !ok || victim != "b" {
		t.Fatalf("victim = %q, %v; want \"b\"", victim, ok)
	}
	l.OnDelete("b")
	victim, ok = l.Victim()
	if !ok || victim != "a" {
		t.Fatalf("victim = %q, %v; want \"a\"", victim, ok)
	}
}

func TestLFU_DecayHalvesFrequencies(t *testing.T) {
	l := NewLFU(false)
	insertN(l, 2, time.Time{}) // a, b

	// a reaches freq 5, b stays at 1.
	for i := 0; i < 4; i++ {
		l.OnAccess("a")
	}

	// Two decays take a to 5/2=2 then 2/2=1, level with b. Insertion
	// order then decides: a is older.
	l.Decay()
	l.Decay()

	victim, ok := l.Victim()
	if !ok || victim != "a" {
		t.Fatalf("victim = %q, %v; want \"a\"", victim, ok)
	}
}

func TestLFU_VolatileOnlyScope(t *testing.T) {
	deadline := time.Now().Add(time.Minute)
	l := NewLFU(true)

	l.OnInsert("persistent", 0, time.Time{})
	l.OnInsert("volatile", 1, deadline)

	victim, ok := l.Victim()
	if !ok || victim != "volatile" {
		t.Fatalf("victim = %q, %v; want \"volatile\"", victim, ok)
	}

	l.OnUpdate("volatile", time.Time{})
	if _, ok := l.Victim(); ok {
		t.Fatal("no candidates should remain after expiry removal")
	}
}

func TestLFU_EmptyAndClear(t *testing.T) {
	l := NewLFU(false)
	if _, ok := l.Victim(); ok {
		t.Fatal("empty policy should have no victim")
	}
	insertN(l, 3, time.Time{})
	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("len = %d, want 0", l.Len())
	}
	if _, ok := l.Victim(); ok {
		t.Fatal("cleared policy should have no victim")
	}
}
