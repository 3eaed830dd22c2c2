package idempotency

import (
	"strconv"
	"testing"
)

func TestCheckOrReserveFreshThenReplay(t *testing.T) {
	c, err := New(MinEntries)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	outcome, resp := c.CheckOrReserve("alice", "k1", "fp1")
	if outcome != Fresh {
		t.Fatalf("expected Fresh, got %v", outcome)
	}
	if resp != nil {
		t.Fatalf("expected nil response on Fresh")
	}

	c.Store("alice", "k1", "fp1", map[string]string{"id": "abc"})

	outcome, resp = c.CheckOrReserve("alice", "k1", "fp1")
	if outcome != Replay {
		t.Fatalf("expected Replay, got %v", outcome)
	}
	if resp == nil {
		t.Fatalf("expected stored response on Replay")
	}
}

func TestCheckOrReserveConflict(t *testing.T) {
	c, err := New(MinEntries)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Store("alice", "k1", "fp1", "first")

	outcome, _ := c.CheckOrReserve("alice", "k1", "fp2")
	if outcome != Conflict {
		t.Fatalf("expected Conflict, got %v", outcome)
	}
}

func TestCheckOrReserveScopedByPrincipal(t *testing.T) {
	c, err := New(MinEntries)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Store("alice", "k1", "fp1", "alice's response")

	outcome, _ := c.CheckOrReserve("bob", "k1", "fp1")
	if outcome != Fresh {
		t.Fatalf("expected a different principal with the same key to be Fresh, got %v", outcome)
	}
}

func TestNewEnforcesMinimumCapacity(t *testing.T) {
	c, err := New(1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.lru.Len() != 0 {
		t.Fatalf("expected empty cache on creation")
	}

	for i := 0; i < MinEntries; i++ {
		c.Store("alice", strconv.Itoa(i), "fp", i)
	}
	if outcome, _ := c.CheckOrReserve("alice", "0", "fp"); outcome != Replay {
		t.Fatalf("expected the oldest of %d entries to be retained, got %v", MinEntries, outcome)
	}
}
