package genstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalSnapshotManyIncludesAllAndZeroForMissing(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	keys := []string{"a", "b", "c"}
	// bump b twice -> gen=2
	if _, err := s.Bump(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Bump(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	got, err := s.SnapshotMany(ctx, keys)
	if err != nil {
		t.Fatal(err)
	}

	if got["a"] != 0 || got["b"] != 2 || got["c"] != 0 {
		t.Fatalf("got=%v want a=0,b=2,c=0", got)
	}
}

func TestLocalSnapshotManyDoesNotMutateInput(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	in := []string{"x", "y"}
	cp := append([]string(nil), in...)
	if _, err := s.SnapshotMany(ctx, in); err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != cp[i] {
			t.Fatalf("input mutated at %d: %q -> %q", i, cp[i], in[i])
		}
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewLocalGenStore(0, 0, WithLocalClock(func() time.Time { return now }))
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(30 * time.Second)
	if _, err := s.Bump(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(45 * time.Second)
	s.Cleanup(time.Minute)

	got, err := s.SnapshotMany(ctx, []string{"old", "fresh"})
	if err != nil {
		t.Fatal(err)
	}
	// old was captured at 0 and 1; after pruning it must read as neither
	if got["old"] <= 1 || got["fresh"] != 1 {
		t.Fatalf("got=%v want old above 1, fresh=1", got)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if g, _ := s.Snapshot(ctx, "never"); g != got["old"] {
		t.Fatalf("untracked tag = %d, want floor %d", g, got["old"])
	}
	g, err := s.Bump(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if g != got["old"]+1 {
		t.Fatalf("bump after prune = %d, want %d", g, got["old"]+1)
	}
}

func TestLocalCleanupLoopRuns(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(5*time.Millisecond, time.Nanosecond)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "t"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("cleanup loop never pruned the tag")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(10*time.Millisecond, time.Hour)
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestLocalLenTracksBumpedKeys(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	for _, k := range []string{"a", "b", "a"} {
		if _, err := s.Bump(ctx, k); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}
