package raidguard

import (
	"context"
	"testing"
	"time"
)

func TestCounterWalksAndResetsOnIdleGap(t *testing.T) {
	store := NewInMemoryCounterStore()
	ctx := context.Background()
	window := 100 * time.Millisecond

	for want := 1; want <= 3; want++ {
		got, err := store.Hit(ctx, "k1", window)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("hit %d returned %d", want, got)
		}
	}

	// a gap longer than the window restarts the count
	time.Sleep(150 * time.Millisecond)
	got, err := store.Hit(ctx, "k1", window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected reset to 1 after idle gap, got %d", got)
	}
}

func TestCounterKeysAreIndependent(t *testing.T) {
	store := NewInMemoryCounterStore()
	ctx := context.Background()

	if _, err := store.Hit(ctx, "k1", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Hit(ctx, "k1", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := store.Hit(ctx, "k2", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Fatalf("keys must not interfere, got %d for fresh key", got)
	}
}

func TestCounterReset(t *testing.T) {
	store := NewInMemoryCounterStore()
	ctx := context.Background()

	store.Hit(ctx, "k1", time.Minute)
	store.Hit(ctx, "k1", time.Minute)
	if err := store.Reset(ctx, "k1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	got, _ := store.Hit(ctx, "k1", time.Minute)
	if got != 1 {
		t.Fatalf("expected count 1 after reset, got %d", got)
	}
}

func TestCounterCleanupDropsIdleEntries(t *testing.T) {
	store := NewInMemoryCounterStore()
	ctx := context.Background()

	store.Hit(ctx, "stale", 50*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	store.Hit(ctx, "fresh", time.Minute)
	store.Cleanup(50 * time.Millisecond)

	store.mu.Lock()
	_, staleExists := store.counters["stale"]
	_, freshExists := store.counters["fresh"]
	store.mu.Unlock()
	if staleExists {
		t.Fatalf("stale counter should have been pruned")
	}
	if !freshExists {
		t.Fatalf("fresh counter should survive cleanup")
	}
}
