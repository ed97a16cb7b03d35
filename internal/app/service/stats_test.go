package service

import (
	"context"
	"testing"
	"time"
)

func TestStatsReader_CachesUntilInvalidated(t *testing.T) {
	store := newFakeStore()
	mustInsert(t, store, liveRecord("first1", baseTime, time.Hour))
	stats := NewStatsReader(store, time.Minute)
	ctx := context.Background()

	links, err := stats.All(ctx)
	if err != nil || len(links) != 1 {
		t.Fatalf("All = %d links, %v", len(links), err)
	}

	mustInsert(t, store, liveRecord("second", baseTime, time.Hour))
	if links, _ = stats.All(ctx); len(links) != 1 {
		t.Fatalf("expected cached snapshot, got %d links", len(links))
	}

	stats.Invalidate()
	if links, _ = stats.All(ctx); len(links) != 2 {
		t.Fatalf("expected fresh snapshot after invalidate, got %d links", len(links))
	}
}

func TestStatsReader_NoCache(t *testing.T) {
	store := newFakeStore()
	stats := NewStatsReader(store, 0)
	ctx := context.Background()

	mustInsert(t, store, liveRecord("first1", baseTime, time.Hour))
	if links, _ := stats.All(ctx); len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if err := store.AppendClick(ctx, "first1", clickAt(baseTime)); err != nil {
		t.Fatalf("AppendClick error: %v", err)
	}
	links, _ := stats.All(ctx)
	if len(links[0].Clicks) != 1 {
		t.Fatalf("expected click to be visible, got %d", len(links[0].Clicks))
	}
}

func TestStatsReader_CachedCopiesAreIndependent(t *testing.T) {
	store := newFakeStore()
	mustInsert(t, store, liveRecord("first1", baseTime, time.Hour))
	stats := NewStatsReader(store, time.Minute)
	ctx := context.Background()

	links, _ := stats.All(ctx)
	links[0].Clicks = append(links[0].Clicks, clickAt(baseTime))
	links[0].OriginalURL = "https://mutated.example"

	again, _ := stats.All(ctx)
	if len(again[0].Clicks) != 0 || again[0].OriginalURL != "https://example.com/first1" {
		t.Fatalf("cached snapshot was mutated: %+v", again[0])
	}
}
