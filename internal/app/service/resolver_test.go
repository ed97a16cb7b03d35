package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/SnapLink/internal/app/model"
)

func TestResolver_ExpiresExactlyAtExpiresAt(t *testing.T) {
	store := newFakeStore()
	record := liveRecord("edge01", baseTime, time.Minute)
	mustInsert(t, store, record)
	r := NewResolver(ResolverDeps{Store: store})

	offsets := []time.Duration{
		0,
		59 * time.Second,
		time.Minute - time.Nanosecond,
		time.Minute,
		61 * time.Second,
		time.Hour,
	}
	for _, off := range offsets {
		at := baseTime.Add(off)
		_, err := r.Resolve(context.Background(), record.Code, Visit{At: at})
		wantExpired := !at.Before(record.ExpiresAt)
		if gotExpired := errors.Is(err, ErrLinkExpired); gotExpired != wantExpired {
			t.Fatalf("Resolve at +%s: expired=%v, want %v (err=%v)", off, gotExpired, wantExpired, err)
		}
		if !wantExpired && err != nil {
			t.Fatalf("Resolve at +%s: unexpected error %v", off, err)
		}
	}
}

func TestResolver_AppendsOneClickPerResolve(t *testing.T) {
	store := newFakeStore()
	mustInsert(t, store, liveRecord("count1", baseTime, time.Hour))
	r := NewResolver(ResolverDeps{Store: store})
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		url, err := r.Resolve(ctx, "count1", Visit{
			At:     baseTime.Add(time.Duration(i) * time.Second),
			Source: fmt.Sprintf("https://ref%d.example", i),
		})
		if err != nil || url != "https://example.com/count1" {
			t.Fatalf("Resolve #%d = %q, %v", i, url, err)
		}
	}

	link, err := store.Lookup(ctx, "count1")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if len(link.Clicks) != n {
		t.Fatalf("expected %d clicks, got %d", n, len(link.Clicks))
	}
	for i, c := range link.Clicks {
		if c.Source != fmt.Sprintf("https://ref%d.example", i) {
			t.Fatalf("click %d out of order: %+v", i, c)
		}
		if c.Location != "" || c.DisplayLocation() != model.DefaultClickLocation {
			t.Fatalf("absent location should stay absent: %+v", c)
		}
	}
}

func TestResolver_FailuresRecordNothing(t *testing.T) {
	store := newFakeStore()
	mustInsert(t, store, liveRecord("old001", baseTime, time.Minute))

	var appended int
	store.appendClickFn = func(ctx context.Context, code string, event model.ClickEvent) error {
		appended++
		return store.MemoryStore.AppendClick(ctx, code, event)
	}
	r := NewResolver(ResolverDeps{Store: store, Notifier: notifierFunc(func(string, model.ClickEvent) error {
		t.Fatal("notifier must not be called for failed resolutions")
		return nil
	})})
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "nope00", Visit{At: baseTime}); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
	if _, err := r.Resolve(ctx, "old001", Visit{At: baseTime.Add(2 * time.Minute)}); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}
	if appended != 0 {
		t.Fatalf("expected no clicks, got %d", appended)
	}
}

func TestResolver_StoreErrors(t *testing.T) {
	boom := errors.New("store down")
	store := newFakeStore()
	store.lookupFn = func(context.Context, string) (*model.LinkRecord, error) { return nil, boom }

	r := NewResolver(ResolverDeps{Store: store})
	if _, err := r.Resolve(context.Background(), "abcd", Visit{At: baseTime}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestResolver_NotifiesAfterStoring(t *testing.T) {
	store := newFakeStore()
	mustInsert(t, store, liveRecord("notify", baseTime, time.Hour))

	var gotCode string
	var gotEvent model.ClickEvent
	notifier := notifierFunc(func(code string, event model.ClickEvent) error {
		link, _ := store.Lookup(context.Background(), code)
		if len(link.Clicks) != 1 {
			t.Fatalf("click must be stored before notifying, have %d", len(link.Clicks))
		}
		gotCode, gotEvent = code, event
		return errors.New("stream unavailable")
	})

	at := baseTime.Add(1500 * time.Microsecond)
	r := NewResolver(ResolverDeps{Store: store, Notifier: notifier})
	url, err := r.Resolve(context.Background(), "notify", Visit{At: at, Location: "Lisbon, PT"})
	if err != nil {
		t.Fatalf("notifier failure must not fail the resolve: %v", err)
	}
	if url != "https://example.com/notify" {
		t.Fatalf("unexpected url %q", url)
	}
	if gotCode != "notify" || gotEvent.Location != "Lisbon, PT" {
		t.Fatalf("unexpected notification %q %+v", gotCode, gotEvent)
	}
	if !gotEvent.Timestamp.Equal(baseTime.Add(time.Millisecond)) {
		t.Fatalf("timestamp should be truncated to milliseconds, got %s", gotEvent.Timestamp)
	}
}

func TestResolver_DefaultsToClock(t *testing.T) {
	store := newFakeStore()
	mustInsert(t, store, liveRecord("clock1", baseTime, time.Hour))

	now := baseTime.Add(10 * time.Minute)
	r := NewResolver(ResolverDeps{Store: store, Now: fixedClock(now)})
	if _, err := r.Resolve(context.Background(), "clock1", Visit{}); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	link, _ := store.Lookup(context.Background(), "clock1")
	if !link.Clicks[0].Timestamp.Equal(now) {
		t.Fatalf("expected click at %s, got %s", now, link.Clicks[0].Timestamp)
	}
}

func TestResolver_ConcurrentClicks(t *testing.T) {
	store := newFakeStore()
	mustInsert(t, store, liveRecord("busy01", baseTime, time.Hour))
	r := NewResolver(ResolverDeps{Store: store})

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), "busy01", Visit{At: baseTime.Add(time.Second)}); err != nil {
				t.Errorf("Resolve error: %v", err)
			}
		}()
	}
	wg.Wait()

	link, _ := store.Lookup(context.Background(), "busy01")
	if len(link.Clicks) != n {
		t.Fatalf("expected %d clicks, got %d", n, len(link.Clicks))
	}
}
