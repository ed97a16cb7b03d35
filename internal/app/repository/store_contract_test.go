package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/SnapLink/internal/app/model"
)

var baseTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newRecord(code, url string) model.LinkRecord {
	return model.LinkRecord{
		Code:        code,
		OriginalURL: url,
		CreatedAt:   baseTime,
		ExpiresAt:   baseTime.Add(30 * time.Minute),
		Clicks:      []model.ClickEvent{},
	}
}

// runStoreContract exercises behaviour every LinkStore driver must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) LinkStore) {
	t.Run("InsertThenLookup", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		ok, err := store.Insert(ctx, newRecord("abcd", "https://a.example.com"))
		if err != nil || !ok {
			t.Fatalf("Insert = %v, %v; want true, nil", ok, err)
		}

		got, err := store.Lookup(ctx, "abcd")
		if err != nil {
			t.Fatalf("Lookup error: %v", err)
		}
		if got.OriginalURL != "https://a.example.com" {
			t.Fatalf("unexpected url %q", got.OriginalURL)
		}
		if !got.CreatedAt.Equal(baseTime) || !got.ExpiresAt.Equal(baseTime.Add(30*time.Minute)) {
			t.Fatalf("timestamps not preserved: %v %v", got.CreatedAt, got.ExpiresAt)
		}
		if got.Clicks == nil || len(got.Clicks) != 0 {
			t.Fatalf("expected empty non-nil click log, got %#v", got.Clicks)
		}
	})

	t.Run("InsertRefusesTakenCode", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if ok, err := store.Insert(ctx, newRecord("dupe1", "https://first.example.com")); err != nil || !ok {
			t.Fatalf("first insert = %v, %v", ok, err)
		}
		ok, err := store.Insert(ctx, newRecord("dupe1", "https://second.example.com"))
		if err != nil {
			t.Fatalf("second insert error: %v", err)
		}
		if ok {
			t.Fatal("second insert of the same code must report false")
		}

		got, _ := store.Lookup(ctx, "dupe1")
		if got.OriginalURL != "https://first.example.com" {
			t.Fatalf("record was overwritten: %q", got.OriginalURL)
		}
	})

	t.Run("InsertAllIsAllOrNothing", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if ok, err := store.Insert(ctx, newRecord("held", "https://held.example.com")); err != nil || !ok {
			t.Fatalf("seed insert = %v, %v", ok, err)
		}

		taken, err := store.InsertAll(ctx, []model.LinkRecord{
			newRecord("fresh1", "https://one.example.com"),
			newRecord("held", "https://two.example.com"),
		})
		if err != nil {
			t.Fatalf("InsertAll error: %v", err)
		}
		if len(taken) != 1 || taken[0] != "held" {
			t.Fatalf("expected [held] taken, got %v", taken)
		}
		if exists, _ := store.Exists(ctx, "fresh1"); exists {
			t.Fatal("fresh1 must not be written when the batch is refused")
		}

		taken, err = store.InsertAll(ctx, []model.LinkRecord{
			newRecord("fresh1", "https://one.example.com"),
			newRecord("fresh2", "https://two.example.com"),
		})
		if err != nil || len(taken) != 0 {
			t.Fatalf("InsertAll = %v, %v; want no taken codes", taken, err)
		}
		for _, code := range []string{"fresh1", "fresh2"} {
			if exists, _ := store.Exists(ctx, code); !exists {
				t.Fatalf("%s should exist", code)
			}
		}
	})

	t.Run("InsertAllRejectsRepeatedCodes", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		taken, err := store.InsertAll(ctx, []model.LinkRecord{
			newRecord("twice", "https://a.example.com"),
			newRecord("twice", "https://b.example.com"),
		})
		if err != nil {
			t.Fatalf("InsertAll error: %v", err)
		}
		if len(taken) != 1 || taken[0] != "twice" {
			t.Fatalf("expected [twice], got %v", taken)
		}
		if exists, _ := store.Exists(ctx, "twice"); exists {
			t.Fatal("nothing should be written")
		}
	})

	t.Run("LookupMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Lookup(context.Background(), "nope")
		if !errors.Is(err, ErrLinkNotFound) {
			t.Fatalf("expected ErrLinkNotFound, got %v", err)
		}
	})

	t.Run("AppendClickKeepsOrder", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		if ok, err := store.Insert(ctx, newRecord("clik", "https://c.example.com")); err != nil || !ok {
			t.Fatalf("insert = %v, %v", ok, err)
		}

		for i := 0; i < 3; i++ {
			err := store.AppendClick(ctx, "clik", model.ClickEvent{
				Timestamp: baseTime.Add(time.Duration(i) * time.Second),
				Source:    fmt.Sprintf("ref-%d", i),
			})
			if err != nil {
				t.Fatalf("AppendClick %d error: %v", i, err)
			}
		}

		got, err := store.Lookup(ctx, "clik")
		if err != nil {
			t.Fatalf("Lookup error: %v", err)
		}
		if len(got.Clicks) != 3 {
			t.Fatalf("expected 3 clicks, got %d", len(got.Clicks))
		}
		for i, c := range got.Clicks {
			if c.Source != fmt.Sprintf("ref-%d", i) {
				t.Fatalf("click %d out of order: %q", i, c.Source)
			}
			if c.Location != "" {
				t.Fatalf("absent location should stay absent, got %q", c.Location)
			}
		}
	})

	t.Run("AppendClickMissing", func(t *testing.T) {
		store := newStore(t)
		err := store.AppendClick(context.Background(), "ghost", model.ClickEvent{Timestamp: baseTime})
		if !errors.Is(err, ErrLinkNotFound) {
			t.Fatalf("expected ErrLinkNotFound, got %v", err)
		}
	})

	t.Run("ConcurrentInsertSameCode", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const workers = 8
		var wg sync.WaitGroup
		results := make(chan bool, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := store.Insert(ctx, newRecord("race", fmt.Sprintf("https://w%d.example.com", i)))
				if err != nil {
					t.Errorf("worker %d insert error: %v", i, err)
					return
				}
				results <- ok
			}(i)
		}
		wg.Wait()
		close(results)

		wins := 0
		for ok := range results {
			if ok {
				wins++
			}
		}
		if wins != 1 {
			t.Fatalf("expected exactly one winning insert, got %d", wins)
		}
	})

	t.Run("ConcurrentClicks", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		if ok, err := store.Insert(ctx, newRecord("busy", "https://busy.example.com")); err != nil || !ok {
			t.Fatalf("insert = %v, %v", ok, err)
		}

		const clicks = 20
		var wg sync.WaitGroup
		for i := 0; i < clicks; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := store.AppendClick(ctx, "busy", model.ClickEvent{Timestamp: baseTime}); err != nil {
					t.Errorf("AppendClick error: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := store.Lookup(ctx, "busy")
		if err != nil {
			t.Fatalf("Lookup error: %v", err)
		}
		if len(got.Clicks) != clicks {
			t.Fatalf("expected %d clicks, got %d", clicks, len(got.Clicks))
		}
	})

	t.Run("ListAllReturnsEverything", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		expired := newRecord("old1", "https://old.example.com")
		expired.CreatedAt = baseTime.Add(-2 * time.Hour)
		expired.ExpiresAt = baseTime.Add(-time.Hour)
		expired.Clicks = []model.ClickEvent{{Timestamp: baseTime.Add(-90 * time.Minute), Location: "NL"}}

		if ok, err := store.Insert(ctx, expired); err != nil || !ok {
			t.Fatalf("insert expired = %v, %v", ok, err)
		}
		if ok, err := store.Insert(ctx, newRecord("live1", "https://live.example.com")); err != nil || !ok {
			t.Fatalf("insert live = %v, %v", ok, err)
		}

		all, err := store.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll error: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 records, got %d", len(all))
		}

		byCode := map[string]model.LinkRecord{}
		for _, r := range all {
			byCode[r.Code] = r
		}
		old, ok := byCode["old1"]
		if !ok {
			t.Fatal("expired record must be listed")
		}
		if len(old.Clicks) != 1 || old.Clicks[0].Location != "NL" {
			t.Fatalf("clicks stored with the record were lost: %#v", old.Clicks)
		}
	})
}
