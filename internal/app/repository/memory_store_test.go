package repository

import (
	"context"
	"testing"
	"unsafe"

	"github.com/sifan077/SnapLink/internal/app/model"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) LinkStore {
		return NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Insert(ctx, newRecord("copy", "https://copy.example.com")); err != nil {
		t.Fatalf("insert error: %v", err)
	}

	got, _ := store.Lookup(ctx, "copy")
	got.Clicks = append(got.Clicks, model.ClickEvent{Timestamp: baseTime})
	got.OriginalURL = "https://mutated.example.com"

	again, _ := store.Lookup(ctx, "copy")
	if len(again.Clicks) != 0 || again.OriginalURL != "https://copy.example.com" {
		t.Fatalf("store state leaked through Lookup: %#v", again)
	}
}

func TestMemoryStore_AppendClickOwnsCode(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Insert(ctx, newRecord("abcd12", "https://owned.example.com")); err != nil {
		t.Fatalf("insert error: %v", err)
	}

	// fiber hands out path params that alias a reused request buffer.
	buf := []byte("abcd12")
	param := unsafe.String(&buf[0], len(buf))
	if err := store.AppendClick(ctx, param, model.ClickEvent{Timestamp: baseTime}); err != nil {
		t.Fatalf("append error: %v", err)
	}
	copy(buf, "zzzzzz")

	got, err := store.Lookup(ctx, "abcd12")
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if len(got.Clicks) != 1 || got.Clicks[0].LinkCode != "abcd12" {
		t.Fatalf("click kept a borrowed code: %#v", got.Clicks)
	}
}

func TestMemoryStore_ListAllKeepsInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, code := range []string{"zzzz", "aaaa", "mmmm"} {
		if _, err := store.Insert(ctx, newRecord(code, "https://"+code+".example.com")); err != nil {
			t.Fatalf("insert %s: %v", code, err)
		}
	}

	all, _ := store.ListAll(ctx)
	want := []string{"zzzz", "aaaa", "mmmm"}
	for i, r := range all {
		if r.Code != want[i] {
			t.Fatalf("position %d: got %s want %s", i, r.Code, want[i])
		}
	}
}
