package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test"), mr
}

func TestRedisStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) LinkStore {
		store, _ := newTestRedisStore(t)
		return store
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, newRecord("keys", "https://keys.example.com")); err != nil {
		t.Fatalf("insert error: %v", err)
	}
	if !mr.Exists("test:link:keys") {
		t.Fatal("expected head key test:link:keys")
	}
	if mr.Exists("test:clicks:keys") {
		t.Fatal("click list should not exist before the first click")
	}
}

func TestRedisStore_IgnoresForeignPrefixes(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := mr.Set("other:link:zzzz", `{"shortcode":"zzzz"}`); err != nil {
		t.Fatalf("seed foreign key: %v", err)
	}
	if _, err := store.Insert(ctx, newRecord("mine", "https://mine.example.com")); err != nil {
		t.Fatalf("insert error: %v", err)
	}

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll error: %v", err)
	}
	if len(all) != 1 || all[0].Code != "mine" {
		t.Fatalf("expected only this store's link, got %#v", all)
	}
}
