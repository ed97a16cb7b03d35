package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/SnapLink/internal/app/model"
	"github.com/sifan077/SnapLink/internal/app/repository"
)

var baseTime = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// scriptedRandom replays the characters of the given codes, cycling once the
// script runs out.
type scriptedRandom struct {
	mu  sync.Mutex
	seq []int
	pos int
}

func codeSource(codes ...string) *scriptedRandom {
	var seq []int
	for _, code := range codes {
		for _, ch := range code {
			seq = append(seq, strings.IndexRune(CodeAlphabet, ch))
		}
	}
	return &scriptedRandom{seq: seq}
}

func (s *scriptedRandom) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.seq[s.pos%len(s.seq)]
	s.pos++
	return v % n
}

// fakeStore is a MemoryStore whose methods can be overridden per test.
type fakeStore struct {
	*repository.MemoryStore

	insertAllFn   func(ctx context.Context, records []model.LinkRecord) ([]string, error)
	existsFn      func(ctx context.Context, code string) (bool, error)
	lookupFn      func(ctx context.Context, code string) (*model.LinkRecord, error)
	appendClickFn func(ctx context.Context, code string, event model.ClickEvent) error
	listAllFn     func(ctx context.Context) ([]model.LinkRecord, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{MemoryStore: repository.NewMemoryStore()}
}

func (f *fakeStore) InsertAll(ctx context.Context, records []model.LinkRecord) ([]string, error) {
	if f.insertAllFn != nil {
		return f.insertAllFn(ctx, records)
	}
	return f.MemoryStore.InsertAll(ctx, records)
}

func (f *fakeStore) Exists(ctx context.Context, code string) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(ctx, code)
	}
	return f.MemoryStore.Exists(ctx, code)
}

func (f *fakeStore) Lookup(ctx context.Context, code string) (*model.LinkRecord, error) {
	if f.lookupFn != nil {
		return f.lookupFn(ctx, code)
	}
	return f.MemoryStore.Lookup(ctx, code)
}

func (f *fakeStore) AppendClick(ctx context.Context, code string, event model.ClickEvent) error {
	if f.appendClickFn != nil {
		return f.appendClickFn(ctx, code, event)
	}
	return f.MemoryStore.AppendClick(ctx, code, event)
}

func (f *fakeStore) ListAll(ctx context.Context) ([]model.LinkRecord, error) {
	if f.listAllFn != nil {
		return f.listAllFn(ctx)
	}
	return f.MemoryStore.ListAll(ctx)
}

type notifierFunc func(code string, event model.ClickEvent) error

func (f notifierFunc) Notify(code string, event model.ClickEvent) error { return f(code, event) }

func mustInsert(t testing.TB, store repository.LinkStore, record model.LinkRecord) {
	t.Helper()
	if record.Clicks == nil {
		record.Clicks = []model.ClickEvent{}
	}
	ok, err := store.Insert(context.Background(), record)
	if err != nil || !ok {
		t.Fatalf("insert %s = %v, %v", record.Code, ok, err)
	}
}

func liveRecord(code string, createdAt time.Time, validity time.Duration) model.LinkRecord {
	return model.LinkRecord{
		Code:        code,
		OriginalURL: "https://example.com/" + code,
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(validity),
		Clicks:      []model.ClickEvent{},
	}
}

func clickAt(at time.Time) model.ClickEvent {
	return model.ClickEvent{Timestamp: at}
}
