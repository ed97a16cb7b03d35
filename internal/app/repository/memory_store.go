package repository

import (
	"context"
	"sync"

	"github.com/sifan077/SnapLink/internal/app/model"
)

// MemoryStore is a LinkStore kept in process memory. A single RWMutex makes
// insert-if-absent and click appends atomic.
type MemoryStore struct {
	mu    sync.RWMutex
	links map[string]*model.LinkRecord
	order []string
}

// NewMemoryStore returns an empty in-memory LinkStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links: make(map[string]*model.LinkRecord),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, record model.LinkRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[record.Code]; exists {
		return false, nil
	}
	s.put(record)
	return true, nil
}

func (s *MemoryStore) InsertAll(ctx context.Context, records []model.LinkRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := repeatedCodes(records)
	for _, r := range records {
		if _, exists := s.links[r.Code]; exists {
			taken = append(taken, r.Code)
		}
	}
	if len(taken) > 0 {
		return taken, nil
	}
	for _, r := range records {
		s.put(r)
	}
	return nil, nil
}

func (s *MemoryStore) Exists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.links[code]
	return exists, nil
}

func (s *MemoryStore) Lookup(ctx context.Context, code string) (*model.LinkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, exists := s.links[code]
	if !exists {
		return nil, ErrLinkNotFound
	}
	out := link.Clone()
	return &out, nil
}

func (s *MemoryStore) AppendClick(ctx context.Context, code string, event model.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, exists := s.links[code]
	if !exists {
		return ErrLinkNotFound
	}
	event.LinkCode = link.Code
	link.Clicks = append(link.Clicks, event)
	return nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]model.LinkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.LinkRecord, 0, len(s.order))
	for _, code := range s.order {
		result = append(result, s.links[code].Clone())
	}
	return result, nil
}

// put must be called with s.mu held for writing.
func (s *MemoryStore) put(record model.LinkRecord) {
	stored := record.Clone()
	for i := range stored.Clicks {
		stored.Clicks[i].LinkCode = stored.Code
	}
	s.links[stored.Code] = &stored
	s.order = append(s.order, stored.Code)
}

var _ LinkStore = (*MemoryStore)(nil)
