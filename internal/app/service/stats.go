package service

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sifan077/SnapLink/internal/app/model"
	"github.com/sifan077/SnapLink/internal/app/repository"
)

const statsCacheKey = "all"

// StatsReader is the read-only projection used by the statistics view. It
// returns every link, expired or not, with its full click log. When a TTL is
// set, the snapshot is reused for that long.
type StatsReader struct {
	store repository.LinkStore
	cache *gocache.Cache
}

// NewStatsReader returns a reader over store; ttl <= 0 disables caching.
func NewStatsReader(store repository.LinkStore, ttl time.Duration) *StatsReader {
	s := &StatsReader{store: store}
	if ttl > 0 {
		s.cache = gocache.New(ttl, 2*ttl)
	}
	return s
}

// All returns every stored link.
func (s *StatsReader) All(ctx context.Context) ([]model.LinkRecord, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(statsCacheKey); ok {
			return cloneAll(cached.([]model.LinkRecord)), nil
		}
	}

	links, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	if s.cache != nil {
		s.cache.SetDefault(statsCacheKey, cloneAll(links))
	}
	return links, nil
}

// Invalidate drops the cached snapshot so the next read hits the store.
func (s *StatsReader) Invalidate() {
	if s.cache != nil {
		s.cache.Delete(statsCacheKey)
	}
}

func cloneAll(links []model.LinkRecord) []model.LinkRecord {
	out := make([]model.LinkRecord, len(links))
	for i, l := range links {
		out[i] = l.Clone()
	}
	return out
}
