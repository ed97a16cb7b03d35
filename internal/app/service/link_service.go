package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sifan077/SnapLink/internal/app/model"
	"github.com/sifan077/SnapLink/internal/app/repository"
	infraPrometheus "github.com/sifan077/SnapLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// maxCommitRounds bounds how often a batch is re-submitted after the store
// refused generated codes that another writer took in the meantime.
const maxCommitRounds = 5

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLinks(ctx context.Context, reqs []CreateLinkRequest) ([]CreateOutcome, error)
	Resolve(ctx context.Context, code string, visit Visit) (string, error)
	GetAllLinks(ctx context.Context) ([]model.LinkRecord, error)
	GetLink(ctx context.Context, code string) (*model.LinkRecord, error)
}

// CreateOutcome is the result for one row of a create batch. Exactly one of
// Record, Errors, Skipped or Err is set.
type CreateOutcome struct {
	Row     int
	Record  *model.LinkRecord
	Errors  []string
	Skipped bool
	Err     error
}

// Created reports whether the row produced a stored link.
func (o CreateOutcome) Created() bool { return o.Record != nil }

// LinkServiceDeps groups the collaborators of the link service. Only Store
// is required.
type LinkServiceDeps struct {
	Store     repository.LinkStore
	Allocator *Allocator
	Expiry    ExpiryPolicy
	Stats     *StatsReader
	Notifier  ClickNotifier
	Logger    *zap.Logger
	Now       func() time.Time
}

type linkService struct {
	store     repository.LinkStore
	validator Validator
	allocator *Allocator
	expiry    ExpiryPolicy
	resolver  *Resolver
	stats     *StatsReader
	logger    *zap.Logger
	now       func() time.Time
}

// NewLinkService returns a service implementation backed by the given store.
func NewLinkService(deps LinkServiceDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	expiry := deps.Expiry
	if expiry.Default <= 0 {
		expiry = NewExpiryPolicy(0)
	}
	allocator := deps.Allocator
	if allocator == nil {
		allocator = NewAllocator(AllocatorDeps{Store: deps.Store, Logger: logger})
	}
	stats := deps.Stats
	if stats == nil {
		stats = NewStatsReader(deps.Store, 0)
	}

	return &linkService{
		store:     deps.Store,
		allocator: allocator,
		expiry:    expiry,
		resolver: NewResolver(ResolverDeps{
			Store:    deps.Store,
			Expiry:   expiry,
			Notifier: deps.Notifier,
			Logger:   logger,
			Now:      now,
		}),
		stats:  stats,
		logger: logger,
		now:    now,
	}
}

type pendingLink struct {
	row       int
	requested string
	record    model.LinkRecord
}

// CreateLinks validates and allocates every row, then commits all allocated
// rows in one all-or-nothing insert. Invalid rows are reported without
// affecting their siblings; a taken caller-supplied code aborts the whole
// batch with a *DuplicateShortcodeError and nothing is written.
func (s *linkService) CreateLinks(ctx context.Context, reqs []CreateLinkRequest) ([]CreateOutcome, error) {
	outcomes := make([]CreateOutcome, len(reqs))
	rowErrors := s.validator.ValidateBatch(reqs)
	createdAt := s.now().UTC().Truncate(time.Millisecond)

	claimed := make(map[string]int)
	var pending []*pendingLink

	for i, req := range reqs {
		outcomes[i].Row = i
		if req.Blank() {
			outcomes[i].Skipped = true
			continue
		}
		if len(rowErrors[i]) > 0 {
			outcomes[i].Errors = rowErrors[i]
			continue
		}

		var validity *int
		if req.Validity != "" {
			minutes, _ := ParseValidity(req.Validity)
			validity = &minutes
		}

		p := &pendingLink{
			row:       i,
			requested: req.Shortcode,
			record: model.LinkRecord{
				OriginalURL: strings.TrimSpace(req.OriginalURL),
				CreatedAt:   createdAt,
				ExpiresAt:   s.expiry.ExpiresAt(createdAt, validity),
				Clicks:      []model.ClickEvent{},
			},
		}
		if p.requested != "" {
			if _, dup := claimed[p.requested]; dup {
				return nil, s.rejectBatch(&DuplicateShortcodeError{Code: p.requested, Row: i})
			}
			claimed[p.requested] = i
			p.record.Code = p.requested
		}
		pending = append(pending, p)
	}

	for _, p := range pending {
		if p.requested == "" {
			continue
		}
		if err := s.allocator.CheckRequested(ctx, p.requested); err != nil {
			var dup *DuplicateShortcodeError
			if errors.As(err, &dup) {
				dup.Row = p.row
				return nil, s.rejectBatch(dup)
			}
			return nil, err
		}
	}

	pending, err := s.assignGenerated(ctx, pending, outcomes, claimed)
	if err != nil {
		return nil, err
	}

	for round := 1; len(pending) > 0; round++ {
		if round > maxCommitRounds {
			return nil, fmt.Errorf("insert links: codes kept colliding after %d rounds", maxCommitRounds)
		}

		taken, err := s.store.InsertAll(ctx, recordsOf(pending))
		if err != nil {
			return nil, fmt.Errorf("insert links: %w", err)
		}
		if len(taken) == 0 {
			break
		}

		takenSet := make(map[string]struct{}, len(taken))
		for _, code := range taken {
			takenSet[code] = struct{}{}
		}
		for _, p := range pending {
			if _, ok := takenSet[p.record.Code]; !ok {
				continue
			}
			if p.requested != "" {
				return nil, s.rejectBatch(&DuplicateShortcodeError{Code: p.requested, Row: p.row})
			}
			s.logger.Debug("generated code taken concurrently, drawing again",
				zap.String("code", p.record.Code), zap.Int("row", p.row))
			s.allocator.Observe(p.record.Code)
			p.record.Code = ""
		}

		if pending, err = s.assignGenerated(ctx, pending, outcomes, claimed); err != nil {
			return nil, err
		}
	}

	for _, p := range pending {
		rec := p.record
		outcomes[p.row].Record = &rec
		s.allocator.Observe(rec.Code)

		origin := "generated"
		if p.requested != "" {
			origin = "custom"
		}
		infraPrometheus.LinksCreated.WithLabelValues(origin).Inc()
		s.logger.Info("short link created",
			zap.String("code", rec.Code),
			zap.Int("row", p.row),
			zap.Time("expires_at", rec.ExpiresAt))
	}
	if len(pending) > 0 {
		s.stats.Invalidate()
	}

	return outcomes, nil
}

// assignGenerated draws codes for rows that still lack one. Rows whose
// allocation is exhausted are marked failed and dropped from the batch.
func (s *linkService) assignGenerated(ctx context.Context, pending []*pendingLink, outcomes []CreateOutcome, claimed map[string]int) ([]*pendingLink, error) {
	isClaimed := func(code string) bool {
		_, ok := claimed[code]
		return ok
	}

	kept := pending[:0]
	for _, p := range pending {
		if p.record.Code != "" {
			kept = append(kept, p)
			continue
		}

		code, err := s.allocator.Generate(ctx, isClaimed)
		if err != nil {
			if errors.Is(err, ErrAllocationExhausted) {
				outcomes[p.row].Err = err
				s.logger.Error("row dropped, no free shortcode", zap.Int("row", p.row))
				continue
			}
			return nil, fmt.Errorf("allocate shortcode: %w", err)
		}
		claimed[code] = p.row
		p.record.Code = code
		kept = append(kept, p)
	}
	return kept, nil
}

func (s *linkService) rejectBatch(dup *DuplicateShortcodeError) error {
	infraPrometheus.BatchesRejected.WithLabelValues("duplicate_shortcode").Inc()
	s.logger.Info("create batch rejected",
		zap.String("code", dup.Code),
		zap.Int("row", dup.Row))
	return dup
}

func recordsOf(pending []*pendingLink) []model.LinkRecord {
	out := make([]model.LinkRecord, len(pending))
	for i, p := range pending {
		out[i] = p.record
	}
	return out
}

func (s *linkService) Resolve(ctx context.Context, code string, visit Visit) (string, error) {
	return s.resolver.Resolve(ctx, code, visit)
}

func (s *linkService) GetAllLinks(ctx context.Context) ([]model.LinkRecord, error) {
	return s.stats.All(ctx)
}

func (s *linkService) GetLink(ctx context.Context, code string) (*model.LinkRecord, error) {
	link, err := s.store.Lookup(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}
