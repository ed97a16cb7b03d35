package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sifan077/SnapLink/internal/app/model"
	"github.com/sifan077/SnapLink/internal/app/repository"
	infraPrometheus "github.com/sifan077/SnapLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	// CodeAlphabet is the symbol set for generated codes.
	CodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	DefaultCodeLength            = 6
	DefaultMaxAllocationAttempts = 1000

	filterCapacity      = 100_000
	filterFalsePositive = 0.001
)

// RandomSource draws uniform integers in [0, n). *rand.Rand satisfies it;
// tests inject scripted sources.
type RandomSource interface {
	IntN(n int) int
}

// AllocatorDeps groups what the allocator needs.
type AllocatorDeps struct {
	Store       repository.LinkStore
	Logger      *zap.Logger
	Random      RandomSource
	CodeLength  int
	MaxAttempts int
}

// Allocator picks short codes that are not yet present in the store. The
// check it performs is advisory; the store's insert-if-absent is what makes
// a code unique, and callers retry when that insert refuses a code.
type Allocator struct {
	store       repository.LinkStore
	logger      *zap.Logger
	codeLength  int
	maxAttempts int

	randMu sync.Mutex
	random RandomSource

	filterMu    sync.Mutex
	seen        *bloom.BloomFilter
	filterCap   uint
	filterCount uint
}

// NewAllocator builds an allocator, seeding a PCG source from the clock when
// no RandomSource is given.
func NewAllocator(deps AllocatorDeps) *Allocator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	random := deps.Random
	if random == nil {
		seed := uint64(time.Now().UnixNano())
		random = rand.New(rand.NewPCG(seed, seed>>17|1))
	}
	length := deps.CodeLength
	if length < model.MinShortcodeLength || length > model.MaxShortcodeLength {
		length = DefaultCodeLength
	}
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAllocationAttempts
	}

	return &Allocator{
		store:       deps.Store,
		logger:      logger,
		codeLength:  length,
		maxAttempts: attempts,
		random:      random,
		seen:        bloom.NewWithEstimates(filterCapacity, filterFalsePositive),
		filterCap:   filterCapacity,
	}
}

// Allocate returns requested when it is free, or a freshly generated code
// when requested is empty. claimed marks codes already promised to other
// rows of the same batch; it may be nil.
func (a *Allocator) Allocate(ctx context.Context, requested string, claimed func(string) bool) (string, error) {
	if requested != "" {
		if err := a.CheckRequested(ctx, requested); err != nil {
			return "", err
		}
		return requested, nil
	}
	return a.Generate(ctx, claimed)
}

// CheckRequested fails with a DuplicateShortcodeError when code is taken.
func (a *Allocator) CheckRequested(ctx context.Context, code string) error {
	exists, err := a.store.Exists(ctx, code)
	if err != nil {
		return fmt.Errorf("check shortcode: %w", err)
	}
	if exists {
		return &DuplicateShortcodeError{Code: code, Row: -1}
	}
	return nil
}

// Generate draws candidates until one is free in the store and not claimed,
// giving up with ErrAllocationExhausted after the configured attempts. A
// filter hit skips the candidate without spending an attempt; once maxAttempts
// hits have been skipped, further hits are checked against the store.
func (a *Allocator) Generate(ctx context.Context, claimed func(string) bool) (string, error) {
	skips := 0
	for attempt := 1; attempt <= a.maxAttempts; {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := a.draw()
		if claimed != nil && claimed(candidate) {
			attempt++
			continue
		}
		if skips < a.maxAttempts && a.seenBefore(candidate) {
			skips++
			continue
		}

		exists, err := a.store.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check candidate: %w", err)
		}
		if exists {
			a.Observe(candidate)
			attempt++
			continue
		}

		infraPrometheus.AllocationAttempts.Observe(float64(attempt))
		if attempt > 1 || skips > 0 {
			a.logger.Debug("generated code after collisions",
				zap.String("code", candidate),
				zap.Int("attempts", attempt),
				zap.Int("filter_skips", skips))
		}
		return candidate, nil
	}

	infraPrometheus.AllocationAttempts.Observe(float64(a.maxAttempts))
	a.logger.Error("shortcode allocation exhausted", zap.Int("attempts", a.maxAttempts))
	return "", ErrAllocationExhausted
}

// Observe records code as allocated so later draws skip it without a store
// round trip. A full filter is replaced by an empty one twice its size; the
// codes it forgets fall back to store checks.
func (a *Allocator) Observe(code string) {
	a.filterMu.Lock()
	defer a.filterMu.Unlock()

	if a.filterCount >= a.filterCap {
		a.resetFilterLocked(a.filterCap * 2)
		a.logger.Info("allocator filter full, resized", zap.Uint("capacity", a.filterCap))
	}
	a.seen.AddString(code)
	a.filterCount++
}

// Warm loads every code already in the store into a filter sized for them.
func (a *Allocator) Warm(ctx context.Context) (int, error) {
	links, err := a.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("warm allocator: %w", err)
	}

	a.filterMu.Lock()
	a.resetFilterLocked(max(filterCapacity, uint(len(links))*2))
	for _, l := range links {
		a.seen.AddString(l.Code)
	}
	a.filterCount = uint(len(links))
	a.filterMu.Unlock()

	return len(links), nil
}

func (a *Allocator) resetFilterLocked(capacity uint) {
	a.seen = bloom.NewWithEstimates(capacity, filterFalsePositive)
	a.filterCap = capacity
	a.filterCount = 0
}

func (a *Allocator) seenBefore(code string) bool {
	a.filterMu.Lock()
	defer a.filterMu.Unlock()
	return a.seen.TestString(code)
}

func (a *Allocator) draw() string {
	a.randMu.Lock()
	defer a.randMu.Unlock()

	buf := make([]byte, a.codeLength)
	for i := range buf {
		buf[i] = CodeAlphabet[a.random.IntN(len(CodeAlphabet))]
	}
	return string(buf)
}
