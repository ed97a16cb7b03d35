package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sifan077/SnapLink/internal/app/model"
	"github.com/sifan077/SnapLink/internal/app/repository"
	infraPrometheus "github.com/sifan077/SnapLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// Visit describes the request that resolves a code. Source and Location are
// opaque strings supplied by the transport; both may be empty.
type Visit struct {
	At       time.Time
	Source   string
	Location string
}

// ClickNotifier is told about every click after it has been stored.
type ClickNotifier interface {
	Notify(code string, event model.ClickEvent) error
}

// ResolverDeps groups what the resolver needs.
type ResolverDeps struct {
	Store    repository.LinkStore
	Expiry   ExpiryPolicy
	Notifier ClickNotifier
	Logger   *zap.Logger
	Now      func() time.Time
}

// Resolver turns a short code into its target and records the click.
type Resolver struct {
	store    repository.LinkStore
	expiry   ExpiryPolicy
	notifier ClickNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewResolver builds a resolver with the given dependencies.
func NewResolver(deps ResolverDeps) *Resolver {
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
	return &Resolver{
		store:    deps.Store,
		expiry:   expiry,
		notifier: deps.Notifier,
		logger:   logger,
		now:      now,
	}
}

// Resolve returns the original URL for code. Exactly one click is appended
// on success; not-found and expired resolutions record nothing.
func (r *Resolver) Resolve(ctx context.Context, code string, visit Visit) (string, error) {
	at := visit.At
	if at.IsZero() {
		at = r.now()
	}

	link, err := r.store.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			infraPrometheus.Resolutions.WithLabelValues(infraPrometheus.OutcomeNotFound).Inc()
			return "", ErrLinkNotFound
		}
		infraPrometheus.Resolutions.WithLabelValues(infraPrometheus.OutcomeError).Inc()
		return "", fmt.Errorf("lookup link: %w", err)
	}

	if r.expiry.IsExpired(*link, at) {
		infraPrometheus.Resolutions.WithLabelValues(infraPrometheus.OutcomeExpired).Inc()
		return "", ErrLinkExpired
	}

	event := model.ClickEvent{
		Timestamp: at.UTC().Truncate(time.Millisecond),
		Source:    visit.Source,
		Location:  visit.Location,
	}
	if err := r.store.AppendClick(ctx, code, event); err != nil {
		infraPrometheus.Resolutions.WithLabelValues(infraPrometheus.OutcomeError).Inc()
		return "", fmt.Errorf("record click: %w", err)
	}
	infraPrometheus.Resolutions.WithLabelValues(infraPrometheus.OutcomeRedirected).Inc()

	if r.notifier != nil {
		if err := r.notifier.Notify(code, event); err != nil {
			r.logger.Warn("failed to publish click", zap.String("code", code), zap.Error(err))
		}
	}

	return link.OriginalURL, nil
}
