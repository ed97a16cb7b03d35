package service

import (
	"time"

	"github.com/sifan077/SnapLink/internal/app/model"
)

// DefaultValidity applies when a request names no validity.
const DefaultValidity = 30 * time.Minute

// ExpiryPolicy computes and checks link expiry.
type ExpiryPolicy struct {
	Default time.Duration
}

// NewExpiryPolicy returns a policy whose default window is def, or
// DefaultValidity when def is not positive.
func NewExpiryPolicy(def time.Duration) ExpiryPolicy {
	if def <= 0 {
		def = DefaultValidity
	}
	return ExpiryPolicy{Default: def}
}

// ExpiresAt returns createdAt plus validityMinutes, or plus the default
// window when validityMinutes is nil.
func (p ExpiryPolicy) ExpiresAt(createdAt time.Time, validityMinutes *int) time.Time {
	window := p.Default
	if window <= 0 {
		window = DefaultValidity
	}
	if validityMinutes != nil && *validityMinutes > 0 {
		window = time.Duration(*validityMinutes) * time.Minute
	}
	return createdAt.Add(window)
}

// IsExpired reports whether record stops resolving at now (now >= expiresAt).
func (ExpiryPolicy) IsExpired(record model.LinkRecord, now time.Time) bool {
	return record.ExpiredAt(now)
}
