package repository

import (
	"context"
	"errors"

	"github.com/sifan077/SnapLink/internal/app/model"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
)

// LinkStore is the durable mapping from short code to LinkRecord. Records are
// never deleted or rewritten; only their click log grows.
type LinkStore interface {
	// Insert stores record iff its code is free and reports whether it did.
	// Any clicks already on the record are stored with it.
	Insert(ctx context.Context, record model.LinkRecord) (bool, error)
	// InsertAll stores every record or none of them. When any code is taken,
	// nothing is written and the taken codes are returned.
	InsertAll(ctx context.Context, records []model.LinkRecord) ([]string, error)
	// Exists reports whether code is allocated.
	Exists(ctx context.Context, code string) (bool, error)
	// Lookup returns the record for code, expired or not.
	Lookup(ctx context.Context, code string) (*model.LinkRecord, error)
	// AppendClick appends event to the click log of code, returning
	// ErrLinkNotFound when the code is unknown.
	AppendClick(ctx context.Context, code string, event model.ClickEvent) error
	// ListAll returns a snapshot of every record with its clicks.
	ListAll(ctx context.Context) ([]model.LinkRecord, error)
}

// repeatedCodes returns codes that occur more than once within records.
func repeatedCodes(records []model.LinkRecord) []string {
	seen := make(map[string]struct{}, len(records))
	var repeated []string
	for _, r := range records {
		if _, ok := seen[r.Code]; ok {
			repeated = append(repeated, r.Code)
			continue
		}
		seen[r.Code] = struct{}{}
	}
	return repeated
}
