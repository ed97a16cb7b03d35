// Package snapshot reads and writes the persisted link format: a JSON array
// of records with ISO-8601 timestamps and their click logs.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sifan077/SnapLink/internal/app/model"
	"github.com/sifan077/SnapLink/internal/app/repository"
)

// Encode writes links in the persisted format.
func Encode(w io.Writer, links []model.LinkRecord) error {
	if links == nil {
		links = []model.LinkRecord{}
	}
	for i := range links {
		if links[i].Clicks == nil {
			links[i].Clicks = []model.ClickEvent{}
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(links)
}

// Decode reads links in the persisted format and checks each record is sane.
func Decode(r io.Reader) ([]model.LinkRecord, error) {
	var links []model.LinkRecord
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	for i := range links {
		l := &links[i]
		if l.Code == "" {
			return nil, fmt.Errorf("snapshot: record %d has no shortcode", i)
		}
		if !model.ValidShortcode(l.Code) {
			return nil, fmt.Errorf("snapshot: record %d has malformed shortcode %q", i, l.Code)
		}
		if !model.ValidURL(l.OriginalURL) {
			return nil, fmt.Errorf("snapshot: record %q has invalid originalUrl", l.Code)
		}
		if !l.ExpiresAt.After(l.CreatedAt) {
			return nil, fmt.Errorf("snapshot: record %q expires before it was created", l.Code)
		}
		if l.Clicks == nil {
			l.Clicks = []model.ClickEvent{}
		}
	}
	return links, nil
}

// Export writes every link in store to w and returns how many were written.
func Export(ctx context.Context, store repository.LinkStore, w io.Writer) (int, error) {
	links, err := store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot: list links: %w", err)
	}
	if err := Encode(w, links); err != nil {
		return 0, fmt.Errorf("snapshot: encode: %w", err)
	}
	return len(links), nil
}

// Import inserts every record read from r. Records whose code is already
// stored are left untouched and reported in skipped.
func Import(ctx context.Context, store repository.LinkStore, r io.Reader) (imported int, skipped []string, err error) {
	links, err := Decode(r)
	if err != nil {
		return 0, nil, err
	}
	for _, l := range links {
		ok, err := store.Insert(ctx, l)
		if err != nil {
			return imported, skipped, fmt.Errorf("snapshot: insert %q: %w", l.Code, err)
		}
		if !ok {
			skipped = append(skipped, l.Code)
			continue
		}
		imported++
	}
	return imported, skipped, nil
}

// WriteFile exports store to path, replacing the file atomically.
func WriteFile(ctx context.Context, store repository.LinkStore, path string) (int, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("snapshot: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return 0, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := Export(ctx, store, tmp)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("snapshot: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("snapshot: replace %s: %w", path, err)
	}
	return n, nil
}

// ReadFile imports path into store. A missing file imports nothing.
func ReadFile(ctx context.Context, store repository.LinkStore, path string) (int, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer f.Close()
	return Import(ctx, store, f)
}
