package service

import (
	"errors"
	"fmt"

	"github.com/sifan077/SnapLink/internal/app/repository"
)

var (
	// ErrLinkNotFound is returned when a code has never been allocated.
	ErrLinkNotFound = repository.ErrLinkNotFound
	// ErrLinkExpired is returned when a code exists but its validity window closed.
	ErrLinkExpired = errors.New("link expired")
	// ErrDuplicateShortcode is returned when a caller-supplied code is taken.
	ErrDuplicateShortcode = errors.New("shortcode already exists")
	// ErrAllocationExhausted is returned when no free code was drawn within the retry cap.
	ErrAllocationExhausted = errors.New("could not allocate a free shortcode")
)

// DuplicateShortcodeError names the taken code and the batch row that asked for it.
type DuplicateShortcodeError struct {
	Code string
	Row  int
}

func (e *DuplicateShortcodeError) Error() string {
	return fmt.Sprintf("shortcode %q already exists", e.Code)
}

func (e *DuplicateShortcodeError) Unwrap() error { return ErrDuplicateShortcode }
