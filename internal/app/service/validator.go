package service

import (
	"errors"
	"strconv"
	"strings"

	"github.com/sifan077/SnapLink/internal/app/model"
)

// Row-level messages shown to whoever submitted the batch.
const (
	MsgInvalidURL          = "Invalid URL format."
	MsgInvalidValidity     = "Validity must be a positive number."
	MsgShortcodeCharacters = "Shortcode must be alphanumeric."
	MsgShortcodeLength     = "Shortcode must be 4 to 10 characters."
)

var errNonPositiveValidity = errors.New("validity must be positive")

// CreateLinkRequest is one row of a create batch, as typed by the user.
type CreateLinkRequest struct {
	OriginalURL string
	// Validity is the raw minutes value; empty means the default window.
	Validity string
	// Shortcode is an optional caller-chosen code.
	Shortcode string
}

// Blank reports whether the row carries no URL and should be skipped.
func (r CreateLinkRequest) Blank() bool {
	return strings.TrimSpace(r.OriginalURL) == ""
}

// Validator checks the shape of create requests. It never touches storage.
type Validator struct{}

// ValidateBatch returns one error list per row; nil means the row is valid
// or blank.
func (v Validator) ValidateBatch(reqs []CreateLinkRequest) [][]string {
	out := make([][]string, len(reqs))
	for i, req := range reqs {
		if req.Blank() {
			continue
		}
		out[i] = v.Validate(req)
	}
	return out
}

// Validate returns the problems with a single non-blank row.
func (Validator) Validate(req CreateLinkRequest) []string {
	var errs []string

	if !ValidURL(strings.TrimSpace(req.OriginalURL)) {
		errs = append(errs, MsgInvalidURL)
	}

	if req.Validity != "" {
		if _, err := ParseValidity(req.Validity); err != nil {
			errs = append(errs, MsgInvalidValidity)
		}
	}

	if req.Shortcode != "" {
		if !model.Alphanumeric(req.Shortcode) {
			errs = append(errs, MsgShortcodeCharacters)
		}
		if n := len(req.Shortcode); n < model.MinShortcodeLength || n > model.MaxShortcodeLength {
			errs = append(errs, MsgShortcodeLength)
		}
	}

	return errs
}

// ValidURL requires an absolute URL with both a scheme and an authority.
func ValidURL(raw string) bool { return model.ValidURL(raw) }

// ValidShortcode reports whether code has the shape every stored code must have.
func ValidShortcode(code string) bool { return model.ValidShortcode(code) }

// ParseValidity parses a strictly positive number of minutes.
func ParseValidity(raw string) (int, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if minutes <= 0 {
		return 0, errNonPositiveValidity
	}
	return minutes, nil
}
