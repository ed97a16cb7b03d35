package model

import (
	"net/url"
	"regexp"
)

const (
	MinShortcodeLength = 4
	MaxShortcodeLength = 10
)

var alphanumericRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Alphanumeric reports whether s is non-empty and only ASCII letters and digits.
func Alphanumeric(s string) bool {
	return alphanumericRe.MatchString(s)
}

// ValidShortcode reports whether code has the shape every stored code must have.
func ValidShortcode(code string) bool {
	n := len(code)
	return n >= MinShortcodeLength && n <= MaxShortcodeLength && Alphanumeric(code)
}

// ValidURL requires an absolute URL with both a scheme and an authority.
func ValidURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
