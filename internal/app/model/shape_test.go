package model

import "testing"

func TestValidShortcode(t *testing.T) {
	cases := map[string]bool{
		"abcd":        true,
		"Ab12Cd34Ef":  true,
		"abc":         false,
		"abcdefghijk": false,
		"ab-cd":       false,
		"a/b-c!!too":  false,
		"":            false,
	}
	for code, want := range cases {
		if got := ValidShortcode(code); got != want {
			t.Errorf("ValidShortcode(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestValidURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/a": true,
		"ftp://files.local":     true,
		"not a url":             false,
		"example.com":           false,
		"https://":              false,
		"":                      false,
	}
	for raw, want := range cases {
		if got := ValidURL(raw); got != want {
			t.Errorf("ValidURL(%q) = %v, want %v", raw, got, want)
		}
	}
}
