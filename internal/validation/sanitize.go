package validation

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Sanitize strips every HTML element from user supplied free text
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	clean := strictPolicy.Sanitize(s)
	// StrictPolicy escapes entities; unescape only when that cannot revive markup
	if plain := html.UnescapeString(clean); !strings.ContainsAny(plain, "<>") {
		clean = plain
	}
	return strings.TrimSpace(clean)
}

// SanitizeAll sanitizes every element of ss
func SanitizeAll(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if v := Sanitize(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}
