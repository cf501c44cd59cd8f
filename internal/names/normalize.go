// Package names canonicalizes free-text person names into stable,
// matchable identity keys. Source files disagree on name formatting
// ("Last, First" vs "First Last", stray punctuation, case), so every
// cross-source join goes through Normalize first.
package names

import (
	"strings"
	"unicode"
)

// placeholders are values that signal "no identity" rather than a name.
// Matched case-insensitively after trimming.
var placeholders = map[string]struct{}{
	"n/a":        {},
	"na":         {},
	"none":       {},
	"null":       {},
	"nan":        {},
	"unassigned": {},
	"unknown":    {},
	"-":          {},
	"--":         {},
}

// Normalize canonicalizes a raw name into a matchable key. Empty input and
// recognized placeholders return "". A single comma is treated as
// "Last, First" and re-ordered. The result is lowercase with every
// non-alphanumeric run collapsed to a single space.
//
// Normalize is deterministic and idempotent: Normalize(Normalize(x)) ==
// Normalize(x) for all x.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if _, ok := placeholders[strings.ToLower(s)]; ok {
		return ""
	}

	// "Last, First" -> "First Last". Only the first comma splits; anything
	// after a second comma (suffixes like "Jr") stays on the first-name side.
	if i := strings.IndexByte(s, ','); i >= 0 {
		last := s[:i]
		first := s[i+1:]
		s = first + " " + last
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		} else {
			pendingSpace = true
		}
	}
	return b.String()
}

// IsPlaceholder reports whether a raw value is one of the recognized
// "no identity" placeholders.
func IsPlaceholder(raw string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}
