package domain

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery removes diacritical marks from s: canonical decomposition,
// removal of nonspacing marks, then recomposition. Base letters, digits,
// whitespace and punctuation are left untouched.
func NormalizeQuery(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		// Only reachable on invalid UTF-8; the input is still usable as-is.
		return s
	}
	return out
}
