package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes text for indexing and matching: lowercase,
// diacritics stripped, punctuation flattened to spaces, and runs of
// whitespace collapsed. "Sigur Rós" and "sigur ros" normalize to the
// same string.
func Normalize(s string) string {
	s = strings.ToLower(s)

	// Decompose so combining marks become separate runes, then drop them.
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark, skip
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
