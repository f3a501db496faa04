package contacts

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenLen is the shortest token that counts toward name and brand matching.
const minTokenLen = 3

// normalizeName folds diacritics, lowercases, and replaces everything but
// ASCII letters and digits with single spaces.
func normalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	mapped := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(mapped), " ")
}

// tokenSet returns the distinct normalized tokens of s with at least
// minTokenLen characters, minus any in stop.
func tokenSet(s string, stop map[string]bool) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(normalizeName(s)) {
		if len(tok) < minTokenLen || stop[tok] {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}
