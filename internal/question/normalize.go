package question

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, trims it and strips diacritics so that "Império"
// and "imperio" compare equal.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	// Transformers carry state; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func containsFold(normalizedText, keyword string) bool {
	k := Normalize(keyword)
	return k != "" && strings.Contains(normalizedText, k)
}
