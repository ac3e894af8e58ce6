// Package textutil holds the accent- and case-insensitive text handling
// shared by the normalizer rules, viewer scoping and column keys.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents removes combining marks after NFD decomposition, so
// "Martíns" becomes "Martins".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold returns the comparison form of a name: accents stripped, lower
// case, inner whitespace collapsed to single spaces.
func Fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(StripAccents(s))), " ")
}

// EqualFold compares two names ignoring case and accents.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}
