package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison (lowercase, no diacritics, spaces for dashes and underscores).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	return strings.Join(strings.Fields(name), " ")
}

// SameName reports whether two names refer to the same person after normalization.
func SameName(a, b string) bool {
	return NormalizePersonName(a) == NormalizePersonName(b)
}

// SafeName turns a display name into a filename-safe token ("Jiří Novák" -> "Jiri_Novak").
// Whitespace becomes underscores; anything but letters, digits, '_' and '-' is dropped.
func SafeName(name string) string {
	name = RemoveDiacritics(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), "_")
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			return r
		}
		return -1
	}, name)
}
