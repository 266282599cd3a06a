package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slug turns a display name into the base handle: diacritics are folded to ASCII,
// everything is lowercased and the remaining alphanumeric words are joined with ".".
// "José  María-López" becomes "jose.maria.lopez". Returns "" when nothing survives.
func Slug(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		folded = name
	}

	words := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !isHandleRune(r)
	})
	return strings.Join(words, ".")
}

func isHandleRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
