package vocab

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransform lower-cases, decomposes, and strips combining marks so
// that "Développeur" and "developpeur" produce the same key.
var foldTransform = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	cases.Fold(),
	norm.NFC,
)

// Fold produces the canonical comparison form of a string: Unicode
// case-folded, diacritics stripped, punctuation mapped to spaces, and
// whitespace collapsed. Display forms are kept separately; Fold output
// is only for comparison keys and vocabulary lookup.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		folded = strings.ToLower(s)
	}

	folded = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case r == '+' || r == '#': // keep c++, c#
			return r
		default:
			return ' '
		}
	}, folded)

	return strings.Join(strings.Fields(folded), " ")
}
