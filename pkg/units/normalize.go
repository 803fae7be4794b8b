package units

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func isPunctuation(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// Normalize transliterates raw to its closest plain ASCII form, lower-cases it
// and drops punctuation. It is used both for building aliases and for
// matching user input, and Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	// Transformers keep state, so each call gets its own chain.
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(stripMarks, raw)
	if err != nil {
		plain = raw
	}

	// Lower-casing comes last: transliteration can produce capitals.
	ascii := cases.Lower(language.Und).String(unidecode.Unidecode(plain))

	return strings.Map(func(r rune) rune {
		if isPunctuation(r) {
			return -1
		}
		return r
	}, ascii)
}

// Tokens is the whitespace split of the normalized name.
func Tokens(raw string) []string {
	return strings.Fields(Normalize(raw))
}
