package classifier

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Spanish)

// Normalize lower-cases text, composes accents (so "u" + combining acute
// matches "ú") and collapses runs of whitespace.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = lower.String(text)
	return strings.Join(strings.Fields(text), " ")
}
