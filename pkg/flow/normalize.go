package flow

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const edgePunctuation = "¡!¿?.,;:"

// Normalize reduces guest text to the form triggers are compared in: case
// folded, accents removed, inner whitespace collapsed, surrounding
// punctuation dropped. "¡Buenos Días!" and "buenos dias" normalize equally.
func Normalize(text string) string {
	folded := cases.Fold().String(strings.Join(strings.Fields(text), " "))

	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(stripAccents, folded)
	if err != nil {
		plain = folded
	}

	return strings.TrimSpace(strings.Trim(plain, edgePunctuation))
}
