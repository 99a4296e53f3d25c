// Package textfold normalizes free text typed by people into a form that
// compares equal across casing, accents and spacing differences.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips combining marks ("Revisión" -> "revision",
// "añadir" -> "anadir") and collapses runs of whitespace to one space.
func Fold(s string) string {
	// Chained transformers keep state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Separators replaces the characters people use inside slugs, branch names and
// titles as word separators with spaces.
func Separators(s string) string {
	return separatorReplacer.Replace(s)
}

var separatorReplacer = strings.NewReplacer("_", " ", "-", " ", "/", " ")
