package types

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// NormalizePlate canonicalizes a license plate: surrounding space is trimmed,
// full-width characters (common in some LPR camera feeds) are folded to their
// narrow form and letters are upper-cased.
func NormalizePlate(raw string) string {
	folded := width.Fold.String(strings.TrimSpace(raw))
	// A Caser keeps state, so each call builds its own.
	return cases.Upper(language.Und).String(folded)
}
