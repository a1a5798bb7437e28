// Package transform converts raw ingestion batches into the processed and
// curated layers: typed rows, country reconciliation, and the joined
// country-year table.
package transform

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeCountryName reduces a free-text country name to the join key used
// for reconciliation: lowercase, diacritics stripped, anything outside
// [a-z0-9 ] replaced by a space, runs of spaces collapsed. Idempotent.
func NormalizeCountryName(name string) string {
	lower := strings.ToLower(name)
	if stripped, _, err := transform.String(stripMarks, lower); err == nil {
		lower = stripped
	}

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
