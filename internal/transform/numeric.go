package transform

import (
	"strconv"
	"strings"
)

// Sentinels that upstream sources use for "no data". Compared
// case-insensitively after trimming.
var missingSentinels = map[string]struct{}{
	"":     {},
	"-":    {},
	"–": {}, // en dash
	"na":   {},
	"n/a":  {},
}

// ParseFloat converts a scraped numeric cell to a float. Missing-data
// sentinels and anything unparseable yield nil; dirty input is expected and
// never an error. Thousands separators are stripped.
func ParseFloat(s string) *float64 {
	trimmed := strings.TrimSpace(s)
	if _, missing := missingSentinels[strings.ToLower(trimmed)]; missing {
		return nil
	}

	cleaned := strings.ReplaceAll(trimmed, ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}
