package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFloat(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"4.7", floatPtr(4.7)},
		{"1,234.5", floatPtr(1234.5)},
		{"1,234,567", floatPtr(1234567)},
		{" 42 ", floatPtr(42)},
		{"-3.2", floatPtr(-3.2)},
		{"", nil},
		{"-", nil},
		{"–", nil}, // en dash
		{"NA", nil},
		{"n/a", nil},
		{"N/A", nil},
		{"+18%", nil},
		{"abc", nil},
	}
	for _, tc := range cases {
		got := ParseFloat(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		assert.InDelta(t, *tc.want, *got, 1e-9, "input %q", tc.in)
	}
}

func floatPtr(v float64) *float64 { return &v }
