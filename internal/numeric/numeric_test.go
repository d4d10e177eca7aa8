package numeric

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseDecimalSeparators(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"34,5", "34.5"},
		{"34.5", "34.5"},
		{"1.234.567,89", "1234567.89"},
		{"0", "0"},
		{"12.", "12"},
	}
	for _, tc := range cases {
		got := ParseDecimal(tc.in, decimal.Zero)
		require.True(t, got.Equal(decimal.RequireFromString(tc.want)), "ParseDecimal(%q) = %s", tc.in, got)
	}
}

func TestParseDecimalFallback(t *testing.T) {
	fallback := decimal.NewFromInt(7)
	for _, in := range []string{"", "   ", "abc", "..", ",", "1..2,3,4x"} {
		got := ParseDecimal(in, fallback)
		require.True(t, got.Equal(fallback), "ParseDecimal(%q) = %s", in, got)
	}
}

func TestSanitizeQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.234,5678", "1234.567"},
		{"12,5", "12.5"},
		{"12.5", "12.5"},
		{"abc12x3", "123"},
		{"1,000.25", "1000.25"},
		{"", ""},
		{"   ", ""},
		{"7", "7"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, SanitizeQuantity(tc.in, 3), "SanitizeQuantity(%q)", tc.in)
	}
}

func TestSanitizeQuantityIdempotent(t *testing.T) {
	inputs := []string{"1.234,5678", "12,5", "12.", "0,001", "9999", "x", "1.2.3,456789"}
	for _, in := range inputs {
		once := SanitizeQuantity(in, 3)
		twice := SanitizeQuantity(once, 3)
		require.Equal(t, once, twice, "sanitizer not idempotent for %q", in)
	}
}

func TestSanitizeQuantityTruncates(t *testing.T) {
	require.Equal(t, "1.999", SanitizeQuantity("1,9999", 3))
	require.Equal(t, "2", SanitizeQuantity("2,9", 0))
}

func TestRound2(t *testing.T) {
	require.Equal(t, "165.29", Round2(decimal.RequireFromString("165.289256")).StringFixed(2))
	require.Equal(t, "34.71", Round2(decimal.RequireFromString("34.710743")).StringFixed(2))
}
