package rates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
	}{
		{raw: "1,234.56", expected: "1234.56"},
		{raw: "1.234,56", expected: "1234.56"},
		{raw: "0,0067", expected: "0.0067"},
		{raw: "1.0850", expected: "1.085"},
		{raw: "$ 1,085.20 USD", expected: "1085.2"},
		{raw: "161,94 €", expected: "161.94"},
		{raw: "1,234,567", expected: "1234567"},
		{raw: "1.234.567", expected: "1234567"},
		{raw: "12.345.678,9", expected: "12345678.9"},
		{raw: "12,345,678.9", expected: "12345678.9"},
		{raw: "42", expected: "42"},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got := ParseDecimal(tc.raw)
			require.True(t, got.Equal(decimal.RequireFromString(tc.expected)), "got %s", got)
		})
	}
}

func TestParseDecimalInvalid(t *testing.T) {
	for _, raw := range []string{"", "N/A", "—", ".", ",", "1.2.3,4,5"} {
		require.True(t, ParseDecimal(raw).IsZero(), "raw %q", raw)
	}
}

func TestParseDecimalUSAndEuropeanAgree(t *testing.T) {
	us := ParseDecimal("1,234.56")
	eu := ParseDecimal("1.234,56")
	require.True(t, us.Equal(eu))
	require.Equal(t, "1234.56", us.String())
}
