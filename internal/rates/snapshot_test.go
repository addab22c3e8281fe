package rates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaultFactor(t *testing.T) {
	b := NewBuilder("USD-USD", "USD", decimal.Zero)
	require.True(t, b.Add("EUR-USD", "USD", decimal.RequireFromString("1.0850")))

	recs := b.Records()
	require.Len(t, recs, 2)
	require.Equal(t, "EUR-USD", recs[0].Code)
	require.True(t, recs[0].ComputedValue.Equal(recs[0].Value))
}

func TestBuilderFactor(t *testing.T) {
	b := NewBuilder("USD-USD", "USD", decimal.RequireFromString("1.5"))
	b.Add("EUR-USD", "USD", decimal.RequireFromString("2"))

	recs := b.Records()
	require.Equal(t, "3", recs[0].ComputedValue.String())
}

func TestBuilderRejectsNonPositive(t *testing.T) {
	b := NewBuilder("USD-USD", "USD", decimal.Zero)
	require.False(t, b.Add("EUR-USD", "USD", decimal.Zero))
	require.False(t, b.Add("GBP-USD", "USD", decimal.NewFromInt(-1)))
	require.False(t, b.Add("USD-USD", "USD", decimal.NewFromInt(2)))
	require.Equal(t, 0, b.Len())

	recs := b.Records()
	require.Len(t, recs, 1)
	require.Equal(t, "USD-USD", recs[0].Code)
	require.Equal(t, "1", recs[0].Value.String())
}

func TestBuilderLastWriteWins(t *testing.T) {
	b := NewBuilder("USD-USD", "USD", decimal.Zero)
	b.Add("EUR-USD", "USD", decimal.RequireFromString("1.08"))
	b.Add("EUR-USD", "USD", decimal.RequireFromString("1.09"))

	require.Equal(t, 1, b.Len())
	require.Equal(t, "1.09", b.Records()[0].Value.String())
}

func TestKey(t *testing.T) {
	require.Equal(t, "EUR-USD", Key("EUR", "USD"))
	require.Equal(t, "EUR", CodeFromKey("EUR-USD", "USD"))
	require.Equal(t, "EUR", CodeFromKey("EUR", "USD"))
}
