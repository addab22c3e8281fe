package curator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fxsnapshot/fxsnapshot/internal/config"
)

func TestCurate(t *testing.T) {
	next, removed := Curate(
		[]string{"EUR", "JPY", "ZWL", "USD", "XXX"},
		[]string{"jpy", "EUR", "EUR"},
		"USD",
	)
	require.Equal(t, []string{"EUR", "JPY", "USD"}, next)
	require.Equal(t, []string{"XXX", "ZWL"}, removed)
}

func TestCurateKeepsPinnedWithoutSuccesses(t *testing.T) {
	next, removed := Curate([]string{"EUR"}, nil, "usd")
	require.Equal(t, []string{"USD"}, next)
	require.Equal(t, []string{"EUR"}, removed)
}

func TestApplyPrunesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracked_codes.json")
	list := config.NewFileCodeList(path)
	require.NoError(t, list.Save(ctx, []string{"EUR", "JPY", "ZWL", "USD"}))

	removed, err := New(list, "USD").Apply(ctx, []string{"EUR", "JPY"})
	require.NoError(t, err)
	require.Equal(t, []string{"ZWL"}, removed)

	got, err := list.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"EUR", "JPY", "USD"}, got)
}

func TestApplyUnchangedDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracked_codes.json")
	list := config.NewFileCodeList(path)
	require.NoError(t, list.Save(ctx, []string{"EUR", "USD"}))
	before, err := os.Stat(path)
	require.NoError(t, err)

	removed, err := New(list, "USD").Apply(ctx, []string{"EUR"})
	require.NoError(t, err)
	require.Empty(t, removed)

	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, before.ModTime(), after.ModTime())
}

func TestApplyWithoutFileCreatesIt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tracked_codes.json")
	list := config.NewFileCodeList(path)

	removed, err := New(list, "USD").Apply(ctx, []string{"JPY"})
	require.NoError(t, err)
	require.Contains(t, removed, "EUR")
	require.NotContains(t, removed, "JPY")
	require.NotContains(t, removed, "USD")

	got, err := list.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"JPY", "USD"}, got)
}
