package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const snapshot = `[
    {"code": "EUR-USD", "value": "1.085", "comparison_code": "USD", "computed_value": "1.085", "updated_at": "2026-10-19T10:00:00Z"},
    {"code": "JPY-USD", "value": "0.0067", "comparison_code": "USD", "computed_value": "0.0067", "updated_at": "2026-10-19T10:00:00Z"},
    {"code": "USD-USD", "value": "1", "comparison_code": "USD", "computed_value": "1", "updated_at": "2026-10-19T10:00:00Z"}
]`

func serve(t *testing.T, body string, hits *atomic.Int32) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.URL.Path != "/datos.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestListCodes(t *testing.T) {
	base := serve(t, snapshot, nil)
	c := New(Options{})

	codes, err := c.ListCodes(context.Background(), base+"/datos.json")
	require.NoError(t, err)
	require.Equal(t, []string{"EUR", "JPY", "USD"}, codes)
}

func TestRate(t *testing.T) {
	base := serve(t, snapshot, nil)
	c := New(Options{})
	ctx := context.Background()

	r, err := c.Rate(ctx, base+"/datos.json", "eur", "JPY")
	require.NoError(t, err)
	require.Equal(t, "161.9403", r.Round(4).String())

	r, err = c.Rate(ctx, base+"/datos.json", "JPY", "USD")
	require.NoError(t, err)
	require.Equal(t, "0.0067", r.String())

	r, err = c.Rate(ctx, base+"/datos.json", "USD", "USD")
	require.NoError(t, err)
	require.Equal(t, "1", r.String())
}

func TestRateNotFound(t *testing.T) {
	base := serve(t, snapshot, nil)
	c := New(Options{})

	_, err := c.Rate(context.Background(), base+"/datos.json", "EUR", "XXX")
	require.ErrorIs(t, err, ErrNotFound)

	var lerr *LookupError
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, NotFound, lerr.Kind)
	require.Equal(t, "XXX", lerr.Code)
}

func TestSourceUnreachable(t *testing.T) {
	base := serve(t, snapshot, nil)
	c := New(Options{Timeout: 5 * time.Second})

	_, err := c.ListCodes(context.Background(), base+"/missing.json")
	require.ErrorIs(t, err, ErrSourceUnreachable)
	require.NotErrorIs(t, err, ErrNotFound)

	_, err = c.ListCodes(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, ErrSourceUnreachable)

	_, err = c.ListCodes(context.Background(), "")
	require.ErrorIs(t, err, ErrSourceUnreachable)
}

func TestMalformedSource(t *testing.T) {
	c := New(Options{})

	base := serve(t, `{"tracked_codes": []}`, nil)
	_, err := c.ListCodes(context.Background(), base+"/datos.json")
	require.ErrorIs(t, err, ErrMalformedSource)

	zero := serve(t, `[{"code": "EUR-USD", "value": "1.1"}, {"code": "XYZ-USD", "value": "0"}]`, nil)
	_, err = c.Rate(context.Background(), zero+"/datos.json", "EUR", "XYZ")
	require.ErrorIs(t, err, ErrMalformedSource)
}

func TestLocalFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datos.json")
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o644))
	c := New(Options{})

	r, err := c.Rate(context.Background(), path, "EUR", "USD")
	require.NoError(t, err)
	require.Equal(t, "1.085", r.String())
}

func TestCacheAvoidsRefetch(t *testing.T) {
	var hits atomic.Int32
	base := serve(t, snapshot, &hits)
	c := New(Options{CacheTTL: time.Minute})
	ctx := context.Background()

	for range 3 {
		_, err := c.ListCodes(ctx, base+"/datos.json")
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, hits.Load())
}
