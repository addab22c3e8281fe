package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fxsnapshot/fxsnapshot/internal/client"
)

const snapshot = `[
    {"code": "EUR-USD", "value": "1.085", "comparison_code": "USD", "computed_value": "1.085", "updated_at": "2026-10-19T10:00:00Z"},
    {"code": "JPY-USD", "value": "0.0067", "comparison_code": "USD", "computed_value": "0.0067", "updated_at": "2026-10-19T10:00:00Z"},
    {"code": "USD-USD", "value": "1", "comparison_code": "USD", "computed_value": "1", "updated_at": "2026-10-19T10:00:00Z"}
]`

func newServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datos.json")
	if body != "" {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	srv := httptest.NewServer(NewRouter(NewHandler(client.New(client.Options{}), path)))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestCodes(t *testing.T) {
	srv := newServer(t, snapshot)

	var body struct {
		Codes []string `json:"codes"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/codes", &body))
	require.Equal(t, []string{"EUR", "JPY", "USD"}, body.Codes)
}

func TestRate(t *testing.T) {
	srv := newServer(t, snapshot)

	var body rateResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/rate/EUR/USD", &body))
	require.Equal(t, "1.085", body.Rate)

	require.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/rate/EUR/XXX", nil))
}

func TestSnapshotServesExport(t *testing.T) {
	srv := newServer(t, snapshot)

	var recs []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/datos.json", &recs))
	require.Len(t, recs, 3)

	c := client.New(client.Options{})
	codes, err := c.ListCodes(t.Context(), srv.URL+"/datos.json")
	require.NoError(t, err)
	require.Equal(t, []string{"EUR", "JPY", "USD"}, codes)
}

func TestMissingExport(t *testing.T) {
	srv := newServer(t, "")
	require.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/codes", nil))
}
