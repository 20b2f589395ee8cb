package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crypto_dash/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/symbols" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"items":[
			{"rank":1,"symbol":"BTC-USD","name":"Bitcoin","price":64000,"change":1.5},
			{"rank":2,"symbol":"ETH-USD","name":"Ethereum","price":3100,"change":-0.4},
			{"rank":3,"symbol":"SOL-USD","name":"Solana","price":150,"change":2.2}
		],"total":3}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`
api:
  base_url: %s
  retry_base_delay: 1ms
ui:
  theme: light
  page_size: 10
  default_range: 1y
logging:
  dir: %s
storage:
  path: %s
  icon_dir: %s
`, baseURL, filepath.Join(dir, "logs"), filepath.Join(dir, "test.db"), filepath.Join(dir, "icons"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func initialized(t *testing.T, baseURL string) *Bootstrap {
	t.Helper()
	dir := t.TempDir()
	b := NewBootstrap()
	require.NoError(t, b.Initialize(writeConfig(t, dir, baseURL)))
	t.Cleanup(func() { b.Close() })
	return b
}

func TestInitialize_SeedsStoreFromConfig(t *testing.T) {
	b := initialized(t, "http://localhost:8000")

	require.NotNil(t, b.Gateway)
	require.NotNil(t, b.Listing)
	require.NotNil(t, b.Composer)
	require.NotNil(t, b.Icons)

	s := b.Store.State()
	assert.Equal(t, domain.ThemeLight, s.Theme)
	assert.Equal(t, 10, s.Pagination.PageSize)
	assert.Equal(t, 1, s.Pagination.CurrentPage)
	assert.Equal(t, domain.Range1Y, s.Detail.Range)
	assert.Equal(t, []int{10, 50, 100}, b.Listing.PageSizes())
}

func TestInitialize_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)

	b := NewBootstrap()
	require.NoError(t, b.Initialize("does-not-exist.yaml"))
	t.Cleanup(func() { b.Close() })

	assert.Equal(t, "http://localhost:8000", b.Config.API.BaseURL)
	assert.Equal(t, domain.ThemeDark, b.Store.State().Theme)
	assert.Equal(t, domain.DefaultPageSize, b.Store.State().Pagination.PageSize)
}

func TestInitialize_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ui:\n  theme: sepia\n"), 0644))

	var cerr *domain.ConfigError
	assert.ErrorAs(t, NewBootstrap().Initialize(path), &cerr)
}

func TestSyncOnCapture_RecordsTopAssets(t *testing.T) {
	srv := backend(t)
	b := initialized(t, srv.URL)
	b.Icons.SetSource(srv.URL + "/icons/%s.png")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := b.syncOnCapture(ctx)
	defer sub.Unsubscribe()

	require.True(t, b.Listing.Load(ctx))
	assert.True(t, b.Store.State().TopCaptured)

	require.Eventually(t, func() bool {
		for _, id := range []string{"BTC-USD", "ETH-USD", "SOL-USD"} {
			rec, err := b.Storage.GetAsset(id)
			if err != nil || rec == nil {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	rec, err := b.Storage.GetAsset("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", rec.Name)
	assert.False(t, rec.IsWatched)
}

func TestDebugServer_ServesMetrics(t *testing.T) {
	srv := backend(t)
	b := initialized(t, srv.URL)
	require.True(t, b.Listing.Load(context.Background()))

	debug := httptest.NewServer(b.debugServer("").Handler)
	defer debug.Close()

	resp, err := http.Get(debug.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "crypto_dash_gateway_requests_total")

	pp, err := http.Get(debug.URL + "/debug/pprof/")
	require.NoError(t, err)
	pp.Body.Close()
	assert.Equal(t, http.StatusOK, pp.StatusCode)
}
