package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cartsync/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderService(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/food/list":
			_, _ = w.Write([]byte(`{"success":true,"data":[{"_id":"a","price":10}]}`))
		case "/api/cart/get":
			_, _ = w.Write([]byte(`{"success":true,"cartData":{"a":3}}`))
		default:
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(t *testing.T, baseURL string) *Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Gateway.BaseURL = baseURL
	cfg.Session.Path = filepath.Join(t.TempDir(), "session.db")
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Telemetry.EnableMetrics = false
	cfg.System.LogLevel = "ERROR"
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", cfg.Gateway.BaseURL)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cartsync.yaml")
	content := "gateway:\n  base_url: http://orders:4000\nsession:\n  store: sqlite\n  path: " +
		filepath.Join(dir, "s.db") + "\n  key: token\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://orders:4000", cfg.Gateway.BaseURL)
}

func TestPreFlight_MissingSessionDir(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Session.Path = filepath.Join(t.TempDir(), "missing", "s.db")
	assert.Error(t, checkPreFlight(cfg))

	cfg.Session.Store = "memory"
	assert.NoError(t, checkPreFlight(cfg))
}

func TestPreFlight_StaticDir(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Session.Store = "memory"
	cfg.Server.StaticDir = filepath.Join(t.TempDir(), "nope")
	assert.Error(t, checkPreFlight(cfg))
}

func TestNewAppFromConfig_RestoresSession(t *testing.T) {
	ts := orderService(t)
	app, err := NewAppFromConfig(testConfig(t, ts.URL))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, app.Slot.Set(ctx, "T"))

	app.Store.Bootstrap(ctx)
	assert.Equal(t, map[string]int{"a": 3}, app.Store.CartItems())
	assert.Equal(t, "30", app.Store.GetTotalCartAmount().String())
	assert.True(t, app.Health.IsHealthy(ctx))

	app.Store.AddToCart(ctx, "a")
	require.NoError(t, app.Close())
	assert.Equal(t, map[string]int{"a": 4}, app.Store.CartItems())
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	ts := orderService(t)
	app, err := NewAppFromConfig(testConfig(t, ts.URL))
	require.NoError(t, err)
	defer app.Close()

	runners := app.ServeRunners()
	assert.Len(t, runners, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, runners...) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
	}
}

func TestApp_RunReturnsRunnerError(t *testing.T) {
	ts := orderService(t)
	app, err := NewAppFromConfig(testConfig(t, ts.URL))
	require.NoError(t, err)
	defer app.Close()

	boom := errors.New("boom")
	err = app.Run(context.Background(), RunnerFunc(func(context.Context) error { return boom }))
	assert.ErrorIs(t, err, boom)
}
