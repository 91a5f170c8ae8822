package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) add(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
}

func (r *recorder) count(p string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.paths {
		if got == p {
			n++
		}
	}
	return n
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cartsync.yaml")
	content := `gateway:
  base_url: ` + baseURL + `
session:
  store: sqlite
  path: ` + filepath.Join(dir, "session.db") + `
  key: token
telemetry:
  enable_metrics: false
system:
  log_level: ERROR
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"-env", ""}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: cartsync")

	code, _, stderr = runCLI(t, "dance")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "dance"`)
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "cartsync version dev")
}

func TestRun_MissingArguments(t *testing.T) {
	code, _, stderr := runCLI(t, "add")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "missing arguments")
}

func TestRun_SessionLifecycle(t *testing.T) {
	rec := &recorder{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
		switch r.URL.Path {
		case "/api/food/list":
			_, _ = w.Write([]byte(`{"success":true,"data":[{"_id":"a","name":"Salad","price":10},{"_id":"b","name":"Rolls","price":5}]}`))
		case "/api/cart/get":
			_, _ = w.Write([]byte(`{"success":true,"cartData":{"b":1}}`))
		default:
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	defer ts.Close()
	cfg := writeConfig(t, ts.URL)

	code, stdout, stderr := runCLI(t, "-config", cfg, "add", "a")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Total: 10.00")
	assert.Equal(t, 0, rec.count("/api/cart/add"), "no session, no remote call")

	code, stdout, stderr = runCLI(t, "-config", cfg, "login", "T")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Logged in")
	assert.Contains(t, stdout, "Total: 5.00")

	code, stdout, stderr = runCLI(t, "-config", cfg, "add", "a", "a")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Total: 25.00")
	assert.Equal(t, 2, rec.count("/api/cart/add"), "notifications drained before exit")

	code, stdout, _ = runCLI(t, "-config", cfg, "show")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Salad")
	assert.Contains(t, stdout, "session active: true")

	code, _, _ = runCLI(t, "-config", cfg, "logout")
	require.Equal(t, 0, code)

	code, stdout, _ = runCLI(t, "-config", cfg, "total")
	require.Equal(t, 0, code)
	assert.Equal(t, "0.00\n", stdout)
}

func TestRun_InvalidItemID(t *testing.T) {
	code, _, stderr := runCLI(t, "add", "bad id")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid item id")
}
