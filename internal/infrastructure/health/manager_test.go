package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cartsync/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthManager_Aggregation(t *testing.T) {
	hm := NewHealthManager(nil)
	ctx := context.Background()

	assert.True(t, hm.IsHealthy(ctx), "empty health manager should be healthy")

	hm.Register("catalog", func(context.Context) error { return nil })
	assert.True(t, hm.IsHealthy(ctx))

	hm.Register("gateway", func(context.Context) error { return fmt.Errorf("circuit open") })
	assert.False(t, hm.IsHealthy(ctx))

	report := hm.Check(ctx)
	assert.Equal(t, "Healthy", report.Components["catalog"])
	assert.Equal(t, "Unhealthy: circuit open", report.Components["gateway"])
	assert.Equal(t, []string{"catalog", "gateway"}, hm.Components())
}

func TestHealthManager_Recovery(t *testing.T) {
	hm := NewHealthManager(logging.NopLogger{})
	ctx := context.Background()

	var broken = true
	hm.Register("session_store", func(context.Context) error {
		if broken {
			return fmt.Errorf("closed")
		}
		return nil
	})

	assert.False(t, hm.IsHealthy(ctx))
	broken = false
	assert.True(t, hm.IsHealthy(ctx))
}

func TestHealthManager_Handler(t *testing.T) {
	hm := NewHealthManager(nil)
	hm.Register("catalog", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	hm.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Healthy)

	hm.Register("gateway", func(context.Context) error { return fmt.Errorf("down") })
	rec = httptest.NewRecorder()
	hm.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
