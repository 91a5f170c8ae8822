package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cartsync/pkg/logging"
	"cartsync/pkg/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_ExposesCartMetrics(t *testing.T) {
	tel, err := telemetry.Setup(telemetry.Options{ServiceName: "metrics-test"})
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	telemetry.GetGlobalMetrics().RecordSync(context.Background(), telemetry.OpAdd, false)

	s := NewServer(0, logging.NopLogger{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cartsync_sync_dispatched")
}
