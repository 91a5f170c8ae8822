package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric names
const (
	MetricSyncDispatchedTotal = "cartsync_sync_dispatched_total"
	MetricSyncFailedTotal     = "cartsync_sync_failed_total"
	MetricSyncDroppedTotal    = "cartsync_sync_dropped_total"
	MetricReloadTotal         = "cartsync_reload_total"
	MetricCartLines           = "cartsync_cart_lines"
	MetricCatalogItems        = "cartsync_catalog_items"
	MetricCircuitBreakerOpen  = "cartsync_circuit_breaker_open"
)

// Sync operations, used as the "op" attribute
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	SyncDispatchedTotal metric.Int64Counter
	SyncFailedTotal     metric.Int64Counter
	SyncDroppedTotal    metric.Int64Counter
	ReloadTotal         metric.Int64Counter
	CartLines           metric.Int64ObservableGauge
	CatalogItems        metric.Int64ObservableGauge
	CircuitBreakerOpen  metric.Int64ObservableGauge

	// State for observable gauges
	mu           sync.RWMutex
	cartLines    int64
	catalogItems int64
	cbOpen       int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder. Until Setup runs the
// instruments are backed by a no-op meter.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{}
		_ = globalMetrics.InitMetrics(noop.NewMeterProvider().Meter("cartsync"))
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.SyncDispatchedTotal, err = meter.Int64Counter(MetricSyncDispatchedTotal, metric.WithDescription("Remote cart notifications dispatched"))
	if err != nil {
		return err
	}

	m.SyncFailedTotal, err = meter.Int64Counter(MetricSyncFailedTotal, metric.WithDescription("Remote cart notifications that failed"))
	if err != nil {
		return err
	}

	m.SyncDroppedTotal, err = meter.Int64Counter(MetricSyncDroppedTotal, metric.WithDescription("Remote cart notifications dropped because the dispatcher was full"))
	if err != nil {
		return err
	}

	m.ReloadTotal, err = meter.Int64Counter(MetricReloadTotal, metric.WithDescription("Cart reloads from the order service by outcome"))
	if err != nil {
		return err
	}

	// Observables
	m.CartLines, err = meter.Int64ObservableGauge(MetricCartLines, metric.WithDescription("Distinct items currently in the cart"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.cartLines)
			return nil
		}))
	if err != nil {
		return err
	}

	m.CatalogItems, err = meter.Int64ObservableGauge(MetricCatalogItems, metric.WithDescription("Items held by the catalog cache"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.catalogItems)
			return nil
		}))
	if err != nil {
		return err
	}

	m.CircuitBreakerOpen, err = meter.Int64ObservableGauge(MetricCircuitBreakerOpen, metric.WithDescription("Gateway circuit breaker open state (1=open, 0=closed)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.cbOpen)
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// RecordSync counts one dispatched notification and, when failed, its failure
func (m *MetricsHolder) RecordSync(ctx context.Context, op string, failed bool) {
	attrs := metric.WithAttributes(attribute.String("op", op))
	m.SyncDispatchedTotal.Add(ctx, 1, attrs)
	if failed {
		m.SyncFailedTotal.Add(ctx, 1, attrs)
	}
}

// RecordDropped counts a notification the dispatcher refused
func (m *MetricsHolder) RecordDropped(ctx context.Context, op string) {
	m.SyncDroppedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordReload counts a reload attempt by outcome
func (m *MetricsHolder) RecordReload(ctx context.Context, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.ReloadTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Helpers to update observable state

func (m *MetricsHolder) SetCartLines(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cartLines = int64(n)
}

func (m *MetricsHolder) SetCatalogItems(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogItems = int64(n)
}

func (m *MetricsHolder) SetCircuitBreakerOpen(open bool) {
	val := int64(0)
	if open {
		val = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cbOpen = val
}

func (m *MetricsHolder) GetCartLines() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cartLines
}

func (m *MetricsHolder) GetCatalogItems() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalogItems
}
