// Package health aggregates component checks into a single status
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"cartsync/internal/core"
)

// Check reports a component problem as a non-nil error
type Check func(ctx context.Context) error

// Report is the aggregated result of every registered check
type Report struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// HealthManager aggregates health status from different components
type HealthManager struct {
	logger core.ILogger
	mu     sync.RWMutex
	checks map[string]Check
	failed map[string]bool
}

// NewHealthManager creates a new health manager. logger may be nil.
func NewHealthManager(logger core.ILogger) *HealthManager {
	hm := &HealthManager{
		checks: make(map[string]Check),
		failed: make(map[string]bool),
	}
	if logger != nil {
		hm.logger = logger.WithField("component", "health_manager")
	}
	return hm
}

// Register adds or replaces the check for component
func (hm *HealthManager) Register(component string, check Check) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = check
}

// Components lists registered component names in order
func (hm *HealthManager) Components() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every check and logs components whose state changed
func (hm *HealthManager) Check(ctx context.Context) Report {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	report := Report{
		Healthy:    true,
		Components: make(map[string]string, len(hm.checks)),
		CheckedAt:  time.Now(),
	}
	for component, check := range hm.checks {
		err := check(ctx)
		if err != nil {
			report.Healthy = false
			report.Components[component] = "Unhealthy: " + err.Error()
		} else {
			report.Components[component] = "Healthy"
		}

		wasFailed := hm.failed[component]
		hm.failed[component] = err != nil
		if hm.logger == nil || wasFailed == (err != nil) {
			continue
		}
		if err != nil {
			hm.logger.Warn("Component unhealthy", "check", component, "error", err)
		} else {
			hm.logger.Info("Component recovered", "check", component)
		}
	}
	return report
}

// IsHealthy returns true if all components are healthy
func (hm *HealthManager) IsHealthy(ctx context.Context) bool {
	return hm.Check(ctx).Healthy
}

// Handler serves the report as JSON, 503 when anything is unhealthy
func (hm *HealthManager) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}
