package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Monitor collects per-dependency statuses for the engine.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records the status for a named dependency.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// UpdateHealthy records a dependency as healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateDegraded records a dependency as degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// UpdateUnhealthy records a dependency as unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// Get retrieves the status for a named dependency.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[name]
	return status, ok
}

// All returns all current statuses, ordered by component name.
func (m *Monitor) All() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		all = append(all, status)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Component < all[j].Component })
	return all
}

// Remove drops a dependency from monitoring.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
}

// Aggregate rolls all tracked dependencies up under the system name.
func (m *Monitor) Aggregate(systemName string) Status {
	return Aggregate(systemName, m.All())
}

// Handler serves the aggregate as JSON. Unhealthy aggregates answer
// 503 so orchestration probes restart or drain the backend.
func (m *Monitor) Handler(systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		agg := m.Aggregate(systemName)

		w.Header().Set("Content-Type", "application/json")
		if agg.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(agg)
	})
}
