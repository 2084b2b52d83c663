package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	dispatchCount  map[string]int64
	reconcileCount map[string]int64
	lastReconcile  time.Time
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests      map[string]int64 `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	Dispatches    map[string]int64 `json:"dispatches"`
	Reconciles    map[string]int64 `json:"reconciles"`
	LastReconcile *time.Time       `json:"last_reconcile,omitempty"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		dispatchCount:  make(map[string]int64),
		reconcileCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordDispatch counts notification outcomes per obligation kind.
func (m *Metrics) RecordDispatch(obligation, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchCount[obligation+"|"+outcome]++
}

// RecordReconcile counts reconciliation passes by result.
func (m *Metrics) RecordReconcile(result string, at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileCount[result]++
	m.lastReconcile = at
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MetricsSnapshot{
		Requests:   copyCounts(m.requestCount),
		Errors:     copyCounts(m.errorCount),
		Dispatches: copyCounts(m.dispatchCount),
		Reconciles: copyCounts(m.reconcileCount),
	}
	if !m.lastReconcile.IsZero() {
		last := m.lastReconcile
		snap.LastReconcile = &last
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
