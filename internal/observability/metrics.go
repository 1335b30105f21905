package observability

import (
	"sync"

	"github.com/spec-kit/live-support/internal/domain"
)

// Metrics provides basic in-memory counters for matching outcomes and
// notification delivery. Aggregation and reporting live elsewhere.
type Metrics struct {
	mu             sync.Mutex
	outcomes       map[domain.RequestStatus]int64
	attempts       int64
	droppedNotices int64
	errorCount     map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		outcomes:   make(map[domain.RequestStatus]int64),
		errorCount: make(map[string]int64),
	}
}

// RecordOutcome counts a request reaching the given status.
func (m *Metrics) RecordOutcome(status domain.RequestStatus) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[status]++
}

// RecordMatchingAttempt counts one matching attempt, successful or not.
func (m *Metrics) RecordMatchingAttempt() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
}

// RecordDroppedNotification counts a notification that could not be delivered.
func (m *Metrics) RecordDroppedNotification() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedNotices++
}

// RecordError increments error counters keyed by domain error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot returns a copy of the outcome counters.
func (m *Metrics) Snapshot() map[domain.RequestStatus]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.RequestStatus]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		out[k] = v
	}
	return out
}
