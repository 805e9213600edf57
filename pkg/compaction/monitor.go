package compaction

import (
	"sync"
	"time"
)

// maxConsecutiveErrors is how many failed runs in a row turn health red
const maxConsecutiveErrors = 3

// Monitor tracks cleanup health and failures.
type Monitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
}

// RecordSuccess records a successful cleanup.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.lastSuccess = now
	m.lastAttempt = now
	m.consecutiveErrors = 0
	m.lastError = ""
}

// RecordFailure records a failed cleanup.
func (m *Monitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = time.Now()
	m.consecutiveErrors++
	if err != nil {
		m.lastError = err.Error()
	}
}

// IsHealthy reports whether cleanup is keeping up. Unhealthy conditions:
//   - more than maxConsecutiveErrors failures in a row
//   - an earlier success older than maxAge
//
// A monitor that never ran is healthy.
func (m *Monitor) IsHealthy(maxAge time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy(maxAge)
}

func (m *Monitor) healthy(maxAge time.Duration) bool {
	if m.consecutiveErrors > maxConsecutiveErrors {
		return false
	}
	if !m.lastSuccess.IsZero() && maxAge > 0 && time.Since(m.lastSuccess) > maxAge {
		return false
	}
	return true
}

// Status is the cleanup section of the health response.
type Status struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current cleanup status for health checks.
func (m *Monitor) Status(maxAge time.Duration) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{Healthy: m.healthy(maxAge)}

	if !m.lastSuccess.IsZero() {
		status.LastSuccess = m.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(m.lastSuccess).Round(time.Second).String()
	}
	if !m.lastAttempt.IsZero() {
		status.LastAttempt = m.lastAttempt.Format(time.RFC3339)
	}
	if m.consecutiveErrors > 0 {
		status.ConsecutiveErrors = m.consecutiveErrors
		status.LastError = m.lastError
	}
	return status
}
