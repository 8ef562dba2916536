// Package performance tracks operation timings for backend calls, dashboard
// fetches and session mutations, and raises alerts on slow operations.
package performance

import (
	"sync"
	"time"
)

// Marker is a single measurement of one operation, e.g. "backend:fetch_options".
type Marker struct {
	mu        sync.Mutex
	Operation string         `json:"operation"`
	SessionID string         `json:"sessionId,omitempty"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Duration  time.Duration  `json:"duration"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	Completed bool           `json:"completed"`
}

// Complete marks the operation as finished. Later calls are no-ops.
func (m *Marker) Complete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Completed {
		return false
	}
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Completed = true
	return true
}

// SetSuccess marks the operation as successful or failed.
func (m *Marker) SetSuccess(success bool) {
	m.mu.Lock()
	m.Success = success
	m.mu.Unlock()
}

// SetError records err and marks the operation as failed. A nil err is ignored.
func (m *Marker) SetError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.Error = err.Error()
	m.Success = false
	m.mu.Unlock()
}

// AddMetadata attaches a key-value pair to the marker.
func (m *Marker) AddMetadata(key string, value any) {
	m.mu.Lock()
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
	m.mu.Unlock()
}

// Measurement is an immutable copy of a marker.
type Measurement struct {
	Operation string         `json:"operation"`
	SessionID string         `json:"sessionId,omitempty"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Duration  time.Duration  `json:"duration"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	Completed bool           `json:"completed"`
}

// Snapshot returns a copy safe to read while the marker is still in use.
func (m *Marker) Snapshot() Measurement {
	m.mu.Lock()
	defer m.mu.Unlock()
	metadata := make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		metadata[k] = v
	}
	return Measurement{
		Operation: m.Operation,
		SessionID: m.SessionID,
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		Duration:  m.Duration,
		Success:   m.Success,
		Error:     m.Error,
		Metadata:  metadata,
		Completed: m.Completed,
	}
}

// HealthStatus represents the overall health derived from recent operations.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// PerformanceAlert represents a threshold violation.
type PerformanceAlert struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId,omitempty"`
	Severity  AlertSeverity  `json:"severity"`
	Operation string         `json:"operation"`
	Threshold time.Duration  `json:"threshold"`
	Actual    time.Duration  `json:"actual"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
}

// AlertSeverity represents the severity level of a performance alert.
type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// OperationStats aggregates completed markers of one operation.
type OperationStats struct {
	Operation string        `json:"operation"`
	Count     int           `json:"count"`
	Failures  int           `json:"failures"`
	Average   time.Duration `json:"average"`
	Max       time.Duration `json:"max"`
}
