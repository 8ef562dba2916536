package performance

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Tracker keeps a bounded history of completed markers and the alerts they
// raised.
type Tracker struct {
	mu         sync.RWMutex
	completed  []Measurement
	active     int
	alerts     []*PerformanceAlert
	thresholds *AlertThresholds
	started    time.Time
	config     *TrackerConfig
}

// TrackerConfig contains configuration options for the tracker.
type TrackerConfig struct {
	MaxMarkers   int  `json:"maxMarkers"`
	MaxAlerts    int  `json:"maxAlerts"`
	EnableAlerts bool `json:"enableAlerts"`

	// OnAlert, when set, receives every alert as it is raised.
	OnAlert func(*PerformanceAlert) `json:"-"`
}

// DefaultTrackerConfig returns a sensible default configuration.
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:   5000,
		MaxAlerts:    500,
		EnableAlerts: true,
	}
}

// AlertThresholds defines the durations that raise alerts.
type AlertThresholds struct {
	SlowOperation     time.Duration `json:"slowOperation"`
	CriticalOperation time.Duration `json:"criticalOperation"`

	// PerPrefix overrides SlowOperation for operations whose name starts
	// with the key, e.g. "backend:".
	PerPrefix map[string]time.Duration `json:"perPrefix"`
}

// DefaultAlertThresholds returns default thresholds derived from slow.
func DefaultAlertThresholds(slow time.Duration) *AlertThresholds {
	if slow <= 0 {
		slow = 2 * time.Second
	}
	return &AlertThresholds{
		SlowOperation:     slow,
		CriticalOperation: slow * 5 / 2,
		PerPrefix: map[string]time.Duration{
			"session:":  250 * time.Millisecond,
			"auth:":     200 * time.Millisecond,
			"database:": 100 * time.Millisecond,
		},
	}
}

// NewTracker creates a tracker. A nil config or thresholds uses the defaults.
func NewTracker(config *TrackerConfig, thresholds *AlertThresholds) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	if thresholds == nil {
		thresholds = DefaultAlertThresholds(0)
	}
	return &Tracker{
		thresholds: thresholds,
		started:    time.Now(),
		config:     config,
	}
}

// StartOperation begins a measurement. Markers start out successful.
func (t *Tracker) StartOperation(operation, sessionID string) *Marker {
	t.mu.Lock()
	t.active++
	t.mu.Unlock()

	return &Marker{
		Operation: operation,
		SessionID: sessionID,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true,
	}
}

// CompleteOperation finishes a marker, records it and checks thresholds.
// Completing a marker twice records it once.
func (t *Tracker) CompleteOperation(marker *Marker) {
	if marker == nil || !marker.Complete() {
		return
	}
	snap := marker.Snapshot()

	var alerts []*PerformanceAlert
	if t.config.EnableAlerts {
		alerts = t.evaluateThresholds(snap)
	}

	t.mu.Lock()
	t.active--
	t.completed = append(t.completed, snap)
	if limit := t.config.MaxMarkers; limit > 0 && len(t.completed) > limit {
		t.completed = append([]Measurement(nil), t.completed[len(t.completed)-limit:]...)
	}
	t.alerts = append(t.alerts, alerts...)
	if limit := t.config.MaxAlerts; limit > 0 && len(t.alerts) > limit {
		t.alerts = append([]*PerformanceAlert(nil), t.alerts[len(t.alerts)-limit:]...)
	}
	t.mu.Unlock()

	if t.config.OnAlert != nil {
		for _, alert := range alerts {
			t.config.OnAlert(alert)
		}
	}
}

func (t *Tracker) thresholdFor(operation string) time.Duration {
	for prefix, d := range t.thresholds.PerPrefix {
		if strings.HasPrefix(operation, prefix) {
			return d
		}
	}
	return t.thresholds.SlowOperation
}

func (t *Tracker) evaluateThresholds(m Measurement) []*PerformanceAlert {
	switch {
	case m.Duration > t.thresholds.CriticalOperation:
		return []*PerformanceAlert{t.createAlert(m, AlertCritical, t.thresholds.CriticalOperation,
			"Operation exceeded critical response time threshold")}
	case m.Duration > t.thresholdFor(m.Operation):
		return []*PerformanceAlert{t.createAlert(m, AlertWarning, t.thresholdFor(m.Operation),
			fmt.Sprintf("Operation %s exceeded slow threshold", m.Operation))}
	}
	return nil
}

func (t *Tracker) createAlert(m Measurement, severity AlertSeverity, threshold time.Duration, message string) *PerformanceAlert {
	return &PerformanceAlert{
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UTC(),
		SessionID: m.SessionID,
		Severity:  severity,
		Operation: m.Operation,
		Threshold: threshold,
		Actual:    m.Duration,
		Message:   message,
		Metadata: map[string]any{
			"success": m.Success,
			"error":   m.Error,
		},
	}
}

// GetAlerts returns the retained alerts, oldest first.
func (t *Tracker) GetAlerts() []*PerformanceAlert {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*PerformanceAlert(nil), t.alerts...)
}

// GetRecentMetrics returns markers completed within the given window.
func (t *Tracker) GetRecentMetrics(within time.Duration) []Measurement {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	var out []Measurement
	for _, m := range t.completed {
		if m.EndTime.After(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// GetOperationStats aggregates retained markers per operation name.
func (t *Tracker) GetOperationStats() []OperationStats {
	t.mu.RLock()
	byOp := make(map[string]*OperationStats)
	totals := make(map[string]time.Duration)
	for _, m := range t.completed {
		s, ok := byOp[m.Operation]
		if !ok {
			s = &OperationStats{Operation: m.Operation}
			byOp[m.Operation] = s
		}
		s.Count++
		if !m.Success {
			s.Failures++
		}
		if m.Duration > s.Max {
			s.Max = m.Duration
		}
		totals[m.Operation] += m.Duration
	}
	t.mu.RUnlock()

	stats := make([]OperationStats, 0, len(byOp))
	for op, s := range byOp {
		s.Average = totals[op] / time.Duration(s.Count)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Operation < stats[j].Operation })
	return stats
}

// Health grades the last five minutes of operations.
func (t *Tracker) Health() HealthStatus {
	recent := t.GetRecentMetrics(5 * time.Minute)
	if len(recent) == 0 {
		return HealthUnknown
	}

	critical, warning := 0, 0
	for _, m := range recent {
		switch {
		case !m.Success || m.Duration > t.thresholds.CriticalOperation:
			critical++
		case m.Duration > t.thresholdFor(m.Operation):
			warning++
		}
	}

	criticalRatio := float64(critical) / float64(len(recent))
	warningRatio := float64(warning) / float64(len(recent))
	switch {
	case criticalRatio > 0.1:
		return HealthUnhealthy
	case criticalRatio > 0.05 || warningRatio > 0.2:
		return HealthDegraded
	}
	return HealthHealthy
}

// GetOverallStats returns tracker-wide counters.
func (t *Tracker) GetOverallStats() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]any{
		"trackerUptime":       time.Since(t.started).String(),
		"activeOperations":    t.active,
		"completedOperations": len(t.completed),
		"totalAlerts":         len(t.alerts),
	}
}
