package performance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteOperationRecordsOnce(t *testing.T) {
	tracker := NewTracker(nil, nil)

	marker := tracker.StartOperation("backend:fetch_options", "s1")
	marker.AddMetadata("chain", "product->rawMaterial")
	tracker.CompleteOperation(marker)
	tracker.CompleteOperation(marker)

	recent := tracker.GetRecentMetrics(time.Minute)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Success)
	assert.True(t, recent[0].Completed)
	assert.Equal(t, "product->rawMaterial", recent[0].Metadata["chain"])
	assert.Equal(t, 0, tracker.GetOverallStats()["activeOperations"])
}

func TestSlowOperationRaisesAlert(t *testing.T) {
	var raised []*PerformanceAlert
	config := DefaultTrackerConfig()
	config.OnAlert = func(a *PerformanceAlert) { raised = append(raised, a) }
	tracker := NewTracker(config, &AlertThresholds{
		SlowOperation:     10 * time.Millisecond,
		CriticalOperation: time.Hour,
		PerPrefix:         map[string]time.Duration{"session:": time.Hour},
	})

	slow := tracker.StartOperation("backend:fetch_metadata", "")
	slow.StartTime = slow.StartTime.Add(-50 * time.Millisecond)
	tracker.CompleteOperation(slow)

	exempt := tracker.StartOperation("session:set_filter", "s1")
	exempt.StartTime = exempt.StartTime.Add(-50 * time.Millisecond)
	tracker.CompleteOperation(exempt)

	require.Len(t, raised, 1)
	assert.Equal(t, AlertWarning, raised[0].Severity)
	assert.Equal(t, "backend:fetch_metadata", raised[0].Operation)
	assert.Len(t, tracker.GetAlerts(), 1)
}

func TestOperationStatsAndHealth(t *testing.T) {
	tracker := NewTracker(nil, nil)
	assert.Equal(t, HealthUnknown, tracker.Health())

	for i := 0; i < 3; i++ {
		m := tracker.StartOperation("dashboard:sales", "")
		tracker.CompleteOperation(m)
	}
	failed := tracker.StartOperation("dashboard:sales", "")
	failed.SetError(errors.New("backend 500"))
	tracker.CompleteOperation(failed)

	stats := tracker.GetOperationStats()
	require.Len(t, stats, 1)
	assert.Equal(t, 4, stats[0].Count)
	assert.Equal(t, 1, stats[0].Failures)
	assert.Equal(t, HealthUnhealthy, tracker.Health())
}

func TestMaxMarkersBound(t *testing.T) {
	tracker := NewTracker(&TrackerConfig{MaxMarkers: 2}, nil)
	for _, op := range []string{"a", "b", "c"} {
		tracker.CompleteOperation(tracker.StartOperation(op, ""))
	}
	recent := tracker.GetRecentMetrics(time.Minute)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Operation)
	assert.Equal(t, "c", recent[1].Operation)
}
