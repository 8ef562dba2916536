package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/manager"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/stores"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/messaging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
)

type sessionFixture struct {
	svc       *FilterSessionService
	backend   *fakeBackend
	metadata  *MetadataService
	audit     *memoryRepository
	publisher *recordingPublisher
}

func newSessionFixture(t *testing.T, loadMetadata bool, maxSessions int) *sessionFixture {
	t.Helper()
	logger := logging.NewDiscardLogger()
	perf := performance.NewTracker(nil, nil)
	backend := newFakeBackend()
	metadata := newMetadataService(backend, RetryConfig{})
	if loadMetadata {
		require.NoError(t, metadata.Load(context.Background()))
	}

	f := &sessionFixture{
		backend:   backend,
		metadata:  metadata,
		audit:     &memoryRepository{},
		publisher: &recordingPublisher{},
	}
	f.svc = NewFilterSessionService(FilterSessionDeps{
		Cache:      manager.NewManager(maxSessions, logger),
		Metadata:   metadata,
		Fetcher:    backend,
		Auth:       newAuthService(t, ""),
		Audit:      f.audit,
		Publisher:  f.publisher,
		RefreshFor: 500 * time.Millisecond,
	}, logger, perf)

	ctx, cancel := context.WithCancel(context.Background())
	go f.svc.RunAuditWriter(ctx)
	t.Cleanup(cancel)
	return f
}

func TestCreateSessionWithMetadata(t *testing.T) {
	f := newSessionFixture(t, true, 0)

	created, err := f.svc.Create(filters.DashboardConsumption)
	require.NoError(t, err)
	assert.NotEmpty(t, created.Token)
	assert.False(t, created.Snapshot.Disabled)
	assert.Equal(t, filters.OptionList{"all", "suede", "leather"}, created.Snapshot.Options[filters.FieldRawMaterial])
	assert.Equal(t, 1, f.svc.Count())

	_, err = f.svc.Create(filters.Dashboard("inventory"))
	assert.Error(t, err)
}

func TestSetFilterWaitResolvesAndAudits(t *testing.T) {
	f := newSessionFixture(t, true, 0)
	created, err := f.svc.Create(filters.DashboardSales)
	require.NoError(t, err)

	snap, err := f.svc.SetFilter(context.Background(), created.SessionID, "category", "shoes", true)
	require.NoError(t, err)
	assert.Equal(t, "shoes", snap.Filters.Category)
	assert.Equal(t, filters.OptionList{"all", "sku-1", "sku-2"}, snap.Options[filters.FieldSKU])
	assert.False(t, snap.Pending[filters.FieldSKU])

	require.Eventually(t, func() bool { return f.audit.Len() == 1 }, time.Second, time.Millisecond)
	trail, err := f.svc.Events(created.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, trail.Events, 1)
	assert.Equal(t, "category", trail.Events[0].Field)
	assert.Equal(t, "user", trail.Events[0].Cause)
	assert.Equal(t, map[string]int{"user": 1}, trail.Counts)
	assert.Positive(t, f.publisher.Count())
}

func TestSetFilterInvalidationIsAudited(t *testing.T) {
	f := newSessionFixture(t, true, 0)
	created, err := f.svc.Create(filters.DashboardSales)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.svc.SetFilter(ctx, created.SessionID, "category", "shoes", true)
	require.NoError(t, err)
	_, err = f.svc.SetFilter(ctx, created.SessionID, "sku", "sku-2", true)
	require.NoError(t, err)
	snap, err := f.svc.SetFilter(ctx, created.SessionID, "category", "bags", true)
	require.NoError(t, err)

	assert.Equal(t, filters.Wildcard, snap.Filters.SKU)
	require.Eventually(t, func() bool { return f.audit.Len() == 4 }, time.Second, time.Millisecond)
	counts, err := f.audit.CountByCause(created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["invalidation"])
}

func TestSetFilterErrors(t *testing.T) {
	f := newSessionFixture(t, true, 0)
	created, err := f.svc.Create(filters.DashboardSales)
	require.NoError(t, err)

	_, err = f.svc.SetFilter(context.Background(), created.SessionID, "colour", "red", false)
	assert.ErrorIs(t, err, filters.ErrUnknownField)
	_, err = f.svc.SetFilter(context.Background(), created.SessionID, "view", "hourly", false)
	assert.ErrorIs(t, err, filters.ErrInvalidValue)
	_, err = f.svc.SetFilter(context.Background(), "missing", "sku", "sku-1", false)
	assert.ErrorIs(t, err, stores.ErrSessionNotFound)
}

func TestSessionCreatedBeforeMetadata(t *testing.T) {
	f := newSessionFixture(t, false, 0)
	created, err := f.svc.Create(filters.DashboardConsumption)
	require.NoError(t, err)
	assert.True(t, created.Snapshot.Disabled)

	require.NoError(t, f.metadata.Load(context.Background()))
	snap, err := f.svc.Snapshot(created.SessionID)
	require.NoError(t, err)
	assert.False(t, snap.Disabled)
	assert.Equal(t, filters.OptionList{"all", "prod-1", "prod-2"}, snap.Options[filters.FieldProduct])
}

func TestRemovedSessionsAreNotRetainedByMetadata(t *testing.T) {
	f := newSessionFixture(t, false, 0)
	for i := 0; i < 50; i++ {
		created, err := f.svc.Create(filters.DashboardConsumption)
		require.NoError(t, err)
		require.True(t, f.svc.Remove(created.SessionID))
	}
	kept, err := f.svc.Create(filters.DashboardSales)
	require.NoError(t, err)

	f.metadata.mu.RLock()
	subscribers := len(f.metadata.subscribers)
	f.metadata.mu.RUnlock()
	assert.Equal(t, 1, f.svc.Count())
	assert.Equal(t, 1, subscribers)

	require.NoError(t, f.metadata.Load(context.Background()))
	snap, err := f.svc.Snapshot(kept.SessionID)
	require.NoError(t, err)
	assert.False(t, snap.Disabled)
	assert.Equal(t, filters.OptionList{"all", "shoes", "bags"}, snap.Options[filters.FieldCategory])
}

func TestSessionLimit(t *testing.T) {
	f := newSessionFixture(t, true, 1)
	_, err := f.svc.Create(filters.DashboardSales)
	require.NoError(t, err)
	_, err = f.svc.Create(filters.DashboardSales)
	assert.ErrorIs(t, err, stores.ErrSessionLimit)
}

func TestResetRefreshAndRemove(t *testing.T) {
	f := newSessionFixture(t, true, 0)
	created, err := f.svc.Create(filters.DashboardConsumption)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.svc.SetFilter(ctx, created.SessionID, "product", "prod-1", true)
	require.NoError(t, err)
	snap, err := f.svc.Reset(ctx, created.SessionID, true)
	require.NoError(t, err)
	assert.Equal(t, filters.DefaultState(), snap.Filters)

	snap, err = f.svc.Refresh(created.SessionID)
	require.NoError(t, err)
	assert.True(t, snap.IsRefreshing)
	assert.False(t, snap.LastRefresh.IsZero())

	assert.True(t, f.svc.Remove(created.SessionID))
	assert.Equal(t, []string{created.SessionID}, f.publisher.Closed())
	_, err = f.svc.Snapshot(created.SessionID)
	assert.ErrorIs(t, err, stores.ErrSessionNotFound)
}

func TestEvictedClosesClients(t *testing.T) {
	f := newSessionFixture(t, true, 0)
	f.svc.Evicted([]string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, f.publisher.Closed())
}

func TestSnapshotIsPublished(t *testing.T) {
	f := newSessionFixture(t, true, 0)
	created, err := f.svc.Create(filters.DashboardSales)
	require.NoError(t, err)
	before := f.publisher.Count()

	_, err = f.svc.SetFilter(context.Background(), created.SessionID, "channel", "online", false)
	require.NoError(t, err)
	require.Greater(t, f.publisher.Count(), before)

	f.publisher.mu.Lock()
	last := f.publisher.messages[len(f.publisher.messages)-1]
	f.publisher.mu.Unlock()
	assert.Equal(t, messaging.MessageSnapshot, last.Type)
	snap, ok := last.Payload.(filters.Snapshot)
	require.True(t, ok)
	assert.Equal(t, "online", snap.Filters.Channel)
}
