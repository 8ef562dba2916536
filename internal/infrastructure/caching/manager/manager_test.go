package manager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/stores"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

func TestEvictIdleClosesSessions(t *testing.T) {
	m := NewManager(0, logging.NewDiscardLogger())
	idle := filters.NewSession("idle", filters.DashboardSales, nil, nil)
	require.NoError(t, m.AddSession(idle))

	assert.Empty(t, m.EvictIdle(time.Hour))
	assert.Equal(t, 1, m.SessionCount())

	evicted := m.EvictIdle(-time.Minute)
	assert.Equal(t, []string{"idle"}, evicted)
	assert.True(t, idle.Closed())

	_, err := m.GetSession("idle")
	assert.ErrorIs(t, err, stores.ErrSessionNotFound)
}

func TestRemoveAndCloseAll(t *testing.T) {
	m := NewManager(0, nil)
	a := filters.NewSession("a", filters.DashboardSales, nil, nil)
	b := filters.NewSession("b", filters.DashboardConsumption, nil, nil)
	require.NoError(t, m.AddSession(a))
	require.NoError(t, m.AddSession(b))

	assert.True(t, m.RemoveSession("a"))
	assert.False(t, m.RemoveSession("a"))
	assert.True(t, a.Closed())

	assert.Equal(t, 1, m.CloseAll())
	assert.True(t, b.Closed())
	assert.Equal(t, 0, m.SessionCount())
}
