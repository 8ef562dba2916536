// Package manager provides the cache facade used by services and the cleanup worker.
package manager

import (
	"time"

	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/interfaces"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/stores"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

var _ interfaces.SessionCache = (*Manager)(nil)

// Manager delegates to the specialized stores.
type Manager struct {
	sessionsStore *stores.SessionsStore
	logger        *logging.ChanneledLogger
}

func NewManager(maxSessions int, logger *logging.ChanneledLogger) *Manager {
	if logger != nil {
		logger.Cache().Info("Initializing cache manager", "stores", []string{"sessions"})
	}
	return &Manager{
		sessionsStore: stores.NewSessionsStore(maxSessions, logger),
		logger:        logger,
	}
}

func (m *Manager) AddSession(session *filters.Session) error {
	return m.sessionsStore.Add(session)
}

func (m *Manager) GetSession(id string) (*filters.Session, error) {
	return m.sessionsStore.Get(id)
}

// RemoveSession drops and closes a session.
func (m *Manager) RemoveSession(id string) bool {
	session, ok := m.sessionsStore.Remove(id)
	if ok {
		session.Close()
	}
	return ok
}

func (m *Manager) SessionCount() int {
	return m.sessionsStore.Count()
}

func (m *Manager) SessionCounts() map[filters.Dashboard]int {
	return m.sessionsStore.CountByDashboard()
}

func (m *Manager) SessionIDs() []string {
	return m.sessionsStore.IDs()
}

// Sessions returns every cached session.
func (m *Manager) Sessions() []*filters.Session {
	return m.sessionsStore.All()
}

// EvictIdle closes and drops sessions idle longer than ttl, returning their ids.
func (m *Manager) EvictIdle(ttl time.Duration) []string {
	start := time.Now()
	removed := m.sessionsStore.RemoveIdle(start.Add(-ttl))

	ids := make([]string, 0, len(removed))
	for _, session := range removed {
		session.Close()
		ids = append(ids, session.ID())
	}

	if len(ids) > 0 && m.logger != nil {
		m.logger.Cache().Info("Evicted idle filter sessions",
			"count", len(ids),
			"ttl", ttl,
			"duration", time.Since(start))
	}
	return ids
}

// CloseAll closes and drops every session. Used on shutdown.
func (m *Manager) CloseAll() int {
	removed := m.sessionsStore.RemoveAll()
	for _, session := range removed {
		session.Close()
	}
	return len(removed)
}
