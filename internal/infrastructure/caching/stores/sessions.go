// Package stores provides concrete cache store implementations
package stores

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

var (
	ErrSessionNotFound = errors.New("filter session not found")
	ErrSessionLimit    = errors.New("filter session limit reached")
	ErrSessionExists   = errors.New("filter session already exists")
)

// SessionsStore keeps live filter sessions in process memory.
type SessionsStore struct {
	mu          sync.RWMutex
	sessions    map[string]*filters.Session
	maxSessions int
	logger      *logging.ChanneledLogger
}

// NewSessionsStore creates a store holding at most maxSessions sessions.
// Zero or less means unbounded.
func NewSessionsStore(maxSessions int, logger *logging.ChanneledLogger) *SessionsStore {
	if logger != nil {
		logger.Cache().Info("Initializing sessions cache store", "maxSessions", maxSessions)
	}
	return &SessionsStore{
		sessions:    make(map[string]*filters.Session),
		maxSessions: maxSessions,
		logger:      logger,
	}
}

// Add stores a session under its id.
func (ss *SessionsStore) Add(session *filters.Session) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if _, exists := ss.sessions[session.ID()]; exists {
		return ErrSessionExists
	}
	if ss.maxSessions > 0 && len(ss.sessions) >= ss.maxSessions {
		if ss.logger != nil {
			ss.logger.Cache().Warn("Session limit reached", "limit", ss.maxSessions)
		}
		return ErrSessionLimit
	}
	ss.sessions[session.ID()] = session

	if ss.logger != nil {
		ss.logger.Cache().Debug("Cached filter session",
			"sessionId", logging.MaskSessionID(session.ID()),
			"dashboard", session.Dashboard(),
			"total", len(ss.sessions))
	}
	return nil
}

// Get returns a live session.
func (ss *SessionsStore) Get(id string) (*filters.Session, error) {
	ss.mu.RLock()
	session, exists := ss.sessions[id]
	ss.mu.RUnlock()

	if !exists || session.Closed() {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Remove drops a session and returns it so the caller can close it.
func (ss *SessionsStore) Remove(id string) (*filters.Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session, exists := ss.sessions[id]
	if exists {
		delete(ss.sessions, id)
	}
	return session, exists
}

// Count returns the number of cached sessions.
func (ss *SessionsStore) Count() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// CountByDashboard groups the cached sessions by dashboard.
func (ss *SessionsStore) CountByDashboard() map[filters.Dashboard]int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	counts := make(map[filters.Dashboard]int)
	for _, session := range ss.sessions {
		counts[session.Dashboard()]++
	}
	return counts
}

// IDs returns the cached session ids in sorted order.
func (ss *SessionsStore) IDs() []string {
	ss.mu.RLock()
	ids := make([]string, 0, len(ss.sessions))
	for id := range ss.sessions {
		ids = append(ids, id)
	}
	ss.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// All returns the cached sessions in no particular order.
func (ss *SessionsStore) All() []*filters.Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	all := make([]*filters.Session, 0, len(ss.sessions))
	for _, session := range ss.sessions {
		all = append(all, session)
	}
	return all
}

// RemoveIdle drops every session idle since before cutoff, and every session
// already closed, returning the removed sessions.
func (ss *SessionsStore) RemoveIdle(cutoff time.Time) []*filters.Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	var removed []*filters.Session
	for id, session := range ss.sessions {
		if session.Closed() || session.LastActivity().Before(cutoff) {
			delete(ss.sessions, id)
			removed = append(removed, session)
		}
	}
	return removed
}

// RemoveAll empties the store.
func (ss *SessionsStore) RemoveAll() []*filters.Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := make([]*filters.Session, 0, len(ss.sessions))
	for _, session := range ss.sessions {
		removed = append(removed, session)
	}
	ss.sessions = make(map[string]*filters.Session)
	return removed
}
