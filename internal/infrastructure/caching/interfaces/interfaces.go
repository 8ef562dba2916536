// Package interfaces defines the cache contracts shared by services and the
// cleanup worker.
package interfaces

import (
	"time"

	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
)

// SessionCache holds live filter sessions.
type SessionCache interface {
	AddSession(session *filters.Session) error
	GetSession(id string) (*filters.Session, error)
	RemoveSession(id string) bool
	SessionCount() int
	SessionCounts() map[filters.Dashboard]int
	Sessions() []*filters.Session
	EvictIdle(ttl time.Duration) []string
	CloseAll() int
}
