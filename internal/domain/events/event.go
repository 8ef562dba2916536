// Package events defines the audit trail of filter changes.
package events

import "time"

// FilterEvent records one filter value transition inside a session.
type FilterEvent struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Dashboard  string    `json:"dashboard"`
	Field      string    `json:"field"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Cause      string    `json:"cause"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Repository defines the contract for storing and reading filter events.
type Repository interface {
	// Store appends one event.
	Store(event *FilterEvent) error

	// ListBySession returns the most recent events of a session, newest first.
	ListBySession(sessionID string, limit int) ([]*FilterEvent, error)

	// CountByCause tallies a session's events per cause (user, invalidation, reset).
	CountByCause(sessionID string) (map[string]int, error)
}
