// Package events provides the SQL-backed audit trail of filter changes.
package events

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/woodland-analytics/woodland-dash/internal/domain/events"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/persistence/database"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/security"
)

// Fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02 15:04:05.000000000"

var _ events.Repository = (*SQLFilterEventRepository)(nil)

// SQLFilterEventRepository stores filter events in the audit database.
type SQLFilterEventRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

func NewSQLFilterEventRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLFilterEventRepository {
	return &SQLFilterEventRepository{db: db, logger: logger}
}

// Store inserts one event, assigning an id and timestamp when missing.
func (r *SQLFilterEventRepository) Store(event *events.FilterEvent) error {
	if event.ID == "" {
		event.ID = security.GenerateULID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO filter_events (id, session_id, dashboard, field, from_value, to_value, cause, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	_, err := r.db.Exec(query,
		event.ID,
		event.SessionID,
		event.Dashboard,
		event.Field,
		event.From,
		event.To,
		event.Cause,
		event.OccurredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		r.logger.Database().Error("Filter event insert failed",
			"error", err.Error(),
			"eventId", event.ID,
			"sessionId", logging.MaskSessionID(event.SessionID),
			"field", event.Field)
		return fmt.Errorf("failed to store filter event: %w", err)
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Filter event insert completed",
		"eventId", event.ID,
		"field", event.Field,
		"cause", event.Cause,
		"duration", duration)
	database.CheckAndLogSlowQuery(r.logger, query, duration, event.SessionID)
	return nil
}

// ListBySession returns up to limit events, newest first.
func (r *SQLFilterEventRepository) ListBySession(sessionID string, limit int) ([]*events.FilterEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT id, session_id, dashboard, field, from_value, to_value, cause, occurred_at
		FROM filter_events
		WHERE session_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?`

	start := time.Now()
	rows, err := r.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query filter events: %w", err)
	}
	defer rows.Close()

	result := make([]*events.FilterEvent, 0)
	for rows.Next() {
		event, err := scanFilterEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate filter events: %w", err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), sessionID)
	return result, nil
}

// CountByCause tallies a session's events per cause.
func (r *SQLFilterEventRepository) CountByCause(sessionID string) (map[string]int, error) {
	const query = `SELECT cause, COUNT(*) FROM filter_events WHERE session_id = ? GROUP BY cause`

	start := time.Now()
	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count filter events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var cause string
		var n int
		if err := rows.Scan(&cause, &n); err != nil {
			return nil, fmt.Errorf("failed to scan filter event count: %w", err)
		}
		counts[cause] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate filter event counts: %w", err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), sessionID)
	return counts, nil
}

func scanFilterEvent(rows *sql.Rows) (*events.FilterEvent, error) {
	var event events.FilterEvent
	var occurredAt string
	if err := rows.Scan(
		&event.ID,
		&event.SessionID,
		&event.Dashboard,
		&event.Field,
		&event.From,
		&event.To,
		&event.Cause,
		&occurredAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan filter event: %w", err)
	}

	t, err := time.ParseInLocation(timeLayout, occurredAt, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("failed to parse filter event time %q: %w", occurredAt, err)
	}
	event.OccurredAt = t
	return &event, nil
}
