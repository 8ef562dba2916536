// Package database provides audit schema creation.
package database

import (
	"database/sql"
	"fmt"
)

// TableCreator builds the audit database schema.
type TableCreator struct{}

func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema creates every table and index. It is idempotent.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

// TableExists reports whether the named table is present.
func (tc *TableCreator) TableExists(db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return count > 0, nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS filter_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		dashboard TEXT NOT NULL,
		field TEXT NOT NULL,
		from_value TEXT NOT NULL,
		to_value TEXT NOT NULL,
		cause TEXT NOT NULL CHECK (cause IN ('user', 'invalidation', 'reset')),
		occurred_at TEXT NOT NULL
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_filter_events_session ON filter_events(session_id, occurred_at)`,
	`CREATE INDEX IF NOT EXISTS idx_filter_events_cause ON filter_events(session_id, cause)`,
}
