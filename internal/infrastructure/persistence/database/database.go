// Package database opens the audit database, either a local sqlite file or a
// remote libsql (Turso) database.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"

	MemoryPath = ":memory:"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	Driver string
}

// Options selects and sizes the audit database.
type Options struct {
	TursoURL       string
	TursoAuthToken string
	SQLitePath     string
	MaxOpenConns   int
	MaxIdleConns   int
}

// NewConnectionWithLogger opens and pings a database for the given driver.
func NewConnectionWithLogger(driverName, dataSourceName string, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		return nil, fmt.Errorf("failed to ping %s database: %w", driverName, err)
	}

	duration := time.Since(start)
	logger.Database().Info("Database connection established", "driverName", driverName, "duration", duration)
	CheckAndLogSlowQuery(logger, "DATABASE_CONNECTION", duration, "")

	return &DB{DB: db, Driver: driverName}, nil
}

// Open connects to Turso when a URL is configured and to sqlite otherwise.
func Open(opts Options, logger *logging.ChanneledLogger) (*DB, error) {
	driver, dsn := DataSource(opts)

	if driver == DriverSQLite && opts.SQLitePath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(opts.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit database directory: %w", err)
		}
	}

	db, err := NewConnectionWithLogger(driver, dsn, logger)
	if err != nil {
		return nil, err
	}

	switch {
	case driver == DriverSQLite && opts.SQLitePath == MemoryPath:
		// every pooled connection to :memory: would see its own empty database
		db.SetMaxOpenConns(1)
	case opts.MaxOpenConns > 0:
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	return db, nil
}

// OpenMemory returns an in-memory sqlite database, mostly for tests.
func OpenMemory(logger *logging.ChanneledLogger) (*DB, error) {
	return Open(Options{SQLitePath: MemoryPath}, logger)
}
