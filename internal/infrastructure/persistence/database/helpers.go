package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/pkg/config"
)

// DataSource picks the driver and DSN for the audit database.
func DataSource(opts Options) (driver, dsn string) {
	if opts.TursoURL != "" {
		if opts.TursoAuthToken == "" {
			return DriverLibSQL, opts.TursoURL
		}
		return DriverLibSQL, fmt.Sprintf("%s?authToken=%s", opts.TursoURL, opts.TursoAuthToken)
	}
	path := opts.SQLitePath
	if path == "" {
		path = MemoryPath
	}
	if path == MemoryPath {
		return DriverSQLite, path
	}
	return DriverSQLite, "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
}

// OptionsFromConfig reads the audit database settings from pkg/config.
func OptionsFromConfig() Options {
	return Options{
		TursoURL:       config.TursoDatabase,
		TursoAuthToken: config.TursoAuthToken,
		SQLitePath:     config.AuditDBPath,
		MaxOpenConns:   config.DBMaxOpenConns,
		MaxIdleConns:   config.DBMaxIdleConns,
	}
}

// CheckAndLogSlowQuery logs query on the slow-query channel when duration
// exceeds the configured threshold. Schema statements get a 3x allowance.
func CheckAndLogSlowQuery(logger *logging.ChanneledLogger, query string, duration time.Duration, sessionID string) {
	threshold := config.SlowQueryThreshold
	if strings.HasPrefix(strings.TrimSpace(query), "CREATE") {
		threshold *= 3
	}
	if duration > threshold {
		logger.LogSlowQuery(query, duration, sessionID)
	}
}
