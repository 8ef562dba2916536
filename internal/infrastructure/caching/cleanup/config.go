package cleanup

import (
	"time"

	"github.com/woodland-analytics/woodland-dash/pkg/config"
)

// Config holds cleanup worker configuration, sourced from the central config package.
type Config struct {
	CleanupInterval  time.Duration
	VerboseReporting bool
	SessionTTL       time.Duration
}

// NewConfig reads the already-initialized values from pkg/config.
func NewConfig() *Config {
	return &Config{
		CleanupInterval:  config.SessionCleanupInterval,
		VerboseReporting: config.SessionCleanupVerbose,
		SessionTTL:       config.SessionTTL,
	}
}
