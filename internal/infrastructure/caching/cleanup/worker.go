// Package cleanup provides the background worker that evicts idle filter sessions.
package cleanup

import (
	"context"
	"os"
	"time"

	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/interfaces"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

// Worker handles background session cleanup.
type Worker struct {
	cache    interfaces.SessionCache
	config   *Config
	logger   *logging.ChanneledLogger
	reporter *Reporter

	// OnEvict receives the ids evicted by each pass.
	OnEvict func(ids []string)
}

// NewWorker creates a cleanup worker with injected configuration.
func NewWorker(cache interfaces.SessionCache, config *Config, logger *logging.ChanneledLogger) *Worker {
	return &Worker{
		cache:    cache,
		config:   config,
		logger:   logger,
		reporter: NewReporter(cache, os.Stdout),
	}
}

// Start runs until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	w.logger.Cache().Info("Session cleanup worker started",
		"interval", w.config.CleanupInterval,
		"ttl", w.config.SessionTTL,
		"verbose", w.config.VerboseReporting)

	for {
		select {
		case <-ctx.Done():
			w.logger.Cache().Info("Session cleanup worker stopping")
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single cleanup pass and returns the evicted ids.
func (w *Worker) RunOnce() []string {
	start := time.Now()
	if w.config.VerboseReporting {
		w.reporter.WriteReport()
	}

	evicted := w.cache.EvictIdle(w.config.SessionTTL)
	if len(evicted) > 0 {
		w.logger.Cache().Info("Session cleanup finished",
			"evicted", len(evicted),
			"remaining", w.cache.SessionCount(),
			"duration", time.Since(start))
		if w.OnEvict != nil {
			w.OnEvict(evicted)
		}
	} else if w.config.VerboseReporting {
		w.logger.Cache().Debug("Session cleanup completed, nothing expired", "duration", time.Since(start))
	}
	return evicted
}
