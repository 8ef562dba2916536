// Package services provides application-level orchestration services
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
)

const (
	metadataLoadKey  = "metadata:load"
	metadataRetryKey = "metadata:retry"
)

var (
	ErrMetadataLoadInProgress = errors.New("metadata load already in progress")
	ErrMetadataLoading        = errors.New("filter metadata is still loading")
)

// MetadataFetcher loads the unfiltered filter universe.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context) (*filters.Metadata, error)
}

// RetryConfig bounds the background metadata retry. MaxAttempts of zero
// disables it.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// MetadataStatus is the loader state reported by health and filter endpoints.
type MetadataStatus struct {
	Loaded    bool           `json:"loaded"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"lastError,omitempty"`
	LoadedAt  *time.Time     `json:"loadedAt,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
}

// MetadataService loads filter metadata once. After the first success the
// result never changes.
type MetadataService struct {
	fetcher     MetadataFetcher
	lock        *caching.WarmingLock
	retry       RetryConfig
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	mu          sync.RWMutex
	metadata    *filters.Metadata
	loadedAt    time.Time
	attempts    int
	lastErr     error
	subscribers []func(*filters.Metadata)
}

func NewMetadataService(fetcher MetadataFetcher, lock *caching.WarmingLock, retry RetryConfig, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *MetadataService {
	if lock == nil {
		lock = caching.NewWarmingLock()
	}
	return &MetadataService{
		fetcher:     fetcher,
		lock:        lock,
		retry:       retry,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// Metadata returns the loaded metadata, or nil while loading.
func (s *MetadataService) Metadata() *filters.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata
}

// Status reports whether metadata is available and how loading went.
func (s *MetadataService) Status() MetadataStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := MetadataStatus{Loaded: s.metadata != nil, Attempts: s.attempts}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.metadata != nil {
		loadedAt := s.loadedAt
		status.LoadedAt = &loadedAt
		status.Counts = s.metadata.Counts()
	}
	return status
}

// Subscribe registers fn for the first successful load. If metadata is
// already loaded fn runs immediately.
func (s *MetadataService) Subscribe(fn func(*filters.Metadata)) {
	s.mu.Lock()
	md := s.metadata
	if md == nil {
		s.subscribers = append(s.subscribers, fn)
	}
	s.mu.Unlock()

	if md != nil {
		fn(md)
	}
}

// Load makes a single attempt to fetch metadata. It is a no-op once loaded.
func (s *MetadataService) Load(ctx context.Context) error {
	if s.Metadata() != nil {
		return nil
	}
	if !s.lock.TryLock(metadataLoadKey) {
		return ErrMetadataLoadInProgress
	}
	defer s.lock.Unlock(metadataLoadKey)

	marker := s.perfTracker.StartOperation("metadata:load", "")
	defer s.perfTracker.CompleteOperation(marker)

	start := time.Now()
	md, err := s.fetcher.FetchMetadata(ctx)

	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		marker.SetError(err)
		s.logger.Metadata().Warn("Filter metadata load failed, filters stay disabled",
			"attempt", attempt,
			"error", err.Error(),
			"duration", time.Since(start))
		return fmt.Errorf("failed to load filter metadata: %w", err)
	}
	if s.metadata != nil {
		s.mu.Unlock()
		return nil
	}
	s.metadata = md
	s.loadedAt = time.Now().UTC()
	s.lastErr = nil
	subscribers := s.subscribers
	s.subscribers = nil
	s.mu.Unlock()

	s.logger.Metadata().Info("Filter metadata loaded",
		"attempt", attempt,
		"counts", md.Counts(),
		"duration", time.Since(start))

	for _, fn := range subscribers {
		fn(md)
	}
	return nil
}

// StartBackgroundRetry keeps retrying Load with exponential backoff until it
// succeeds, the attempts run out or ctx is done. Only one loop runs at a time.
func (s *MetadataService) StartBackgroundRetry(ctx context.Context) bool {
	if s.retry.MaxAttempts <= 0 || s.Metadata() != nil {
		return false
	}
	if !s.lock.TryLock(metadataRetryKey) {
		return false
	}

	go func() {
		defer s.lock.Unlock(metadataRetryKey)

		b := backoff.NewExponentialBackOff()
		if s.retry.InitialInterval > 0 {
			b.InitialInterval = s.retry.InitialInterval
		}
		if s.retry.MaxInterval > 0 {
			b.MaxInterval = s.retry.MaxInterval
		}
		b.MaxElapsedTime = 0
		policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.retry.MaxAttempts-1)), ctx)

		s.logger.Metadata().Info("Metadata background retry started",
			"maxAttempts", s.retry.MaxAttempts,
			"initialInterval", b.InitialInterval,
			"maxInterval", b.MaxInterval)

		select {
		case <-time.After(b.InitialInterval):
		case <-ctx.Done():
			return
		}
		err := backoff.RetryNotify(func() error {
			return s.Load(ctx)
		}, policy, func(err error, next time.Duration) {
			s.logger.Metadata().Debug("Metadata retry scheduled", "in", next, "reason", err.Error())
		})
		if err != nil {
			s.logger.Metadata().Error("Metadata background retry gave up", "error", err.Error())
			return
		}
		s.logger.Metadata().Info("Metadata background retry succeeded")
	}()
	return true
}
