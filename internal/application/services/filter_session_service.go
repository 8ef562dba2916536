package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/woodland-analytics/woodland-dash/internal/domain/events"
	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/interfaces"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/messaging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/security"
)

const (
	auditQueueSize    = 1024
	defaultEventLimit = 100
)

// ErrAuditDisabled is returned when the audit trail is not configured.
var ErrAuditDisabled = errors.New("audit trail disabled")

// CreateSessionResult is returned to the browser when a session starts.
type CreateSessionResult struct {
	SessionID string           `json:"sessionId"`
	Token     string           `json:"token"`
	Snapshot  filters.Snapshot `json:"snapshot"`
}

// SessionEvents is a session's audit trail with per-cause totals.
type SessionEvents struct {
	Events []*events.FilterEvent `json:"events"`
	Counts map[string]int        `json:"counts"`
}

// FilterSessionService creates filter sessions and routes their events to
// the log, the audit trail and WebSocket clients.
type FilterSessionService struct {
	cache       interfaces.SessionCache
	metadata    *MetadataService
	fetcher     filters.OptionFetcher
	auth        *AuthService
	audit       events.Repository
	publisher   messaging.Publisher
	refreshFor  time.Duration
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	auditQueue   chan *events.FilterEvent
	auditDropped atomic.Int64
}

// FilterSessionDeps groups the collaborators. Audit and Publisher may be nil.
type FilterSessionDeps struct {
	Cache      interfaces.SessionCache
	Metadata   *MetadataService
	Fetcher    filters.OptionFetcher
	Auth       *AuthService
	Audit      events.Repository
	Publisher  messaging.Publisher
	RefreshFor time.Duration
}

func NewFilterSessionService(deps FilterSessionDeps, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *FilterSessionService {
	svc := &FilterSessionService{
		cache:       deps.Cache,
		metadata:    deps.Metadata,
		fetcher:     deps.Fetcher,
		auth:        deps.Auth,
		audit:       deps.Audit,
		publisher:   deps.Publisher,
		refreshFor:  deps.RefreshFor,
		logger:      logger,
		perfTracker: perfTracker,
	}
	if deps.Audit != nil {
		svc.auditQueue = make(chan *events.FilterEvent, auditQueueSize)
	}
	if deps.Metadata != nil {
		deps.Metadata.Subscribe(svc.applyMetadata)
	}
	return svc
}

// Create starts a session for the dashboard and issues its handle.
func (s *FilterSessionService) Create(dashboard filters.Dashboard) (*CreateSessionResult, error) {
	marker := s.perfTracker.StartOperation("session:create", "")
	defer s.perfTracker.CompleteOperation(marker)

	if _, err := filters.ParseDashboard(string(dashboard)); err != nil {
		marker.SetError(err)
		return nil, err
	}

	id := security.GenerateULID()
	opts := []filters.SessionOption{filters.WithEventSink(s.handleEvent)}
	if s.refreshFor > 0 {
		opts = append(opts, filters.WithRefreshDuration(s.refreshFor))
	}

	md := s.metadata.Metadata()
	session := filters.NewSession(id, dashboard, md, s.fetcher, opts...)
	if err := s.cache.AddSession(session); err != nil {
		session.Close()
		marker.SetError(err)
		return nil, fmt.Errorf("failed to register filter session: %w", err)
	}
	// Metadata may have landed between the read above and AddSession.
	if md == nil {
		if loaded := s.metadata.Metadata(); loaded != nil {
			session.MetadataLoaded(loaded)
		}
	}

	token, err := s.auth.IssueSessionToken(id, dashboard)
	if err != nil {
		s.cache.RemoveSession(id)
		marker.SetError(err)
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logger.Session().Info("Filter session created",
		"sessionId", logging.MaskSessionID(id),
		"dashboard", dashboard,
		"metadataLoaded", md != nil,
		"liveSessions", s.cache.SessionCount())

	return &CreateSessionResult{SessionID: id, Token: token, Snapshot: session.Snapshot()}, nil
}

// applyMetadata hands freshly loaded metadata to every live session.
func (s *FilterSessionService) applyMetadata(md *filters.Metadata) {
	sessions := s.cache.Sessions()
	for _, session := range sessions {
		session.MetadataLoaded(md)
	}
	s.logger.Metadata().Info("Metadata applied to live sessions", "sessions", len(sessions))
}

// Get returns a live session and marks it as used.
func (s *FilterSessionService) Get(id string) (*filters.Session, error) {
	session, err := s.cache.GetSession(id)
	if err != nil {
		return nil, err
	}
	session.Touch()
	return session, nil
}

// Snapshot returns the current view of a session.
func (s *FilterSessionService) Snapshot(id string) (filters.Snapshot, error) {
	session, err := s.Get(id)
	if err != nil {
		return filters.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// SetFilter applies one user selection. With wait set, the returned snapshot
// reflects every resolution the change started.
func (s *FilterSessionService) SetFilter(ctx context.Context, id, fieldName, value string, wait bool) (filters.Snapshot, error) {
	session, err := s.cache.GetSession(id)
	if err != nil {
		return filters.Snapshot{}, err
	}

	marker := s.perfTracker.StartOperation("session:set_filter", id)
	defer s.perfTracker.CompleteOperation(marker)
	marker.AddMetadata("field", fieldName)

	field, err := filters.ParseField(fieldName)
	if err != nil {
		marker.SetError(err)
		return filters.Snapshot{}, err
	}
	if err := session.SetFilter(field, value); err != nil {
		marker.SetError(err)
		return filters.Snapshot{}, err
	}
	return s.settled(ctx, session, wait)
}

// Reset restores the default filters.
func (s *FilterSessionService) Reset(ctx context.Context, id string, wait bool) (filters.Snapshot, error) {
	session, err := s.cache.GetSession(id)
	if err != nil {
		return filters.Snapshot{}, err
	}
	if err := session.Reset(); err != nil {
		return filters.Snapshot{}, err
	}
	return s.settled(ctx, session, wait)
}

// Refresh stamps a new lastRefresh on the session.
func (s *FilterSessionService) Refresh(id string) (filters.Snapshot, error) {
	session, err := s.cache.GetSession(id)
	if err != nil {
		return filters.Snapshot{}, err
	}
	if _, err := session.TriggerRefresh(); err != nil {
		return filters.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *FilterSessionService) settled(ctx context.Context, session *filters.Session, wait bool) (filters.Snapshot, error) {
	if wait {
		if err := session.Settle(ctx); err != nil {
			return filters.Snapshot{}, fmt.Errorf("failed to settle filter session: %w", err)
		}
	}
	return session.Snapshot(), nil
}

// Events returns the audit trail of a session.
func (s *FilterSessionService) Events(id string, limit int) (*SessionEvents, error) {
	if s.audit == nil {
		return nil, ErrAuditDisabled
	}
	if _, err := s.cache.GetSession(id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}

	list, err := s.audit.ListBySession(id, limit)
	if err != nil {
		return nil, err
	}
	counts, err := s.audit.CountByCause(id)
	if err != nil {
		return nil, err
	}
	return &SessionEvents{Events: list, Counts: counts}, nil
}

// Remove closes a session and disconnects its clients.
func (s *FilterSessionService) Remove(id string) bool {
	removed := s.cache.RemoveSession(id)
	if removed && s.publisher != nil {
		s.publisher.CloseSession(id)
	}
	return removed
}

// Evicted tells WebSocket clients of expired sessions to go away.
func (s *FilterSessionService) Evicted(ids []string) {
	for _, id := range ids {
		s.logger.Session().Info("Filter session expired", "sessionId", logging.MaskSessionID(id))
		if s.publisher != nil {
			s.publisher.CloseSession(id)
		}
	}
}

// Count returns the number of live sessions.
func (s *FilterSessionService) Count() int {
	return s.cache.SessionCount()
}

// CountByDashboard groups live sessions by dashboard.
func (s *FilterSessionService) CountByDashboard() map[filters.Dashboard]int {
	return s.cache.SessionCounts()
}

// AuditDropped counts audit rows skipped because the writer fell behind.
func (s *FilterSessionService) AuditDropped() int64 {
	return s.auditDropped.Load()
}

// RunAuditWriter persists queued filter events until ctx is done, then
// drains what is left.
func (s *FilterSessionService) RunAuditWriter(ctx context.Context) {
	if s.auditQueue == nil {
		return
	}
	for {
		select {
		case event := <-s.auditQueue:
			s.storeAudit(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-s.auditQueue:
					s.storeAudit(event)
				default:
					return
				}
			}
		}
	}
}

func (s *FilterSessionService) storeAudit(event *events.FilterEvent) {
	if err := s.audit.Store(event); err != nil {
		s.logger.LogError(logging.ChannelDatabase, "StoreFilterEvent", err, event.SessionID, map[string]any{
			"field": event.Field,
			"cause": event.Cause,
		})
	}
}

func (s *FilterSessionService) handleEvent(e filters.Event) {
	filterLog := s.logger.WithSession(logging.ChannelFilters, e.SessionID)

	switch e.Kind {
	case filters.EventFilterChanged:
		filterLog.Info("Filter changed",
			"field", e.Field,
			"from", e.From,
			"to", e.To,
			"cause", e.Cause)
		s.enqueueAudit(e)

	case filters.EventOptionsResolved:
		filterLog.Debug("Dependent options resolved",
			"chain", e.Chain.String(),
			"governing", e.Governing,
			"generation", e.Generation,
			"options", len(e.Options.Concrete()))

	case filters.EventResolutionFailed:
		filterLog.Warn("Scoped option fetch failed, using unfiltered list",
			"chain", e.Chain.String(),
			"governing", e.Governing,
			"error", errString(e.Err))

	case filters.EventStaleDiscarded:
		filterLog.Debug("Discarded stale option result",
			"chain", e.Chain.String(),
			"governing", e.Governing,
			"generation", e.Generation)
		return

	case filters.EventMetadataApplied:
		s.logger.WithSession(logging.ChannelSession, e.SessionID).Debug("Metadata applied to session")

	case filters.EventRefreshStarted, filters.EventRefreshSettled:
		s.logger.WithSession(logging.ChannelSession, e.SessionID).Debug("Refresh indicator changed", "event", e.Kind)
	}

	s.publishSnapshot(e.SessionID)
}

func (s *FilterSessionService) enqueueAudit(e filters.Event) {
	if s.auditQueue == nil {
		return
	}
	event := &events.FilterEvent{
		ID:         security.GenerateULID(),
		SessionID:  e.SessionID,
		Dashboard:  string(e.Dashboard),
		Field:      string(e.Field),
		From:       e.From,
		To:         e.To,
		Cause:      string(e.Cause),
		OccurredAt: e.At,
	}
	select {
	case s.auditQueue <- event:
	default:
		if s.auditDropped.Add(1)%100 == 1 {
			s.logger.Database().Warn("Audit queue full, dropping filter events", "dropped", s.auditDropped.Load())
		}
	}
}

func (s *FilterSessionService) publishSnapshot(sessionID string) {
	if s.publisher == nil || s.publisher.ClientCount(sessionID) == 0 {
		return
	}
	// Events raised while the session is being created arrive before it is cached.
	session, err := s.cache.GetSession(sessionID)
	if err != nil {
		return
	}
	s.publisher.Publish(sessionID, messaging.Message{
		Type:      messaging.MessageSnapshot,
		SessionID: sessionID,
		Payload:   session.Snapshot(),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
