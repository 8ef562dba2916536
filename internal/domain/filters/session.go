package filters

import (
	"context"
	"sync"
	"time"
)

// OptionFetcher resolves the valid dependent values for one concrete
// governing value, e.g. the raw materials used by a product.
type OptionFetcher interface {
	FetchOptions(ctx context.Context, chain Chain, governing string) ([]string, error)
}

// Cause explains why a filter value changed.
type Cause string

const (
	CauseUser         Cause = "user"
	CauseInvalidation Cause = "invalidation"
	CauseReset        Cause = "reset"
)

// EventKind classifies session events.
type EventKind string

const (
	EventFilterChanged    EventKind = "filter_changed"
	EventOptionsResolved  EventKind = "options_resolved"
	EventResolutionFailed EventKind = "resolution_failed"
	EventStaleDiscarded   EventKind = "stale_discarded"
	EventMetadataApplied  EventKind = "metadata_applied"
	EventRefreshStarted   EventKind = "refresh_started"
	EventRefreshSettled   EventKind = "refresh_settled"
)

// Event describes one transition inside a session.
type Event struct {
	Kind       EventKind
	SessionID  string
	Dashboard  Dashboard
	Field      Field
	From       string
	To         string
	Cause      Cause
	Chain      Chain
	Governing  string
	Generation uint64
	Options    OptionList
	Err        error
	At         time.Time
}

// EventSink receives session events in the order they happened. It is never
// called with the session lock held, so it may read the session, but it must
// not mutate it.
type EventSink func(Event)

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	SessionID    string               `json:"sessionId"`
	Dashboard    Dashboard            `json:"dashboard"`
	Filters      State                `json:"filters"`
	Options      map[Field]OptionList `json:"options"`
	Pending      map[Field]bool       `json:"pending"`
	Disabled     bool                 `json:"disabled"`
	LastRefresh  time.Time            `json:"lastRefresh"`
	IsRefreshing bool                 `json:"isRefreshing"`
	LastActivity time.Time            `json:"lastActivity"`
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithEventSink installs the event receiver.
func WithEventSink(sink EventSink) SessionOption {
	return func(s *Session) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithRefreshDuration overrides how long isRefreshing stays raised.
func WithRefreshDuration(d time.Duration) SessionOption {
	return func(s *Session) { s.refreshFor = d }
}

// Session is the filter state of one dashboard view. Filter changes, option
// resolution and invalidation all run under one lock. Scoped fetches run in
// their own goroutines and their results are committed under that lock, only
// if they still belong to the latest request for their field.
type Session struct {
	id         string
	dashboard  Dashboard
	chains     []Chain
	fetcher    OptionFetcher
	sink       EventSink
	refreshFor time.Duration

	mu           sync.Mutex
	store        *Store
	resolver     *Resolver
	policies     map[Field]*Policy
	metadata     *Metadata
	lastActivity time.Time
	outbox       []Event
	inflight     int
	idle         chan struct{}
	closed       bool

	deliverMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a session with default filters. Every policy records
// its initial governing value. When metadata is already loaded the chains
// are resolved right away, otherwise they wait for MetadataLoaded.
func NewSession(id string, dashboard Dashboard, md *Metadata, fetcher OptionFetcher, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:           id,
		dashboard:    dashboard,
		chains:       dashboard.Chains(),
		fetcher:      fetcher,
		sink:         func(Event) {},
		refreshFor:   DefaultRefreshDuration,
		policies:     make(map[Field]*Policy),
		lastActivity: time.Now().UTC(),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store = NewStore(s.refreshFor)
	s.resolver = NewResolver(s.chains)

	s.mu.Lock()
	for _, c := range s.chains {
		p := NewPolicy(c)
		p.Mount(s.store.Get(c.Governing))
		s.policies[c.Dependent] = p
	}
	if md != nil {
		s.applyMetadataLocked(md)
	}
	s.mu.Unlock()
	s.flush()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Dashboard returns the dashboard kind.
func (s *Session) Dashboard() Dashboard { return s.dashboard }

// LastActivity returns when the session was last used.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Touch marks the session as used.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now().UTC()
	s.mu.Unlock()
}

// SetFilter replaces one filter value. A real change of a governing field
// starts resolution of its dependent list; nothing else does.
func (s *Session) SetFilter(f Field, value string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastActivity = time.Now().UTC()
	err := s.applyLocked(f, value, CauseUser)
	s.mu.Unlock()
	s.flush()
	return err
}

// Reset restores the default filters. Chains whose governing value changed
// are resolved again.
func (s *Session) Reset() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastActivity = time.Now().UTC()
	previous := s.store.Reset()
	current := s.store.State()
	for _, f := range AllFields {
		if from, to := previous.Get(f), current.Get(f); from != to {
			s.emitLocked(Event{Kind: EventFilterChanged, Field: f, From: from, To: to, Cause: CauseReset})
		}
	}
	for _, c := range s.chains {
		if previous.Get(c.Governing) != current.Get(c.Governing) {
			s.resolveLocked(c)
		}
	}
	s.mu.Unlock()
	s.flush()
	return nil
}

// TriggerRefresh stamps a new lastRefresh so dashboard fetchers run again.
func (s *Session) TriggerRefresh() (time.Time, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return time.Time{}, ErrSessionClosed
	}
	s.lastActivity = time.Now().UTC()
	s.mu.Unlock()

	at := s.store.TriggerRefresh(func() {
		s.mu.Lock()
		if !s.closed {
			s.emitLocked(Event{Kind: EventRefreshSettled})
		}
		s.mu.Unlock()
		s.flush()
	})

	s.mu.Lock()
	s.emitLocked(Event{Kind: EventRefreshStarted})
	s.mu.Unlock()
	s.flush()
	return at, nil
}

// MetadataLoaded supplies metadata that was not available at creation and
// resolves every chain. Later calls are ignored; metadata is immutable.
func (s *Session) MetadataLoaded(md *Metadata) {
	if md == nil {
		return
	}
	s.mu.Lock()
	if s.closed || s.metadata != nil {
		s.mu.Unlock()
		return
	}
	s.applyMetadataLocked(md)
	s.mu.Unlock()
	s.flush()
}

// State returns the current filters.
func (s *Session) State() State {
	return s.store.State()
}

// Options returns the selectable values for a dimension field. Dependent
// fields report their resolved list; other dimensions report the full
// metadata list, or ["all"] while metadata is missing.
func (s *Session) Options(f Field) OptionList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optionsLocked(f)
}

// Snapshot returns a consistent view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.store.Snapshot()
	snap := Snapshot{
		SessionID:    s.id,
		Dashboard:    s.dashboard,
		Filters:      stored.Filters,
		Options:      make(map[Field]OptionList, len(DimensionFields)),
		Pending:      make(map[Field]bool, len(s.chains)),
		Disabled:     s.metadata == nil,
		LastRefresh:  stored.LastRefresh,
		IsRefreshing: stored.IsRefreshing,
		LastActivity: s.lastActivity,
	}
	for _, f := range DimensionFields {
		snap.Options[f] = s.optionsLocked(f)
	}
	for _, c := range s.chains {
		snap.Pending[c.Dependent] = s.resolver.Pending(c.Dependent)
	}
	return snap
}

// Settle blocks until no scoped request is outstanding or ctx is done.
func (s *Session) Settle(ctx context.Context) error {
	s.mu.Lock()
	if s.inflight == 0 {
		s.mu.Unlock()
		return nil
	}
	if s.idle == nil {
		s.idle = make(chan struct{})
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels outstanding requests. Results arriving afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) applyMetadataLocked(md *Metadata) {
	s.metadata = md
	s.emitLocked(Event{Kind: EventMetadataApplied})
	for _, c := range s.chains {
		s.resolveLocked(c)
	}
}

func (s *Session) applyLocked(f Field, value string, cause Cause) error {
	from, err := s.store.Set(f, value)
	if err != nil {
		return err
	}
	to := s.store.Get(f)
	if from == to {
		return nil
	}
	s.emitLocked(Event{Kind: EventFilterChanged, Field: f, From: from, To: to, Cause: cause})
	for _, c := range s.chains {
		if c.Governing == f {
			s.resolveLocked(c)
		}
	}
	return nil
}

func (s *Session) resolveLocked(c Chain) {
	if s.metadata == nil {
		return
	}
	governing := s.store.Get(c.Governing)
	if governing == Wildcard {
		list := s.resolver.ResolveWildcard(c, s.metadata)
		s.emitLocked(Event{
			Kind:       EventOptionsResolved,
			Field:      c.Dependent,
			Chain:      c,
			Governing:  governing,
			Generation: s.resolver.Generation(c.Dependent),
			Options:    list,
		})
		s.evaluateLocked(c)
		return
	}

	ticket := s.resolver.Issue(c, governing)
	s.inflight++
	go s.fetch(ticket)
}

func (s *Session) fetch(t Ticket) {
	values, err := s.fetcher.FetchOptions(s.ctx, t.Chain, t.Governing)

	s.mu.Lock()
	defer func() {
		s.finishLocked()
		s.mu.Unlock()
		s.flush()
	}()

	if s.closed {
		return
	}
	base := Event{
		Field:      t.Chain.Dependent,
		Chain:      t.Chain,
		Governing:  t.Governing,
		Generation: t.Generation,
		Err:        err,
	}
	if !s.resolver.Current(t) {
		base.Kind = EventStaleDiscarded
		s.emitLocked(base)
		return
	}

	list := NewOptionList(values)
	if err != nil {
		list = Fallback(t.Chain, s.metadata)
		failed := base
		failed.Kind = EventResolutionFailed
		failed.Options = list
		s.emitLocked(failed)
	}
	s.resolver.Commit(t, list)

	resolved := base
	resolved.Kind = EventOptionsResolved
	resolved.Options = list
	s.emitLocked(resolved)
	s.evaluateLocked(t.Chain)
}

func (s *Session) finishLocked() {
	s.inflight--
	if s.inflight == 0 && s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
}

func (s *Session) evaluateLocked(c Chain) {
	p, ok := s.policies[c.Dependent]
	if !ok {
		return
	}
	d := p.Evaluate(s.store.Get(c.Governing), s.store.Get(c.Dependent), s.resolver.Options(c.Dependent))
	if d.Reset {
		// Re-enters the governing path so the reset cascades down the chain.
		_ = s.applyLocked(c.Dependent, Wildcard, CauseInvalidation)
	}
}

func (s *Session) optionsLocked(f Field) OptionList {
	for _, c := range s.chains {
		if c.Dependent == f {
			return s.resolver.Options(f)
		}
	}
	if s.metadata == nil || !f.IsDimension() {
		return DefaultOptionList()
	}
	return NewOptionList(s.metadata.ListFor(f))
}

func (s *Session) emitLocked(e Event) {
	e.SessionID = s.id
	e.Dashboard = s.dashboard
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	s.outbox = append(s.outbox, e)
}

// flush hands queued events to the sink outside the session lock, one
// delivery at a time so the sink sees them in order.
func (s *Session) flush() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	events := s.outbox
	s.outbox = nil
	s.mu.Unlock()

	for _, e := range events {
		s.sink(e)
	}
}
