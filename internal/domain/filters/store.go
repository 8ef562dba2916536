package filters

import (
	"sync"
	"time"
)

// DefaultRefreshDuration is how long isRefreshing stays set after a refresh.
const DefaultRefreshDuration = 1500 * time.Millisecond

// StoreSnapshot is a consistent read of the store.
type StoreSnapshot struct {
	Filters      State     `json:"filters"`
	LastRefresh  time.Time `json:"lastRefresh"`
	IsRefreshing bool      `json:"isRefreshing"`
}

// Store holds the canonical filter state. Setters are pure replaces; the
// store never validates one field against another.
type Store struct {
	mu           sync.RWMutex
	state        State
	lastRefresh  time.Time
	isRefreshing bool
	refreshSeq   uint64
	refreshFor   time.Duration
}

// NewStore creates a store holding the default state.
func NewStore(refreshFor time.Duration) *Store {
	return &Store{
		state:       DefaultState(),
		lastRefresh: time.Now().UTC(),
		refreshFor:  refreshFor,
	}
}

// Get returns the current value of one field.
func (s *Store) Get(f Field) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Get(f)
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces one field and returns its previous value.
func (s *Store) Set(f Field, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.state.Get(f)
	next, err := s.state.With(f, value)
	if err != nil {
		return previous, err
	}
	s.state = next
	return previous, nil
}

// Reset restores the default snapshot and returns the state it replaced.
func (s *Store) Reset() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.state
	s.state = DefaultState()
	return previous
}

// TriggerRefresh stamps lastRefresh and raises isRefreshing for the configured
// duration. done, when non-nil, runs once the flag drops. A newer refresh
// extends the window and suppresses the older callback. With a zero duration
// the flag is never raised and done is not called.
func (s *Store) TriggerRefresh(done func()) time.Time {
	s.mu.Lock()
	s.refreshSeq++
	seq := s.refreshSeq
	now := time.Now().UTC()
	s.lastRefresh = now
	s.isRefreshing = s.refreshFor > 0
	s.mu.Unlock()

	if s.refreshFor <= 0 {
		return now
	}

	time.AfterFunc(s.refreshFor, func() {
		s.mu.Lock()
		latest := s.refreshSeq == seq
		if latest {
			s.isRefreshing = false
		}
		s.mu.Unlock()
		if latest && done != nil {
			done()
		}
	})
	return now
}

// Snapshot returns the state together with the refresh markers.
func (s *Store) Snapshot() StoreSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreSnapshot{
		Filters:      s.state,
		LastRefresh:  s.lastRefresh,
		IsRefreshing: s.isRefreshing,
	}
}
