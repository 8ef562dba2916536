package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/woodland-analytics/woodland-dash/internal/domain/dashboard"
	"github.com/woodland-analytics/woodland-dash/internal/domain/events"
	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/messaging"
)

var errBackendDown = errors.New("backend down")

func testMetadata() *filters.Metadata {
	return &filters.Metadata{
		Channels:     []string{"online", "retail"},
		Stores:       []string{"store-1", "store-2"},
		SKUs:         []string{"sku-1", "sku-2", "sku-3"},
		Products:     []string{"prod-1", "prod-2"},
		Categories:   []string{"shoes", "bags"},
		RawMaterials: []string{"suede", "leather"},
	}
}

// fakeBackend serves canned metadata, option lists and dashboards.
type fakeBackend struct {
	mu            sync.Mutex
	metadataErrs  int
	options       map[string][]string
	optionsErr    error
	consumption   *dashboard.ConsumptionPayload
	dashboardErr  error
	gate          chan struct{}
	metadataCalls atomic.Int32
	optionCalls   atomic.Int32
	dashCalls     atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		options: map[string][]string{
			"prod-1": {"suede"},
			"shoes":  {"sku-1", "sku-2"},
			"bags":   {"sku-3"},
			"sku-1":  {"store-1"},
			"suede":  {"prod-1"},
		},
	}
}

func (f *fakeBackend) FetchMetadata(ctx context.Context) (*filters.Metadata, error) {
	f.metadataCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metadataErrs > 0 {
		f.metadataErrs--
		return nil, errBackendDown
	}
	return testMetadata(), nil
}

func (f *fakeBackend) FetchOptions(ctx context.Context, chain filters.Chain, governing string) ([]string, error) {
	f.optionCalls.Add(1)
	if f.optionsErr != nil {
		return nil, f.optionsErr
	}
	return f.options[governing], nil
}

func (f *fakeBackend) FetchConsumption(ctx context.Context, params url.Values) (*dashboard.ConsumptionPayload, error) {
	f.dashCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.dashboardErr != nil {
		return nil, f.dashboardErr
	}
	return f.consumption, nil
}

func (f *fakeBackend) FetchSales(ctx context.Context, params url.Values) (*dashboard.SalesPayload, error) {
	f.dashCalls.Add(1)
	if f.dashboardErr != nil {
		return nil, f.dashboardErr
	}
	p := dashboard.EmptySales()
	p.KPIs.TotalForecastedUnits.Value = 42
	return p, nil
}

// memoryRepository is an in-process events.Repository.
type memoryRepository struct {
	mu     sync.Mutex
	stored []*events.FilterEvent
}

func (r *memoryRepository) Store(event *events.FilterEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, event)
	return nil
}

func (r *memoryRepository) ListBySession(sessionID string, limit int) ([]*events.FilterEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*events.FilterEvent
	for i := len(r.stored) - 1; i >= 0 && len(out) < limit; i-- {
		if r.stored[i].SessionID == sessionID {
			out = append(out, r.stored[i])
		}
	}
	return out, nil
}

func (r *memoryRepository) CountByCause(sessionID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range r.stored {
		if e.SessionID == sessionID {
			counts[e.Cause]++
		}
	}
	return counts, nil
}

func (r *memoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stored)
}

// recordingPublisher pretends every session has one watching client.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []messaging.Message
	closed   []string
}

func (p *recordingPublisher) Publish(sessionID string, msg messaging.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func (p *recordingPublisher) CloseSession(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, sessionID)
}

func (p *recordingPublisher) ClientCount(string) int { return 1 }

func (p *recordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func (p *recordingPublisher) Closed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.closed...)
}
