package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/woodland-analytics/woodland-dash/internal/domain/dashboard"
	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
)

// DashboardFetcher loads aggregated dashboard payloads.
type DashboardFetcher interface {
	FetchConsumption(ctx context.Context, params url.Values) (*dashboard.ConsumptionPayload, error)
	FetchSales(ctx context.Context, params url.Values) (*dashboard.SalesPayload, error)
}

// DashboardService fetches dashboard payloads for a filter state. Identical
// requests in flight at the same time share one backend call. Failures
// yield the empty payload; no error leaves this service.
type DashboardService struct {
	fetcher     DashboardFetcher
	group       singleflight.Group
	timeout     time.Duration
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

func NewDashboardService(fetcher DashboardFetcher, timeout time.Duration, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DashboardService {
	return &DashboardService{
		fetcher:     fetcher,
		timeout:     timeout,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// Consumption returns the consumption payload. Callers must not modify it;
// concurrent callers may receive the same value.
func (s *DashboardService) Consumption(ctx context.Context, state filters.State, lastRefresh time.Time) *dashboard.ConsumptionPayload {
	v := s.do(ctx, filters.DashboardConsumption, state, lastRefresh, func(ctx context.Context, params url.Values) (any, error) {
		return s.fetcher.FetchConsumption(ctx, params)
	})
	if p, ok := v.(*dashboard.ConsumptionPayload); ok && p != nil {
		return p
	}
	return dashboard.EmptyConsumption()
}

// Sales returns the sales payload. Callers must not modify it.
func (s *DashboardService) Sales(ctx context.Context, state filters.State, lastRefresh time.Time) *dashboard.SalesPayload {
	v := s.do(ctx, filters.DashboardSales, state, lastRefresh, func(ctx context.Context, params url.Values) (any, error) {
		return s.fetcher.FetchSales(ctx, params)
	})
	if p, ok := v.(*dashboard.SalesPayload); ok && p != nil {
		return p
	}
	return dashboard.EmptySales()
}

// ForSnapshot returns the payload matching the session's dashboard.
func (s *DashboardService) ForSnapshot(ctx context.Context, snap filters.Snapshot) any {
	if snap.Dashboard == filters.DashboardSales {
		return s.Sales(ctx, snap.Filters, snap.LastRefresh)
	}
	return s.Consumption(ctx, snap.Filters, snap.LastRefresh)
}

func (s *DashboardService) do(ctx context.Context, kind filters.Dashboard, state filters.State, lastRefresh time.Time,
	fetch func(context.Context, url.Values) (any, error)) any {
	params := state.QueryParams()
	key := requestKey(kind, params, lastRefresh)

	v, err, shared := s.group.Do(key, func() (any, error) {
		marker := s.perfTracker.StartOperation("dashboard:"+string(kind), "")
		defer s.perfTracker.CompleteOperation(marker)

		// Shared by every waiter, so one caller going away must not cancel it.
		fetchCtx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, s.timeout)
			defer cancel()
		}

		payload, err := fetch(fetchCtx, params)
		if err != nil {
			marker.SetError(err)
		}
		return payload, err
	})

	if err != nil {
		s.logger.Dashboard().Warn("Dashboard fetch failed, serving empty payload",
			"dashboard", kind,
			"query", params.Encode(),
			"error", err.Error())
		return nil
	}
	s.logger.Dashboard().Debug("Dashboard payload served", "dashboard", kind, "query", params.Encode(), "shared", shared)
	return v
}

func requestKey(kind filters.Dashboard, params url.Values, lastRefresh time.Time) string {
	return fmt.Sprintf("%s?%s#%d", kind, params.Encode(), lastRefresh.UnixNano())
}
