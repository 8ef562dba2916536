package services

import (
	"context"
	"fmt"

	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

// ScopedOptions is a stateless option lookup result.
type ScopedOptions struct {
	Field     filters.Field      `json:"field"`
	Governing filters.Field      `json:"governing"`
	Value     string             `json:"value"`
	Options   filters.OptionList `json:"options"`
	FellBack  bool               `json:"fellBack"`
}

// ScopedOptionsService resolves dependent option lists without a session.
// Besides the dashboard chains it serves products by raw material.
type ScopedOptionsService struct {
	fetcher  filters.OptionFetcher
	metadata *MetadataService
	logger   *logging.ChanneledLogger
}

func NewScopedOptionsService(fetcher filters.OptionFetcher, metadata *MetadataService, logger *logging.ChanneledLogger) *ScopedOptionsService {
	return &ScopedOptionsService{fetcher: fetcher, metadata: metadata, logger: logger}
}

// Lookup returns the valid values of dependent for one governing value. A
// wildcard or a failed fetch yields the unfiltered metadata list, so nothing
// is answered until metadata has loaded.
func (s *ScopedOptionsService) Lookup(ctx context.Context, dependent filters.Field, value string) (*ScopedOptions, error) {
	chain, ok := filters.ScopeFor(dependent)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no scoped lookup", filters.ErrUnknownField, dependent)
	}
	md := s.metadata.Metadata()
	if md == nil {
		return nil, ErrMetadataLoading
	}
	if value == "" {
		value = filters.Wildcard
	}
	result := &ScopedOptions{Field: dependent, Governing: chain.Governing, Value: value}

	if value == filters.Wildcard {
		result.Options = filters.Fallback(chain, md)
		return result, nil
	}

	values, err := s.fetcher.FetchOptions(ctx, chain, value)
	if err != nil {
		s.logger.Filters().Warn("Stateless scoped lookup failed, using unfiltered list",
			"chain", chain.String(),
			"governing", value,
			"error", err.Error())
		result.Options = filters.Fallback(chain, md)
		result.FellBack = true
		return result, nil
	}
	result.Options = filters.NewOptionList(values)
	return result, nil
}
