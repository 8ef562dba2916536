package filters

import (
	"fmt"
	"net/url"
	"strings"
)

// State is the canonical filter selection set.
type State struct {
	DateRange     DateRange     `json:"dateRange"`
	Channel       string        `json:"channel"`
	Store         string        `json:"store"`
	SKU           string        `json:"sku"`
	Product       string        `json:"product"`
	Category      string        `json:"category"`
	RawMaterial   string        `json:"rawMaterial"`
	Aggregation   Aggregation   `json:"aggregation"`
	View          ViewMode      `json:"view"`
	RollingWindow RollingWindow `json:"rollingWindow"`
}

// DefaultState returns the fixed default snapshot.
func DefaultState() State {
	return State{
		DateRange:     DateRangeNext30,
		Channel:       Wildcard,
		Store:         Wildcard,
		SKU:           Wildcard,
		Product:       Wildcard,
		Category:      Wildcard,
		RawMaterial:   Wildcard,
		Aggregation:   AggregationDaily,
		View:          ViewDaily,
		RollingWindow: RollingWindow7,
	}
}

// Get returns the value of a single field.
func (s State) Get(f Field) string {
	switch f {
	case FieldDateRange:
		return string(s.DateRange)
	case FieldChannel:
		return s.Channel
	case FieldStore:
		return s.Store
	case FieldSKU:
		return s.SKU
	case FieldProduct:
		return s.Product
	case FieldCategory:
		return s.Category
	case FieldRawMaterial:
		return s.RawMaterial
	case FieldAggregation:
		return string(s.Aggregation)
	case FieldView:
		return string(s.View)
	case FieldRollingWindow:
		return string(s.RollingWindow)
	}
	return ""
}

// With returns a copy of s with one field replaced. Enum fields are checked
// against their fixed value sets; dimension fields accept any value and an
// empty value means the wildcard. No cross-field checks happen here.
func (s State) With(f Field, value string) (State, error) {
	value = strings.TrimSpace(value)

	if f.IsDimension() {
		if value == "" {
			value = Wildcard
		}
	} else if _, isEnum := enumValues[f]; isEnum {
		if !validEnum(f, value) {
			return s, fmt.Errorf("%w: %s=%q", ErrInvalidValue, f, value)
		}
	} else {
		return s, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}

	switch f {
	case FieldDateRange:
		s.DateRange = DateRange(value)
	case FieldChannel:
		s.Channel = value
	case FieldStore:
		s.Store = value
	case FieldSKU:
		s.SKU = value
	case FieldProduct:
		s.Product = value
	case FieldCategory:
		s.Category = value
	case FieldRawMaterial:
		s.RawMaterial = value
	case FieldAggregation:
		s.Aggregation = Aggregation(value)
	case FieldView:
		s.View = ViewMode(value)
	case FieldRollingWindow:
		s.RollingWindow = RollingWindow(value)
	}
	return s, nil
}

// QueryParams encodes the state for a dashboard request. dateRange,
// aggregation and view are always present; dimension fields are omitted
// when they hold the wildcard, which the backend reads as "unfiltered".
func (s State) QueryParams() url.Values {
	params := url.Values{}
	params.Set(string(FieldDateRange), string(s.DateRange))
	for _, f := range DimensionFields {
		if v := s.Get(f); v != "" && v != Wildcard {
			params.Set(string(f), v)
		}
	}
	params.Set(string(FieldAggregation), string(s.Aggregation))
	params.Set(string(FieldView), string(s.View))
	if s.RollingWindow != "" {
		params.Set(string(FieldRollingWindow), string(s.RollingWindow))
	}
	return params
}

// CacheKey is a stable composite key for the whole state.
func (s State) CacheKey() string {
	return s.QueryParams().Encode()
}

// ParseQuery is the inverse of QueryParams. Missing keys keep their default,
// so an omitted dimension decodes to the wildcard.
func ParseQuery(values url.Values) (State, error) {
	state := DefaultState()
	for _, f := range AllFields {
		if !values.Has(string(f)) {
			continue
		}
		next, err := state.With(f, values.Get(string(f)))
		if err != nil {
			return DefaultState(), err
		}
		state = next
	}
	return state, nil
}
