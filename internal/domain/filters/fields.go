// Package filters holds the dashboard filter-resolution core: the filter state
// record, dependent option lists, the invalidation policy and the session
// coordinator that ties them together.
//
// # Concurrency
//
// State, OptionList, Metadata and Chain are values and safe to share. Store
// and Session are safe for concurrent use. Resolver and Policy are not; a
// Session owns them and only touches them while holding its lock.
package filters

import (
	"errors"
	"fmt"
)

// Wildcard is the reserved selection meaning "no constraint on this dimension".
// It is never sent to the analytics backend as a literal filter value.
const Wildcard = "all"

var (
	ErrUnknownField  = errors.New("unknown filter field")
	ErrInvalidValue  = errors.New("invalid filter value")
	ErrSessionClosed = errors.New("filter session closed")
)

// Field names one entry of the filter state record.
type Field string

const (
	FieldDateRange     Field = "dateRange"
	FieldChannel       Field = "channel"
	FieldStore         Field = "store"
	FieldSKU           Field = "sku"
	FieldProduct       Field = "product"
	FieldCategory      Field = "category"
	FieldRawMaterial   Field = "rawMaterial"
	FieldAggregation   Field = "aggregation"
	FieldView          Field = "view"
	FieldRollingWindow Field = "rollingWindow"
)

// AllFields lists every field in query-encoding order.
var AllFields = []Field{
	FieldDateRange,
	FieldChannel, FieldStore, FieldSKU, FieldProduct, FieldRawMaterial, FieldCategory,
	FieldAggregation, FieldView, FieldRollingWindow,
}

// DimensionFields are the free-form fields whose domain comes from the backend.
var DimensionFields = []Field{
	FieldChannel, FieldStore, FieldSKU, FieldProduct, FieldRawMaterial, FieldCategory,
}

// ParseField resolves a field by its wire name.
func ParseField(name string) (Field, error) {
	for _, f := range AllFields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// IsDimension reports whether the field is backend-defined and carries the wildcard.
func (f Field) IsDimension() bool {
	switch f {
	case FieldChannel, FieldStore, FieldSKU, FieldProduct, FieldRawMaterial, FieldCategory:
		return true
	}
	return false
}

// MetadataKey is the plural key used for this field by the metadata and
// scoped-option endpoints ("rawMaterials", "skus", ...). Empty for enum fields.
func (f Field) MetadataKey() string {
	switch f {
	case FieldChannel:
		return "channels"
	case FieldStore:
		return "stores"
	case FieldSKU:
		return "skus"
	case FieldProduct:
		return "products"
	case FieldCategory:
		return "categories"
	case FieldRawMaterial:
		return "rawMaterials"
	}
	return ""
}

// DateRange is the forecast horizon requested from the backend.
type DateRange string

const (
	DateRangeNext7  DateRange = "next-7"
	DateRangeNext30 DateRange = "next-30"
)

// ViewMode is the display granularity of the dashboard.
type ViewMode string

const (
	ViewDaily   ViewMode = "daily"
	ViewWeekly  ViewMode = "weekly"
	ViewMonthly ViewMode = "monthly"
)

// Aggregation controls how trend series are bucketed.
type Aggregation string

const (
	AggregationDaily  Aggregation = "daily"
	AggregationWeekly Aggregation = "weekly"
)

// RollingWindow is the window size of the rolling-error chart, in days.
type RollingWindow string

const (
	RollingWindow7  RollingWindow = "7"
	RollingWindow14 RollingWindow = "14"
	RollingWindow30 RollingWindow = "30"
)

var enumValues = map[Field][]string{
	FieldDateRange:     {string(DateRangeNext7), string(DateRangeNext30)},
	FieldView:          {string(ViewDaily), string(ViewWeekly), string(ViewMonthly)},
	FieldAggregation:   {string(AggregationDaily), string(AggregationWeekly)},
	FieldRollingWindow: {string(RollingWindow7), string(RollingWindow14), string(RollingWindow30)},
}

// EnumValues returns the fixed value set of an enum field.
func EnumValues(f Field) ([]string, bool) {
	values, ok := enumValues[f]
	if !ok {
		return nil, false
	}
	return append([]string(nil), values...), true
}

func validEnum(f Field, value string) bool {
	for _, v := range enumValues[f] {
		if v == value {
			return true
		}
	}
	return false
}
