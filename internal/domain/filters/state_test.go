package filters

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	assert.Equal(t, DateRangeNext30, s.DateRange)
	for _, f := range DimensionFields {
		assert.Equal(t, Wildcard, s.Get(f), f)
	}
	assert.Equal(t, ViewDaily, s.View)
	assert.Equal(t, AggregationDaily, s.Aggregation)
	assert.Equal(t, RollingWindow7, s.RollingWindow)
}

func TestStateWith(t *testing.T) {
	base := DefaultState()

	next, err := base.With(FieldStore, "store-1")
	require.NoError(t, err)
	assert.Equal(t, "store-1", next.Store)
	assert.Equal(t, Wildcard, base.Store, "With must not mutate the receiver")

	next, err = next.With(FieldStore, "  ")
	require.NoError(t, err)
	assert.Equal(t, Wildcard, next.Store)

	_, err = base.With(FieldDateRange, "next-90")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = base.With(FieldView, "hourly")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = base.With(Field("colour"), "red")
	assert.ErrorIs(t, err, ErrUnknownField)

	next, err = base.With(FieldRollingWindow, "14")
	require.NoError(t, err)
	assert.Equal(t, RollingWindow14, next.RollingWindow)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("rawMaterial")
	require.NoError(t, err)
	assert.Equal(t, FieldRawMaterial, f)

	_, err = ParseField("raw_material")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestEnumValues(t *testing.T) {
	values, ok := EnumValues(FieldRollingWindow)
	require.True(t, ok)
	assert.Equal(t, []string{"7", "14", "30"}, values)

	// Callers get a copy.
	values[0] = "90"
	again, _ := EnumValues(FieldRollingWindow)
	assert.Equal(t, "7", again[0])

	_, ok = EnumValues(FieldProduct)
	assert.False(t, ok)
}

func TestQueryParamsOmitsWildcards(t *testing.T) {
	s := DefaultState()
	s.Channel = Wildcard
	s.Store = "store-1"

	params := s.QueryParams()
	assert.False(t, params.Has("channel"))
	assert.Equal(t, "store-1", params.Get("store"))
	assert.Equal(t, "next-30", params.Get("dateRange"))
	assert.Equal(t, "daily", params.Get("aggregation"))
	assert.Equal(t, "daily", params.Get("view"))
	assert.Equal(t, "7", params.Get("rollingWindow"))
	for _, f := range []Field{FieldSKU, FieldProduct, FieldRawMaterial, FieldCategory} {
		assert.False(t, params.Has(string(f)), f)
	}
	for _, values := range params {
		for _, v := range values {
			assert.NotEqual(t, Wildcard, v)
		}
	}
}

func TestQueryParamsOmitsEmptyRollingWindow(t *testing.T) {
	s := DefaultState()
	s.RollingWindow = ""
	assert.False(t, s.QueryParams().Has("rollingWindow"))
}

func TestParseQueryRoundTrip(t *testing.T) {
	s := DefaultState()
	s.Product = "prod-1"
	s.RawMaterial = "leather"
	s.DateRange = DateRangeNext7
	s.View = ViewMonthly

	parsed, err := ParseQuery(s.QueryParams())
	require.NoError(t, err)
	assert.Equal(t, s, parsed)
	assert.Equal(t, s.CacheKey(), parsed.CacheKey())
}

func TestParseQueryRejectsBadEnum(t *testing.T) {
	_, err := ParseQuery(url.Values{"aggregation": {"yearly"}})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestCacheKeyChangesWithAnyFilter(t *testing.T) {
	base := DefaultState()
	seen := map[string]Field{base.CacheKey(): ""}
	changes := map[Field]string{
		FieldDateRange:     "next-7",
		FieldChannel:       "online",
		FieldStore:         "store-1",
		FieldSKU:           "sku-1",
		FieldProduct:       "prod-1",
		FieldCategory:      "shoes",
		FieldRawMaterial:   "leather",
		FieldAggregation:   "weekly",
		FieldView:          "weekly",
		FieldRollingWindow: "30",
	}
	for f, v := range changes {
		next, err := base.With(f, v)
		require.NoError(t, err)
		key := next.CacheKey()
		_, dup := seen[key]
		assert.False(t, dup, "changing %s must produce a new key", f)
		seen[key] = f
	}
}
