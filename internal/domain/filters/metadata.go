package filters

// Metadata is the unfiltered universe of values for every dimension.
// It is loaded once and never mutated afterwards.
type Metadata struct {
	Channels         []string `json:"channels"`
	Stores           []string `json:"stores"`
	SKUs             []string `json:"skus"`
	Products         []string `json:"products"`
	Categories       []string `json:"categories"`
	RawMaterials     []string `json:"rawMaterials"`
	ForecastHorizons []string `json:"forecastHorizons,omitempty"`
}

// ListFor returns the full value list for a dimension field. A nil receiver
// or an enum field yields nil.
func (m *Metadata) ListFor(f Field) []string {
	if m == nil {
		return nil
	}
	switch f {
	case FieldChannel:
		return m.Channels
	case FieldStore:
		return m.Stores
	case FieldSKU:
		return m.SKUs
	case FieldProduct:
		return m.Products
	case FieldCategory:
		return m.Categories
	case FieldRawMaterial:
		return m.RawMaterials
	}
	return nil
}

// Counts reports the size of each list, keyed by metadata key.
func (m *Metadata) Counts() map[string]int {
	counts := make(map[string]int, len(DimensionFields)+1)
	for _, f := range DimensionFields {
		counts[f.MetadataKey()] = len(m.ListFor(f))
	}
	if m != nil {
		counts["forecastHorizons"] = len(m.ForecastHorizons)
	}
	return counts
}

// OptionList is an ordered list of selectable values, always prefixed with
// the wildcard. Lists are replaced wholesale, never edited in place.
type OptionList []string

// DefaultOptionList is the list a dependent field holds before any resolution.
func DefaultOptionList() OptionList {
	return OptionList{Wildcard}
}

// NewOptionList builds a wildcard-prefixed list from backend values, dropping
// blanks, duplicates and any literal wildcard.
func NewOptionList(values []string) OptionList {
	list := make(OptionList, 1, len(values)+1)
	list[0] = Wildcard
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" || v == Wildcard {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		list = append(list, v)
	}
	return list
}

// Concrete returns the list without the wildcard entry.
func (l OptionList) Concrete() []string {
	if len(l) == 0 {
		return nil
	}
	if l[0] == Wildcard {
		return append([]string(nil), l[1:]...)
	}
	return append([]string(nil), l...)
}

// Contains reports whether v is one of the concrete values.
func (l OptionList) Contains(v string) bool {
	for _, c := range l {
		if c == v && c != Wildcard {
			return true
		}
	}
	return false
}

// Populated reports whether the list holds more than just the wildcard.
func (l OptionList) Populated() bool {
	return len(l.Concrete()) > 0
}

func (l OptionList) clone() OptionList {
	if l == nil {
		return DefaultOptionList()
	}
	return append(OptionList(nil), l...)
}
