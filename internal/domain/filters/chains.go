package filters

import "fmt"

// Chain links a governing field to the dependent field it constrains.
type Chain struct {
	Governing Field `json:"governing"`
	Dependent Field `json:"dependent"`
}

func (c Chain) String() string {
	return fmt.Sprintf("%s->%s", c.Governing, c.Dependent)
}

// Dashboard selects which dependency chains are active.
type Dashboard string

const (
	DashboardConsumption Dashboard = "consumption"
	DashboardSales       Dashboard = "sales"
)

var (
	consumptionChains = []Chain{
		{Governing: FieldProduct, Dependent: FieldRawMaterial},
	}
	salesChains = []Chain{
		{Governing: FieldCategory, Dependent: FieldSKU},
		{Governing: FieldSKU, Dependent: FieldStore},
	}
)

// ParseDashboard resolves a dashboard kind by name.
func ParseDashboard(name string) (Dashboard, error) {
	switch Dashboard(name) {
	case DashboardConsumption, DashboardSales:
		return Dashboard(name), nil
	}
	return "", fmt.Errorf("unknown dashboard %q", name)
}

// Chains returns the dependency chains resolved on this dashboard. The
// consumption and sales chains are never mixed.
func (d Dashboard) Chains() []Chain {
	switch d {
	case DashboardConsumption:
		return append([]Chain(nil), consumptionChains...)
	case DashboardSales:
		return append([]Chain(nil), salesChains...)
	}
	return nil
}

// ScopeFor returns the governing field used by the backend's scoped lookup
// for a dependent field. Besides the dashboard chains the backend also
// serves products by raw material.
func ScopeFor(dependent Field) (Chain, bool) {
	switch dependent {
	case FieldRawMaterial:
		return Chain{Governing: FieldProduct, Dependent: FieldRawMaterial}, true
	case FieldSKU:
		return Chain{Governing: FieldCategory, Dependent: FieldSKU}, true
	case FieldStore:
		return Chain{Governing: FieldSKU, Dependent: FieldStore}, true
	case FieldProduct:
		return Chain{Governing: FieldRawMaterial, Dependent: FieldProduct}, true
	}
	return Chain{}, false
}
