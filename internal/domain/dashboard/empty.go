package dashboard

const (
	DefaultForecastCutoffDate = "2025-12-30"
	DefaultForecastHorizon    = "30day"

	funnelUnit = "Units"
)

// DefaultFunnel is the zeroed demand flow funnel with its fixed labels.
func DefaultFunnel() DemandFlowFunnel {
	return DemandFlowFunnel{Steps: FunnelSteps{
		SKUForecast:       FunnelStep{Label: "SKU Forecast", Unit: funnelUnit},
		ProductMix:        FunnelStep{Label: "Product Mix", Unit: funnelUnit},
		ProductForecast:   FunnelStep{Label: "Product Demand", Unit: funnelUnit},
		RawMaterialDemand: FunnelStep{Label: "Material Demand", Unit: funnelUnit},
	}}
}

// EmptyConsumption is the payload shown when the consumption fetch fails:
// every KPI zero and neutral, every series empty.
func EmptyConsumption() *ConsumptionPayload {
	return &ConsumptionPayload{
		KPIs: ConsumptionKPIs{
			TotalForecastedRMDemand:     ZeroKPI(),
			ActualRMConsumption:         ZeroKPI(),
			ConsumptionForecastAccuracy: ZeroKPI(),
			InventoryExcessUnits:        ZeroKPI(),
			InventoryShortfallUnits:     ZeroKPI(),
		},
		RawMaterialDemandTrend:  []RawMaterialDemandTrendPoint{},
		RawMaterialRiskTable:    []RawMaterialRiskRow{},
		DemandFlowFunnel:        DefaultFunnel(),
		ForecastComparison:      []ForecastComparisonPoint{},
		ConsumptionErrorHeatmap: []ConsumptionHeatmapCell{},
		ForecastCutoffDate:      DefaultForecastCutoffDate,
		ForecastHorizon:         DefaultForecastHorizon,
	}
}

// EmptySales is the sales counterpart of EmptyConsumption.
func EmptySales() *SalesPayload {
	return &SalesPayload{
		KPIs: SalesKPIs{
			SKUForecastAccuracy:   ZeroKPI(),
			TotalForecastedUnits:  ZeroKPI(),
			ForecastBias:          ZeroKPI(),
			BaselineSales:         ZeroKPI(),
			DemandVolatilityIndex: ZeroKPI(),
			HighRiskSKUsCount:     ZeroKPI(),
		},
		SKUSalesTrend:              []SKUSalesTrendPoint{},
		SKUPerformance:             []SKUPerformance{},
		RiskAlerts:                 []RiskAlert{},
		SKUContributionHeatmap:     []SKUContributionHeatmapCell{},
		TopDemandDrivers:           []TopDemandDriver{},
		RollingError:               []RollingErrorPoint{},
		ForecastDeviationHistogram: []ForecastDeviationBucket{},
		ForecastCutoffDate:         DefaultForecastCutoffDate,
		ForecastHorizon:            DefaultForecastHorizon,
	}
}

// Normalize fills the gaps a backend response may leave: nil series become
// empty slices, blank KPI directions become neutral and unlabeled funnel
// steps take their default label.
func (p *ConsumptionPayload) Normalize() *ConsumptionPayload {
	if p == nil {
		return EmptyConsumption()
	}
	k := &p.KPIs
	k.TotalForecastedRMDemand = k.TotalForecastedRMDemand.normalized()
	k.ActualRMConsumption = k.ActualRMConsumption.normalized()
	k.ConsumptionForecastAccuracy = k.ConsumptionForecastAccuracy.normalized()
	k.InventoryExcessUnits = k.InventoryExcessUnits.normalized()
	k.InventoryShortfallUnits = k.InventoryShortfallUnits.normalized()
	for _, opt := range []*KPI{k.Trailing30DConsumption, k.ProjectedOverstock, k.DaysToStockout} {
		if opt != nil {
			*opt = opt.normalized()
		}
	}

	if p.RawMaterialDemandTrend == nil {
		p.RawMaterialDemandTrend = []RawMaterialDemandTrendPoint{}
	}
	if p.RawMaterialRiskTable == nil {
		p.RawMaterialRiskTable = []RawMaterialRiskRow{}
	}
	if p.ForecastComparison == nil {
		p.ForecastComparison = []ForecastComparisonPoint{}
	}
	if p.ConsumptionErrorHeatmap == nil {
		p.ConsumptionErrorHeatmap = []ConsumptionHeatmapCell{}
	}

	defaults := DefaultFunnel().Steps
	s := &p.DemandFlowFunnel.Steps
	s.SKUForecast = fillStep(s.SKUForecast, defaults.SKUForecast)
	s.ProductMix = fillStep(s.ProductMix, defaults.ProductMix)
	s.ProductForecast = fillStep(s.ProductForecast, defaults.ProductForecast)
	s.RawMaterialDemand = fillStep(s.RawMaterialDemand, defaults.RawMaterialDemand)
	return p
}

// Normalize is the sales counterpart of ConsumptionPayload.Normalize.
func (p *SalesPayload) Normalize() *SalesPayload {
	if p == nil {
		return EmptySales()
	}
	k := &p.KPIs
	k.SKUForecastAccuracy = k.SKUForecastAccuracy.normalized()
	k.TotalForecastedUnits = k.TotalForecastedUnits.normalized()
	k.ForecastBias = k.ForecastBias.normalized()
	k.BaselineSales = k.BaselineSales.normalized()
	k.DemandVolatilityIndex = k.DemandVolatilityIndex.normalized()
	k.HighRiskSKUsCount = k.HighRiskSKUsCount.normalized()

	if p.SKUSalesTrend == nil {
		p.SKUSalesTrend = []SKUSalesTrendPoint{}
	}
	if p.SKUPerformance == nil {
		p.SKUPerformance = []SKUPerformance{}
	}
	if p.RiskAlerts == nil {
		p.RiskAlerts = []RiskAlert{}
	}
	if p.SKUContributionHeatmap == nil {
		p.SKUContributionHeatmap = []SKUContributionHeatmapCell{}
	}
	if p.TopDemandDrivers == nil {
		p.TopDemandDrivers = []TopDemandDriver{}
	}
	if p.RollingError == nil {
		p.RollingError = []RollingErrorPoint{}
	}
	if p.ForecastDeviationHistogram == nil {
		p.ForecastDeviationHistogram = []ForecastDeviationBucket{}
	}
	return p
}

func fillStep(step, fallback FunnelStep) FunnelStep {
	if step.Label == "" {
		step.Label = fallback.Label
	}
	if step.Unit == "" {
		step.Unit = fallback.Unit
	}
	return step
}
