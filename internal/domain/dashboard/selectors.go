package dashboard

// Selectors read one widget's data from a payload. A nil payload, as left by
// a failed or pending fetch, yields the zeroed shape rather than nil.

func ConsumptionKPIsOf(p *ConsumptionPayload) ConsumptionKPIs {
	if p == nil {
		return EmptyConsumption().KPIs
	}
	return p.KPIs
}

func SalesKPIsOf(p *SalesPayload) SalesKPIs {
	if p == nil {
		return EmptySales().KPIs
	}
	return p.KPIs
}

func FunnelOf(p *ConsumptionPayload) DemandFlowFunnel {
	if p == nil {
		return DefaultFunnel()
	}
	return p.DemandFlowFunnel
}

func DemandTrendOf(p *ConsumptionPayload) []RawMaterialDemandTrendPoint {
	if p == nil || p.RawMaterialDemandTrend == nil {
		return []RawMaterialDemandTrendPoint{}
	}
	return p.RawMaterialDemandTrend
}

func RiskTableOf(p *ConsumptionPayload) []RawMaterialRiskRow {
	if p == nil || p.RawMaterialRiskTable == nil {
		return []RawMaterialRiskRow{}
	}
	return p.RawMaterialRiskTable
}

func ForecastComparisonOf(p *ConsumptionPayload) []ForecastComparisonPoint {
	if p == nil || p.ForecastComparison == nil {
		return []ForecastComparisonPoint{}
	}
	return p.ForecastComparison
}

func ConsumptionHeatmapOf(p *ConsumptionPayload) []ConsumptionHeatmapCell {
	if p == nil || p.ConsumptionErrorHeatmap == nil {
		return []ConsumptionHeatmapCell{}
	}
	return p.ConsumptionErrorHeatmap
}

// CutoffOf returns the forecast cutoff date of either payload kind, or the
// default cutoff when the backend did not report one.
func CutoffOf(cutoff string) string {
	if cutoff == "" {
		return DefaultForecastCutoffDate
	}
	return cutoff
}

func SalesTrendOf(p *SalesPayload) []SKUSalesTrendPoint {
	if p == nil || p.SKUSalesTrend == nil {
		return []SKUSalesTrendPoint{}
	}
	return p.SKUSalesTrend
}

func SKUPerformanceOf(p *SalesPayload) []SKUPerformance {
	if p == nil || p.SKUPerformance == nil {
		return []SKUPerformance{}
	}
	return p.SKUPerformance
}

func RiskAlertsOf(p *SalesPayload) []RiskAlert {
	if p == nil || p.RiskAlerts == nil {
		return []RiskAlert{}
	}
	return p.RiskAlerts
}

func ContributionHeatmapOf(p *SalesPayload) []SKUContributionHeatmapCell {
	if p == nil || p.SKUContributionHeatmap == nil {
		return []SKUContributionHeatmapCell{}
	}
	return p.SKUContributionHeatmap
}

func TopDemandDriversOf(p *SalesPayload) []TopDemandDriver {
	if p == nil || p.TopDemandDrivers == nil {
		return []TopDemandDriver{}
	}
	return p.TopDemandDrivers
}

func RollingErrorOf(p *SalesPayload) []RollingErrorPoint {
	if p == nil || p.RollingError == nil {
		return []RollingErrorPoint{}
	}
	return p.RollingError
}

func DeviationHistogramOf(p *SalesPayload) []ForecastDeviationBucket {
	if p == nil || p.ForecastDeviationHistogram == nil {
		return []ForecastDeviationBucket{}
	}
	return p.ForecastDeviationHistogram
}
