// Package dashboard defines the aggregated payloads served by the analytics
// backend for the consumption and sales views, together with their zeroed
// fallbacks.
package dashboard

// Direction is the arrow shown next to a KPI.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// KPI is one headline metric. Values are computed by the backend and
// treated as opaque numbers here.
type KPI struct {
	Value     float64   `json:"value"`
	Trend     float64   `json:"trend"`
	Direction Direction `json:"direction"`
}

// ZeroKPI is the neutral placeholder used when no data is available.
func ZeroKPI() KPI {
	return KPI{Direction: DirectionNeutral}
}

func (k KPI) normalized() KPI {
	if k.Direction == "" {
		k.Direction = DirectionNeutral
	}
	return k
}

// Period marks whether a trend point is observed or forecast.
type Period string

const (
	PeriodHistorical Period = "historical"
	PeriodForecast   Period = "forecast"
	PeriodTransition Period = "transition"
)

// ConsumptionKPIs are the headline metrics of the consumption view.
type ConsumptionKPIs struct {
	TotalForecastedRMDemand     KPI  `json:"totalForecastedRMDemand"`
	ActualRMConsumption         KPI  `json:"actualRMConsumption"`
	ConsumptionForecastAccuracy KPI  `json:"consumptionForecastAccuracy"`
	InventoryExcessUnits        KPI  `json:"inventoryExcessUnits"`
	InventoryShortfallUnits     KPI  `json:"inventoryShortfallUnits"`
	Trailing30DConsumption      *KPI `json:"trailing30DConsumption,omitempty"`
	ProjectedOverstock          *KPI `json:"projectedOverstock,omitempty"`
	DaysToStockout              *KPI `json:"daysToStockout,omitempty"`
}

// RawMaterialDemandTrendPoint is one bucket of the demand trend chart.
// Actual is nil for future dates, Forecast for dates before the cutoff.
type RawMaterialDemandTrendPoint struct {
	Date     string   `json:"date"`
	Forecast *float64 `json:"forecast"`
	Actual   *float64 `json:"actual"`
	Period   Period   `json:"period,omitempty"`
}

// RiskStatus classifies a raw material's closing inventory.
type RiskStatus string

const (
	RiskOverstock RiskStatus = "Overstock"
	RiskStockout  RiskStatus = "Stockout"
	RiskBalanced  RiskStatus = "Balanced"
)

// RawMaterialRiskRow is one row of the inventory risk table.
type RawMaterialRiskRow struct {
	ID                string     `json:"id"`
	RawMaterial       string     `json:"rawMaterial"`
	ForecastDemand    float64    `json:"forecastDemand"`
	ActualConsumption float64    `json:"actualConsumption"`
	ClosingInventory  float64    `json:"closingInventory"`
	SafetyStock       float64    `json:"safetyStock"`
	RiskStatus        RiskStatus `json:"riskStatus"`
	StockoutRiskDate  *string    `json:"stockoutRiskDate"`
}

// FunnelStep is one stage of the SKU-to-material demand funnel.
type FunnelStep struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// FunnelSteps are the four fixed stages of the demand flow funnel.
type FunnelSteps struct {
	SKUForecast       FunnelStep `json:"skuForecast"`
	ProductMix        FunnelStep `json:"productMix"`
	ProductForecast   FunnelStep `json:"productForecast"`
	RawMaterialDemand FunnelStep `json:"rawMaterialDemand"`
}

// DemandFlowFunnel is the funnel widget payload.
type DemandFlowFunnel struct {
	Steps FunnelSteps `json:"steps"`
}

// ForecastComparisonPoint is one weekly bucket of the forecast comparison
// chart with its confidence band.
type ForecastComparisonPoint struct {
	Date           string   `json:"date"`
	Actual         *float64 `json:"actual"`
	Forecast       *float64 `json:"forecast"`
	ConfidenceLow  *float64 `json:"confidenceLow"`
	ConfidenceHigh *float64 `json:"confidenceHigh"`
	Period         Period   `json:"period,omitempty"`
}

// ConsumptionHeatmapCell is the forecast error of one material on one date.
type ConsumptionHeatmapCell struct {
	Date             string  `json:"date"`
	RawMaterial      string  `json:"rawMaterial"`
	ForecastErrorPct float64 `json:"forecastErrorPct"`
}

// ConsumptionPayload is the response of GET /consumption/dashboard.
type ConsumptionPayload struct {
	KPIs                    ConsumptionKPIs               `json:"kpis"`
	RawMaterialDemandTrend  []RawMaterialDemandTrendPoint `json:"rawMaterialDemandTrend"`
	RawMaterialRiskTable    []RawMaterialRiskRow          `json:"rawMaterialRiskTable"`
	DemandFlowFunnel        DemandFlowFunnel              `json:"demandFlowFunnel"`
	ForecastComparison      []ForecastComparisonPoint     `json:"forecastComparison"`
	ConsumptionErrorHeatmap []ConsumptionHeatmapCell      `json:"consumptionErrorHeatmap"`
	ForecastCutoffDate      string                        `json:"forecastCutoffDate,omitempty"`
	ForecastHorizon         string                        `json:"forecastHorizon,omitempty"`
	HistoricalDays          *int                          `json:"historicalDays,omitempty"`
}

// SalesKPIs are the headline metrics of the sales view. Older backends
// report forecastBias, newer ones baselineSales; both are carried.
type SalesKPIs struct {
	SKUForecastAccuracy   KPI `json:"skuForecastAccuracy"`
	TotalForecastedUnits  KPI `json:"totalForecastedUnits"`
	ForecastBias          KPI `json:"forecastBias"`
	BaselineSales         KPI `json:"baselineSales"`
	DemandVolatilityIndex KPI `json:"demandVolatilityIndex"`
	HighRiskSKUsCount     KPI `json:"highRiskSKUsCount"`
}

// SKUSalesTrendPoint is one bucket of the SKU sales trend, optionally split
// by channel.
type SKUSalesTrendPoint struct {
	Date     string   `json:"date"`
	Actual   *float64 `json:"actual"`
	Forecast *float64 `json:"forecast"`
	Channel  string   `json:"channel,omitempty"`
}

// RiskFlag grades a SKU's forecast risk.
type RiskFlag string

const (
	RiskFlagLow    RiskFlag = "low"
	RiskFlagMedium RiskFlag = "medium"
	RiskFlagHigh   RiskFlag = "high"
)

// SKUPerformance is one row of the SKU performance table.
type SKUPerformance struct {
	ID               int      `json:"id"`
	SKU              string   `json:"sku"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	AvgDailySales    float64  `json:"avgDailySales"`
	Accuracy         float64  `json:"accuracy"`
	DemandVolatility float64  `json:"demandVolatility"`
	RiskFlag         RiskFlag `json:"riskFlag"`
}

// Severity grades a risk alert.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskAlert is a SKU flagged for attention.
type RiskAlert struct {
	ID                int      `json:"id"`
	SKU               string   `json:"sku"`
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	Severity          Severity `json:"severity"`
	Issue             string   `json:"issue"`
	Recommendation    string   `json:"recommendation"`
	DaysUntilStockout *int     `json:"daysUntilStockout,omitempty"`
}

// SKUContributionHeatmapCell is a SKU's share of demand on one date.
type SKUContributionHeatmapCell struct {
	SKU             string  `json:"sku"`
	Date            string  `json:"date"`
	ContributionPct float64 `json:"contributionPct"`
}

// TrendDirection is the recent movement of a demand driver.
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// TopDemandDriver is one SKU in the top contributors panel.
type TopDemandDriver struct {
	SKU             string         `json:"sku"`
	Name            string         `json:"name"`
	ContributionPct float64        `json:"contributionPct"`
	TrendDirection  TrendDirection `json:"trendDirection"`
}

// RollingErrorPoint is one point of the rolling MAPE chart.
type RollingErrorPoint struct {
	Date string   `json:"date"`
	MAPE float64  `json:"mape"`
	Bias *float64 `json:"bias,omitempty"`
}

// DeviationBucket names a forecast deviation histogram bucket.
type DeviationBucket string

const (
	BucketUnder    DeviationBucket = "under"
	BucketAccurate DeviationBucket = "accurate"
	BucketOver     DeviationBucket = "over"
)

// ForecastDeviationBucket is one bar of the deviation histogram.
type ForecastDeviationBucket struct {
	Bucket DeviationBucket `json:"bucket"`
	Count  int             `json:"count"`
}

// SalesPayload is the response of GET /sales/dashboard.
type SalesPayload struct {
	KPIs                       SalesKPIs                    `json:"kpis"`
	SKUSalesTrend              []SKUSalesTrendPoint         `json:"skuSalesTrend"`
	SKUPerformance             []SKUPerformance             `json:"skuPerformance"`
	RiskAlerts                 []RiskAlert                  `json:"riskAlerts"`
	SKUContributionHeatmap     []SKUContributionHeatmapCell `json:"skuContributionHeatmap"`
	TopDemandDrivers           []TopDemandDriver            `json:"topDemandDrivers"`
	RollingError               []RollingErrorPoint          `json:"rollingError"`
	ForecastDeviationHistogram []ForecastDeviationBucket    `json:"forecastDeviationHistogram"`
	ForecastCutoffDate         string                       `json:"forecastCutoffDate,omitempty"`
	ForecastHorizon            string                       `json:"forecastHorizon,omitempty"`
	HistoricalDays             *int                         `json:"historicalDays,omitempty"`
}
