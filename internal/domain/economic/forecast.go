package economic

import "time"

// HistoryPoint is one month of aggregated economic impact for a tenant.
type HistoryPoint struct {
	Month       time.Time `json:"month"`
	TotalImpact float64   `json:"total_impact"`
}

// TrendForecast is a forward projection of monthly impact with a 95%
// confidence band.
type TrendForecast struct {
	MonthsAhead int     `json:"months_ahead"`
	Predicted   float64 `json:"predicted"`
	LowerBound  float64 `json:"lower_bound"`
	UpperBound  float64 `json:"upper_bound"`
	Slope       float64 `json:"slope"`
	Intercept   float64 `json:"intercept"`
}

// ROIScenario describes a what-if compliance improvement simulation.
type ROIScenario struct {
	ImprovementPercent float64 `json:"improvement_percent"`
	HorizonMonths      int     `json:"horizon_months"`
	RemediationCost    float64 `json:"remediation_cost"`
}

// ROIResult is the outcome of an ROI simulation. ROIPercent is nil when
// the remediation cost is zero, where ROI is undefined.
type ROIResult struct {
	CurrentMonthlyImpact   float64  `json:"current_monthly_impact"`
	SimulatedMonthlyImpact float64  `json:"simulated_monthly_impact"`
	Savings                float64  `json:"savings"`
	ROIPercent             *float64 `json:"roi_percent"`
}
