package economic

import (
	"math"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/economic"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
)

// Forecaster projects monthly impact forward from aggregated history.
// Implementations must be pure: same history in, same forecast out.
type Forecaster interface {
	Forecast(history []economic.HistoryPoint, monthsAhead int) (*economic.TrendForecast, error)
}

// LinearForecaster fits an ordinary least squares line over the monthly
// totals and projects it forward with a 95% confidence band.
type LinearForecaster struct{}

// NewLinearForecaster creates the default forecaster.
func NewLinearForecaster() *LinearForecaster {
	return &LinearForecaster{}
}

// Forecast fits y = intercept + slope*x over month indices 0..n-1 and
// predicts the value monthsAhead past the last observation. The band is
// prediction ± 1.96*stddev/sqrt(n); with constant history the stddev is
// synthesized as 10% of the mean so the band never collapses to a line.
func (f *LinearForecaster) Forecast(history []economic.HistoryPoint, monthsAhead int) (*economic.TrendForecast, error) {
	n := len(history)
	if n < 2 {
		return nil, errors.ErrInsufficientHistory
	}
	if monthsAhead < 1 {
		return nil, errors.NewValidationError("INVALID_HORIZON", "Forecast horizon must be at least one month")
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range history {
		x := float64(i)
		sumX += x
		sumY += p.TotalImpact
		sumXY += x * p.TotalImpact
		sumXX += x * x
	}
	fn := float64(n)
	slope := (fn*sumXY - sumX*sumY) / (fn*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / fn

	mean := sumY / fn
	var variance float64
	for _, p := range history {
		d := p.TotalImpact - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / fn)
	if stddev == 0 {
		stddev = mean * 0.1
	}

	predicted := intercept + slope*float64(n-1+monthsAhead)
	margin := 1.96 * stddev / math.Sqrt(fn)

	return &economic.TrendForecast{
		MonthsAhead: monthsAhead,
		Predicted:   predicted,
		LowerBound:  math.Max(0, predicted-margin),
		UpperBound:  predicted + margin,
		Slope:       slope,
		Intercept:   intercept,
	}, nil
}
