package economic

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/economic"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/values"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/metrics"
)

// Config holds the economic estimation configuration.
type Config struct {
	// DefaultCurrency applies when no factor-table row supplies one.
	DefaultCurrency string `json:"default_currency"`
	// HistoryMonths bounds how much aggregate history feeds a forecast.
	HistoryMonths int `json:"history_months"`
}

// DefaultConfig returns the default economic configuration.
func DefaultConfig() Config {
	return Config{
		DefaultCurrency: values.EUR,
		HistoryMonths:   24,
	}
}

// Service estimates the economic impact of non-compliance findings and
// projects impact trends. Estimates are derived on demand; nothing here
// is an independent source of truth.
type Service struct {
	logger     *zap.Logger
	factors    economic.FactorRepository
	history    economic.HistoryRepository
	forecaster Forecaster
	metrics    *metrics.Registry
	config     Config
}

// NewService creates an economic impact service. A nil forecaster gets
// the linear default.
func NewService(
	logger *zap.Logger,
	factors economic.FactorRepository,
	history economic.HistoryRepository,
	forecaster Forecaster,
	metricsRegistry *metrics.Registry,
	config Config,
) *Service {
	if forecaster == nil {
		forecaster = NewLinearForecaster()
	}
	return &Service{
		logger:     logger,
		factors:    factors,
		history:    history,
		forecaster: forecaster,
		metrics:    metricsRegistry,
		config:     config,
	}
}

// Estimate computes the impact breakdown for one finding. The base and
// penalty costs come from the factor table when a row matches, otherwise
// from sector defaults; both are scaled by the framework multiplier and
// the finding's risk tier before severity is applied. Each estimate is
// folded into the tenant's monthly history so forecasts and ROI
// simulations have data to work from.
func (s *Service) Estimate(ctx context.Context, tenantID uuid.UUID, validatorID, jurisdiction, sector string, severity economic.Severity, irr compliance.IRRLevel) (*economic.Impact, error) {
	baseCost := economic.DefaultBaseCost(sector)
	penaltyBase := 0.0
	frameworkMult := 1.0
	currency := s.config.DefaultCurrency

	factor, err := s.factors.Lookup(ctx, validatorID, jurisdiction, sector)
	switch {
	case err == nil:
		baseCost = factor.BaseCost
		penaltyBase = factor.PenaltyBase
		if factor.FrameworkMultiplier > 0 {
			frameworkMult = factor.FrameworkMultiplier
		}
		if factor.Currency != "" {
			currency = factor.Currency
		}
	case errors.IsType(err, errors.ErrorTypeNotFound):
		s.logger.Debug("no cost factor row, using sector default",
			zap.String("validator_id", validatorID),
			zap.String("jurisdiction", jurisdiction),
			zap.String("sector", sector),
			zap.Float64("base_cost", baseCost),
		)
	default:
		return nil, errors.Wrap(err, "lookup cost factor")
	}

	scale := frameworkMult * irr.CostMultiplier()
	base, err := values.NewMoneyFromFloat(baseCost*scale, currency)
	if err != nil {
		return nil, errors.Wrap(err, "build base cost")
	}
	penalty, err := values.NewMoneyFromFloat(penaltyBase*scale, currency)
	if err != nil {
		return nil, errors.Wrap(err, "build penalty base")
	}

	impact, err := economic.ComputeImpact(validatorID, jurisdiction, sector, severity, base, penalty)
	if err != nil {
		return nil, err
	}

	// Best effort; the estimate stands even when the aggregate write
	// fails.
	if err := s.history.Record(ctx, tenantID, time.Now().UTC(), impact.TotalImpact.ToFloat64()); err != nil {
		s.logger.Warn("impact history record failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("validator_id", validatorID),
			zap.Error(err),
		)
	}

	if s.metrics != nil {
		s.metrics.ImpactEstimates.Add(ctx, 1)
	}
	s.logger.Debug("impact estimated",
		zap.String("validator_id", validatorID),
		zap.String("severity", string(severity)),
		zap.String("irr", irr.String()),
		zap.String("total", impact.TotalImpact.String()),
	)
	return impact, nil
}

// PredictTrend projects the tenant's monthly impact monthsAhead months
// forward from aggregated history.
func (s *Service) PredictTrend(ctx context.Context, tenantID uuid.UUID, monthsAhead int) (*economic.TrendForecast, error) {
	history, err := s.history.MonthlyTotals(ctx, tenantID, s.config.HistoryMonths)
	if err != nil {
		return nil, errors.Wrap(err, "load impact history")
	}

	forecast, err := s.forecaster.Forecast(history, monthsAhead)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ForecastsComputed.Add(ctx, 1)
	}
	return forecast, nil
}

// SimulateROI runs a what-if compliance improvement over the tenant's
// current monthly impact. ROIPercent is nil when the remediation cost is
// zero, where the ratio is undefined; the savings figures still carry.
func (s *Service) SimulateROI(ctx context.Context, tenantID uuid.UUID, scenario economic.ROIScenario) (*economic.ROIResult, error) {
	if scenario.ImprovementPercent < 0 || scenario.ImprovementPercent > 100 {
		return nil, errors.NewValidationError("INVALID_IMPROVEMENT",
			"Improvement percent must be between 0 and 100")
	}
	if scenario.HorizonMonths < 1 {
		return nil, errors.NewValidationError("INVALID_HORIZON",
			"Simulation horizon must be at least one month")
	}

	history, err := s.history.MonthlyTotals(ctx, tenantID, s.config.HistoryMonths)
	if err != nil {
		return nil, errors.Wrap(err, "load impact history")
	}
	if len(history) == 0 {
		return nil, errors.ErrInsufficientHistory
	}

	current := history[len(history)-1].TotalImpact
	simulated := current * (1 - scenario.ImprovementPercent/100)
	savings := (current - simulated) * float64(scenario.HorizonMonths)

	result := &economic.ROIResult{
		CurrentMonthlyImpact:   current,
		SimulatedMonthlyImpact: simulated,
		Savings:                savings,
	}
	if scenario.RemediationCost > 0 {
		roi := savings / scenario.RemediationCost * 100
		result.ROIPercent = &roi
	}
	return result, nil
}
