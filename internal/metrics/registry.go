package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the compliance pipeline
type Registry struct {
	meter metric.Meter

	// Validation metrics
	ValidationDuration      metric.Float64Histogram
	ValidationCounter       metric.Int64Counter
	PredicateErrorCounter   metric.Int64Counter
	PredicateTimeoutCounter metric.Int64Counter

	// Scoring metrics
	ScoreComputations metric.Int64Counter

	// Risk metrics
	RiskEntriesCreated metric.Int64Counter
	// UnmappedFindingCounter counts non-compliant findings skipped for
	// lack of an active risk mapping, so the omission leaves an audit
	// trail instead of vanishing.
	UnmappedFindingCounter metric.Int64Counter

	// Economic metrics
	ImpactEstimates   metric.Int64Counter
	ForecastsComputed metric.Int64Counter

	// Alerting metrics
	AlertsEmitted    metric.Int64Counter
	AlertsSuppressed metric.Int64Counter
	RuleFailures     metric.Int64Counter
	EvaluationCycles metric.Int64Counter
}

// NewRegistry creates a new metrics registry with all pipeline metrics
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{meter: otel.Meter(meterName)}

	if err := r.initValidationMetrics(); err != nil {
		return nil, err
	}
	if err := r.initRiskMetrics(); err != nil {
		return nil, err
	}
	if err := r.initAlertingMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initValidationMetrics() error {
	var err error

	r.ValidationDuration, err = r.meter.Float64Histogram(
		"iamcomp.validation.duration",
		metric.WithDescription("Duration of a per-requirement validation in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000),
	)
	if err != nil {
		return err
	}

	r.ValidationCounter, err = r.meter.Int64Counter(
		"iamcomp.validation.results_total",
		metric.WithDescription("Validation results by framework and outcome"),
	)
	if err != nil {
		return err
	}

	r.PredicateErrorCounter, err = r.meter.Int64Counter(
		"iamcomp.validation.predicate_errors_total",
		metric.WithDescription("Predicate evaluations that failed and were forced non-compliant"),
	)
	if err != nil {
		return err
	}

	r.PredicateTimeoutCounter, err = r.meter.Int64Counter(
		"iamcomp.validation.predicate_timeouts_total",
		metric.WithDescription("Predicate evaluations abandoned after the per-item timeout"),
	)
	if err != nil {
		return err
	}

	r.ScoreComputations, err = r.meter.Int64Counter(
		"iamcomp.scoring.computations_total",
		metric.WithDescription("Score aggregation runs"),
	)
	return err
}

func (r *Registry) initRiskMetrics() error {
	var err error

	r.RiskEntriesCreated, err = r.meter.Int64Counter(
		"iamcomp.risk.entries_created_total",
		metric.WithDescription("Risk register entries created from non-compliant findings"),
	)
	if err != nil {
		return err
	}

	r.UnmappedFindingCounter, err = r.meter.Int64Counter(
		"iamcomp.risk.unmapped_findings_total",
		metric.WithDescription("Non-compliant findings with no active risk mapping"),
	)
	if err != nil {
		return err
	}

	r.ImpactEstimates, err = r.meter.Int64Counter(
		"iamcomp.economic.estimates_total",
		metric.WithDescription("Economic impact estimates computed"),
	)
	if err != nil {
		return err
	}

	r.ForecastsComputed, err = r.meter.Int64Counter(
		"iamcomp.economic.forecasts_total",
		metric.WithDescription("Trend forecasts computed"),
	)
	return err
}

func (r *Registry) initAlertingMetrics() error {
	var err error

	r.AlertsEmitted, err = r.meter.Int64Counter(
		"iamcomp.alerting.alerts_emitted_total",
		metric.WithDescription("Alerts created by the evaluator"),
	)
	if err != nil {
		return err
	}

	r.AlertsSuppressed, err = r.meter.Int64Counter(
		"iamcomp.alerting.alerts_suppressed_total",
		metric.WithDescription("Alerts suppressed by duplicate or cooldown checks"),
	)
	if err != nil {
		return err
	}

	r.RuleFailures, err = r.meter.Int64Counter(
		"iamcomp.alerting.rule_failures_total",
		metric.WithDescription("Alert rules skipped after evaluation errors"),
	)
	if err != nil {
		return err
	}

	r.EvaluationCycles, err = r.meter.Int64Counter(
		"iamcomp.alerting.cycles_total",
		metric.WithDescription("Alert evaluation cycles completed"),
	)
	return err
}

// RecordValidation records one validation outcome.
func (r *Registry) RecordValidation(ctx context.Context, framework string, compliant bool, durationMs float64) {
	outcome := "non_compliant"
	if compliant {
		outcome = "compliant"
	}
	attrs := metric.WithAttributes(
		attribute.String("framework", framework),
		attribute.String("outcome", outcome),
	)
	r.ValidationCounter.Add(ctx, 1, attrs)
	r.ValidationDuration.Record(ctx, durationMs, metric.WithAttributes(attribute.String("framework", framework)))
}

// RecordUnmappedFinding records a finding skipped for lack of a mapping.
func (r *Registry) RecordUnmappedFinding(ctx context.Context, validatorID string) {
	r.UnmappedFindingCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("validator_id", validatorID)))
}

// RecordAlertSuppressed records a duplicate- or cooldown-suppressed alert.
func (r *Registry) RecordAlertSuppressed(ctx context.Context, reason string) {
	r.AlertsSuppressed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
