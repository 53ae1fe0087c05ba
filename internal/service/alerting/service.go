package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/alert"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/economic"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/metrics"
)

// CycleInput carries one tenant's fresh evaluation state into an alert
// cycle.
type CycleInput struct {
	TenantID     uuid.UUID
	Sector       string
	Jurisdiction string
	Results      []*compliance.ValidationResult
	Scores       []compliance.ComplianceScore
}

// Service evaluates alert rules against scored validation batches. Rule
// failures skip the rule for the cycle, never the cycle itself; duplicate
// and cooldown suppression happen in the stores, atomically.
type Service struct {
	logger    *zap.Logger
	alerts    alert.Repository
	rules     alert.RuleRepository
	results   compliance.ResultRepository
	catalog   compliance.CatalogRepository
	cooldowns CooldownStore
	estimator ImpactEstimator
	metrics   *metrics.Registry
}

// NewService creates an alert evaluation service. The estimator may be
// nil, in which case alerts carry no loss estimate.
func NewService(
	logger *zap.Logger,
	alerts alert.Repository,
	rules alert.RuleRepository,
	results compliance.ResultRepository,
	catalog compliance.CatalogRepository,
	cooldowns CooldownStore,
	estimator ImpactEstimator,
	metricsRegistry *metrics.Registry,
) *Service {
	return &Service{
		logger:    logger,
		alerts:    alerts,
		rules:     rules,
		results:   results,
		catalog:   catalog,
		cooldowns: cooldowns,
		estimator: estimator,
		metrics:   metricsRegistry,
	}
}

// EvaluateCycle runs every enabled rule against the input. The returned
// alerts are the ones actually created this cycle; suppressed duplicates
// and cooldown hits are counted but not returned.
func (s *Service) EvaluateCycle(ctx context.Context, input CycleInput) ([]*alert.Alert, error) {
	rules, err := s.rules.ListEnabled(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list alert rules")
	}

	var created []*alert.Alert
	for _, rule := range rules {
		alerts, err := s.evaluateRule(ctx, rule, input)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RuleFailures.Add(ctx, 1)
			}
			s.logger.Error("alert rule evaluation failed, rule skipped for cycle",
				zap.String("rule_id", rule.RuleID.String()),
				zap.String("rule", rule.Name),
				zap.String("tenant_id", input.TenantID.String()),
				zap.Error(err),
			)
			continue
		}
		created = append(created, alerts...)
	}

	if s.metrics != nil {
		s.metrics.EvaluationCycles.Add(ctx, 1)
	}
	return created, nil
}

func (s *Service) evaluateRule(ctx context.Context, rule *alert.Rule, input CycleInput) ([]*alert.Alert, error) {
	switch rule.ConditionType {
	case alert.ConditionCriticalNonCompliance:
		return s.evaluateCriticalNonCompliance(ctx, rule, input)
	case alert.ConditionDeteriorationTrend:
		return s.evaluateDeteriorationTrend(ctx, rule, input)
	default:
		return nil, errors.NewRuleEvaluationError(rule.RuleID.String(),
			fmt.Sprintf("unknown condition type %q", rule.ConditionType))
	}
}

// evaluateCriticalNonCompliance fires one alert per non-compliant
// requirement whose framework IRR tier is in the rule's threshold set.
// The open-duplicate check is delegated to the repository's atomic
// CreateIfAbsent.
func (s *Service) evaluateCriticalNonCompliance(ctx context.Context, rule *alert.Rule, input CycleInput) ([]*alert.Alert, error) {
	irrByFramework := make(map[compliance.Framework]compliance.IRRLevel, len(input.Scores))
	for _, score := range input.Scores {
		if score.Framework != compliance.FrameworkOverall {
			irrByFramework[score.Framework] = score.IRR()
		}
	}

	var created []*alert.Alert
	for _, result := range input.Results {
		if result.IsCompliant {
			continue
		}
		if result.Framework.Domain() != rule.Domain {
			continue
		}
		if rule.Framework != "" && result.Framework != rule.Framework {
			continue
		}
		irr, ok := irrByFramework[result.Framework]
		if !ok || !rule.MatchesIRR(irr) {
			continue
		}

		a := alert.New(rule.RuleID, input.TenantID, rule.Domain,
			[]uuid.UUID{result.RequirementID}, rule.Severity,
			fmt.Sprintf("%s: non-compliant requirement at IRR %s (%s)", rule.Name, irr, result.Detail))
		s.attachLossEstimate(ctx, a, result, irr, input)

		inserted, err := s.alerts.CreateIfAbsent(ctx, a)
		if err != nil {
			return nil, errors.Wrap(err, "create alert")
		}
		if !inserted {
			if s.metrics != nil {
				s.metrics.RecordAlertSuppressed(ctx, "duplicate")
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.AlertsEmitted.Add(ctx, 1)
		}
		s.logger.Info("alert created",
			zap.String("alert_id", a.AlertID.String()),
			zap.String("rule", rule.Name),
			zap.String("tenant_id", input.TenantID.String()),
			zap.String("severity", string(a.Severity)),
		)
		created = append(created, a)
	}
	return created, nil
}

// evaluateDeteriorationTrend compares the current average compliance
// percentage with the one at the far edge of the rule's time window and
// fires only on a drop at or past the threshold. Repeat fires inside the
// rule cooldown are suppressed atomically in the cooldown store.
func (s *Service) evaluateDeteriorationTrend(ctx context.Context, rule *alert.Rule, input CycleInput) ([]*alert.Alert, error) {
	var current float64
	found := false
	for _, score := range input.Scores {
		if score.Framework == compliance.FrameworkOverall && score.Domain == compliance.DomainGeneral {
			current = score.Percentage
			found = true
		}
	}
	if !found {
		return nil, nil
	}

	past, err := s.results.AveragePercentageAt(ctx, input.TenantID, time.Now().UTC().Add(-rule.TimeWindow()))
	if err != nil {
		return nil, errors.NewRuleEvaluationError(rule.RuleID.String(), "trend baseline lookup failed").WithCause(err)
	}
	if past == 0 {
		// No baseline yet; a trend needs two ends.
		return nil, nil
	}

	drop := past - current
	if drop < rule.ThresholdPercentage || current >= past {
		return nil, nil
	}

	if s.cooldowns != nil && rule.CooldownMinutes > 0 {
		key := cooldownKey(input.TenantID, rule.RuleID)
		allowed, err := s.cooldowns.TrySet(ctx, key, rule.Cooldown())
		if err != nil {
			return nil, errors.NewRuleEvaluationError(rule.RuleID.String(), "cooldown check failed").WithCause(err)
		}
		if !allowed {
			if s.metrics != nil {
				s.metrics.RecordAlertSuppressed(ctx, "cooldown")
			}
			return nil, nil
		}
	}

	a := alert.New(rule.RuleID, input.TenantID, rule.Domain, nil, rule.Severity,
		fmt.Sprintf("%s: compliance dropped %.1f%% over %d days (%.1f%% -> %.1f%%)",
			rule.Name, drop, rule.TimeWindowDays, past, current))

	inserted, err := s.alerts.CreateIfAbsent(ctx, a)
	if err != nil {
		return nil, errors.Wrap(err, "create alert")
	}
	if !inserted {
		if s.metrics != nil {
			s.metrics.RecordAlertSuppressed(ctx, "duplicate")
		}
		return nil, nil
	}
	if s.metrics != nil {
		s.metrics.AlertsEmitted.Add(ctx, 1)
	}
	s.logger.Info("deterioration alert created",
		zap.String("alert_id", a.AlertID.String()),
		zap.String("tenant_id", input.TenantID.String()),
		zap.Float64("drop", drop),
	)
	return []*alert.Alert{a}, nil
}

// attachLossEstimate is best effort; a failed estimate never blocks the
// alert itself.
func (s *Service) attachLossEstimate(ctx context.Context, a *alert.Alert, result *compliance.ValidationResult, irr compliance.IRRLevel, input CycleInput) {
	if s.estimator == nil || s.catalog == nil {
		return
	}
	req, err := s.catalog.GetByID(ctx, result.RequirementID)
	if err != nil {
		s.logger.Warn("loss estimate skipped, requirement lookup failed",
			zap.String("requirement_id", result.RequirementID.String()),
			zap.Error(err),
		)
		return
	}
	impact, err := s.estimator.Estimate(ctx, input.TenantID, req.PredicateRef, input.Jurisdiction, input.Sector,
		economic.Severity(a.Severity), irr)
	if err != nil {
		s.logger.Warn("loss estimate skipped",
			zap.String("validator_id", req.PredicateRef),
			zap.Error(err),
		)
		return
	}
	loss := impact.TotalImpact
	a.EstimatedLoss = &loss
}

// UpdateStatus drives a user-requested alert lifecycle transition.
func (s *Service) UpdateStatus(ctx context.Context, alertID uuid.UUID, target alert.Status) (*alert.Alert, error) {
	a, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, errors.Wrap(err, "load alert")
	}
	if err := a.Transition(target); err != nil {
		return nil, err
	}
	if err := s.alerts.UpdateStatus(ctx, alertID, target); err != nil {
		return nil, errors.Wrap(err, "update alert status")
	}
	s.logger.Info("alert transitioned",
		zap.String("alert_id", alertID.String()),
		zap.String("status", string(target)),
	)
	return a, nil
}

func cooldownKey(tenantID, ruleID uuid.UUID) string {
	return fmt.Sprintf("alert:cooldown:%s:%s", tenantID, ruleID)
}
