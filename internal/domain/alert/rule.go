package alert

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
)

// ConditionType selects which evaluation strategy a rule uses.
type ConditionType string

const (
	// ConditionCriticalNonCompliance fires per non-compliant requirement
	// whose IRR tier is in the rule's threshold set.
	ConditionCriticalNonCompliance ConditionType = "CRITICAL_NON_COMPLIANCE"

	// ConditionDeteriorationTrend fires when the average compliance
	// percentage drops by more than the rule threshold over the rule's
	// time window.
	ConditionDeteriorationTrend ConditionType = "DETERIORATION_TREND"
)

var ruleValidator = validator.New(validator.WithRequiredStructEnabled())

// Rule is the static configuration driving alert evaluation. Rules are
// validated once at load time and evaluated repeatedly.
type Rule struct {
	RuleID                 uuid.UUID             `json:"rule_id" validate:"required"`
	Name                   string                `json:"name" validate:"required"`
	Domain                 compliance.Domain     `json:"domain" validate:"required"`
	Framework              compliance.Framework  `json:"framework,omitempty"`
	IRRThresholds          []compliance.IRRLevel `json:"irr_thresholds" validate:"dive,oneof=R1 R2 R3 R4"`
	Severity               Severity              `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	ConditionType          ConditionType         `json:"condition_type" validate:"required,oneof=CRITICAL_NON_COMPLIANCE DETERIORATION_TREND"`
	ThresholdPercentage    float64               `json:"threshold_percentage" validate:"gte=0,lte=100"`
	TimeWindowDays         int                   `json:"time_window_days" validate:"gte=0"`
	ConsecutiveOccurrences int                   `json:"consecutive_occurrences" validate:"gte=0"`
	CooldownMinutes        int                   `json:"cooldown_minutes" validate:"gte=0"`
	RequiresAck            bool                  `json:"requires_ack"`
	Enabled                bool                  `json:"enabled"`
}

// Validate checks the rule definition against its constraints.
func (r *Rule) Validate() error {
	return ruleValidator.Struct(r)
}

// Cooldown returns the suppression window as a duration.
func (r *Rule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// TimeWindow returns the trend comparison window as a duration.
func (r *Rule) TimeWindow() time.Duration {
	return time.Duration(r.TimeWindowDays) * 24 * time.Hour
}

// MatchesIRR reports whether the tier is in the rule's threshold set. An
// empty set matches nothing.
func (r *Rule) MatchesIRR(level compliance.IRRLevel) bool {
	for _, t := range r.IRRThresholds {
		if t == level {
			return true
		}
	}
	return false
}
