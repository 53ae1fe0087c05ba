package risk

import (
	"time"

	"github.com/google/uuid"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
)

// gridScale maps the 4x4 impact/probability grid onto a 0-100 range
// (4 * 4 * 6.25 = 100).
const gridScale = 6.25

// ImpactLevel grades the business impact of a non-compliance finding.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "LOW"
	ImpactMedium   ImpactLevel = "MEDIUM"
	ImpactHigh     ImpactLevel = "HIGH"
	ImpactCritical ImpactLevel = "CRITICAL"
)

// Value returns the grid weight of the impact level.
func (l ImpactLevel) Value() int {
	switch l {
	case ImpactLow:
		return 1
	case ImpactMedium:
		return 2
	case ImpactHigh:
		return 3
	case ImpactCritical:
		return 4
	default:
		return 0
	}
}

// ProbabilityLevel grades the likelihood a finding materializes.
type ProbabilityLevel string

const (
	ProbabilityLow      ProbabilityLevel = "LOW"
	ProbabilityMedium   ProbabilityLevel = "MEDIUM"
	ProbabilityHigh     ProbabilityLevel = "HIGH"
	ProbabilityVeryHigh ProbabilityLevel = "VERY_HIGH"
)

// Value returns the grid weight of the probability level.
func (l ProbabilityLevel) Value() int {
	switch l {
	case ProbabilityLow:
		return 1
	case ProbabilityMedium:
		return 2
	case ProbabilityHigh:
		return 3
	case ProbabilityVeryHigh:
		return 4
	default:
		return 0
	}
}

// ProbabilityFromScore buckets a weighted compliance score (compliance
// percentage scaled by the mapping's probability factor) into a
// probability level. A high compliance score means low probability.
func ProbabilityFromScore(weightedScore float64) ProbabilityLevel {
	switch {
	case weightedScore >= 90:
		return ProbabilityLow
	case weightedScore >= 75:
		return ProbabilityMedium
	case weightedScore >= 50:
		return ProbabilityHigh
	default:
		return ProbabilityVeryHigh
	}
}

// ComputeScore places an impact/probability pair on the 0-100 scale.
func ComputeScore(impact ImpactLevel, probability ProbabilityLevel) float64 {
	return float64(impact.Value()) * float64(probability.Value()) * gridScale
}

// Status is the lifecycle state of a risk register entry. Transitions are
// externally driven (human or remediation workflow); the scoring pipeline
// only ever creates entries in StatusIdentified.
type Status string

const (
	StatusIdentified Status = "IDENTIFIED"
	StatusAssessed   Status = "ASSESSED"
	StatusTreated    Status = "TREATED"
	StatusMonitored  Status = "MONITORED"
	StatusClosed     Status = "CLOSED"
)

var allowedTransitions = map[Status][]Status{
	StatusIdentified: {StatusAssessed},
	StatusAssessed:   {StatusTreated},
	StatusTreated:    {StatusMonitored},
	StatusMonitored:  {StatusClosed},
	StatusClosed:     {},
}

// CanTransitionTo reports whether the status may move to the target state.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TreatmentRecord is one step in an entry's treatment history.
type TreatmentRecord struct {
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	Actor      string    `json:"actor"`
	Notes      string    `json:"notes"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ValidatorRiskMapping links a validator (predicate reference) to a risk
// category. Only non-compliant results with an active mapping generate
// risk entries.
type ValidatorRiskMapping struct {
	ID                uuid.UUID   `json:"id"`
	ValidatorID       string      `json:"validator_id"`
	Category          string      `json:"category"`
	ImpactLevel       ImpactLevel `json:"impact_level"`
	ProbabilityFactor float64     `json:"probability_factor"`
	Active            bool        `json:"active"`
}

// Entry is one row of the tenant risk register. Entries are an
// append-only risk log; the translator never deduplicates against
// existing open entries for the same requirement.
type Entry struct {
	RiskID           uuid.UUID         `json:"risk_id"`
	TenantID         uuid.UUID         `json:"tenant_id"`
	ValidationID     uuid.UUID         `json:"validation_id"`
	Category         string            `json:"category"`
	ImpactLevel      ImpactLevel       `json:"impact_level"`
	ProbabilityLevel ProbabilityLevel  `json:"probability_level"`
	RiskScore        float64           `json:"risk_score"`
	InherentScore    float64           `json:"inherent_score"`
	ResidualScore    float64           `json:"residual_score"`
	Status           Status            `json:"status"`
	TreatmentHistory []TreatmentRecord `json:"treatment_history"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewEntry creates an identified risk register entry with its scores
// already placed on the 0-100 grid. controlEffectiveness is the residual
// multiplier from the tenant's risk configuration.
func NewEntry(tenantID, validationID uuid.UUID, category string, impact ImpactLevel, probability ProbabilityLevel, controlEffectiveness float64) *Entry {
	now := time.Now().UTC()
	inherent := ComputeScore(impact, probability)
	return &Entry{
		RiskID:           uuid.New(),
		TenantID:         tenantID,
		ValidationID:     validationID,
		Category:         category,
		ImpactLevel:      impact,
		ProbabilityLevel: probability,
		RiskScore:        inherent,
		InherentScore:    inherent,
		ResidualScore:    inherent * controlEffectiveness,
		Status:           StatusIdentified,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Transition moves the entry to the target status and appends a treatment
// record. Invalid transitions are rejected.
func (e *Entry) Transition(target Status, actor, notes string) error {
	if !e.Status.CanTransitionTo(target) {
		return errors.NewBusinessError("INVALID_STATUS_TRANSITION",
			"Status transition not allowed").WithDetails(map[string]interface{}{
			"from": string(e.Status),
			"to":   string(target),
		})
	}
	now := time.Now().UTC()
	e.TreatmentHistory = append(e.TreatmentHistory, TreatmentRecord{
		FromStatus: e.Status,
		ToStatus:   target,
		Actor:      actor,
		Notes:      notes,
		OccurredAt: now,
	})
	e.Status = target
	e.UpdatedAt = now
	return nil
}

// IsOpen reports whether the entry is still in a non-terminal status.
func (e *Entry) IsOpen() bool {
	return e.Status != StatusClosed
}
