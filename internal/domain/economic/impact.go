package economic

import (
	"time"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/values"
)

// indirectCostRatio is the fixed ratio of indirect to direct cost.
const indirectCostRatio = 0.5

// Severity grades a non-compliance finding for cost estimation.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Multiplier returns the cost multiplier for the severity. Unknown
// severities fall back to 1.0.
func (s Severity) Multiplier() float64 {
	switch s {
	case SeverityCritical:
		return 5.0
	case SeverityHigh:
		return 3.0
	case SeverityMedium:
		return 1.5
	case SeverityLow:
		return 0.7
	default:
		return 1.0
	}
}

// Factor is one row of the per-jurisdiction/sector cost factor table.
// Factors are configuration data; estimates fall back to sector defaults
// when no factor matches.
type Factor struct {
	ValidatorID         string  `json:"validator_id"`
	Jurisdiction        string  `json:"jurisdiction"`
	Sector              string  `json:"sector"`
	BaseCost            float64 `json:"base_cost"`
	PenaltyBase         float64 `json:"penalty_base"`
	FrameworkMultiplier float64 `json:"framework_multiplier"`
	Currency            string  `json:"currency"`
}

// Sector default base costs, applied when no factor-table row matches.
var sectorDefaultBaseCosts = map[string]float64{
	"insurance":  75000,
	"health":     50000,
	"government": 100000,
}

// fallbackBaseCost applies to sectors without a configured default.
const fallbackBaseCost = 50000

// DefaultBaseCost returns the default base cost for a sector.
func DefaultBaseCost(sector string) float64 {
	if c, ok := sectorDefaultBaseCosts[sector]; ok {
		return c
	}
	return fallbackBaseCost
}

// Impact is an on-demand economic impact estimate for a non-compliance
// finding. It is always derivable from the risk register and factor
// tables; it is not an independent source of truth.
type Impact struct {
	ValidatorID       string       `json:"validator_id"`
	Jurisdiction      string       `json:"jurisdiction"`
	Sector            string       `json:"sector"`
	Severity          Severity     `json:"severity"`
	DirectCost        values.Money `json:"direct_cost"`
	IndirectCost      values.Money `json:"indirect_cost"`
	RegulatoryPenalty values.Money `json:"regulatory_penalty"`
	TotalImpact       values.Money `json:"total_impact"`
	Currency          string       `json:"currency"`
	EstimatedAt       time.Time    `json:"estimated_at"`
}

// ComputeImpact derives the full impact breakdown from a base cost and a
// penalty base: direct = base x severity multiplier, indirect = direct x
// 0.5, total = direct + indirect + penalty. The arithmetic is exact over
// decimals.
func ComputeImpact(validatorID, jurisdiction, sector string, severity Severity, baseCost, penaltyBase values.Money) (*Impact, error) {
	mult := severity.Multiplier()

	direct := baseCost.MulFloat(mult)
	indirect := direct.MulFloat(indirectCostRatio)
	penalty := penaltyBase.MulFloat(mult)

	total, err := direct.Add(indirect)
	if err != nil {
		return nil, err
	}
	total, err = total.Add(penalty)
	if err != nil {
		return nil, err
	}

	return &Impact{
		ValidatorID:       validatorID,
		Jurisdiction:      jurisdiction,
		Sector:            sector,
		Severity:          severity,
		DirectCost:        direct,
		IndirectCost:      indirect,
		RegulatoryPenalty: penalty,
		TotalImpact:       total,
		Currency:          baseCost.Currency(),
		EstimatedAt:       time.Now().UTC(),
	}, nil
}
