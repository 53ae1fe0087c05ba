package compliance

import (
	"sort"

	"github.com/google/uuid"
)

// MaxScore is the top of the 0-4 compliance score scale.
const MaxScore = 4.0

// ComplianceScore is the per-framework (or per-domain, or overall) rollup
// of validation results. Scores are derived on demand from results and are
// never independently persisted state.
type ComplianceScore struct {
	TenantID              uuid.UUID `json:"tenant_id"`
	Framework             Framework `json:"framework"`
	Domain                Domain    `json:"domain"`
	TotalRequirements     int       `json:"total_requirements"`
	CompliantRequirements int       `json:"compliant_requirements"`
	Percentage            float64   `json:"percentage"`
	Score                 float64   `json:"score"`
}

// IRR buckets the score's percentage into its risk tier.
func (s ComplianceScore) IRR() IRRLevel {
	return IRRFromPercentage(s.Percentage)
}

func newScore(tenantID uuid.UUID, fw Framework, dom Domain, compliant, total int) ComplianceScore {
	return ComplianceScore{
		TenantID:              tenantID,
		Framework:             fw,
		Domain:                dom,
		TotalRequirements:     total,
		CompliantRequirements: compliant,
		Percentage:            100.0 * float64(compliant) / float64(total),
		Score:                 MaxScore * float64(compliant) / float64(total),
	}
}

// ComputeScores aggregates validation results into compliance scores:
// one row per framework present in the input, one row per domain that two
// or more frameworks roll into, and a final OVERALL row built from summed
// counts rather than averaged percentages so small frameworks do not bias
// the rollup. Zero-total groups are omitted entirely.
func ComputeScores(tenantID uuid.UUID, results []*ValidationResult) []ComplianceScore {
	type counts struct {
		compliant int
		total     int
	}
	byFramework := make(map[Framework]*counts)
	for _, r := range results {
		c := byFramework[r.Framework]
		if c == nil {
			c = &counts{}
			byFramework[r.Framework] = c
		}
		c.total++
		if r.IsCompliant {
			c.compliant++
		}
	}
	if len(byFramework) == 0 {
		return nil
	}

	frameworks := make([]Framework, 0, len(byFramework))
	for fw := range byFramework {
		frameworks = append(frameworks, fw)
	}
	sort.Slice(frameworks, func(i, j int) bool { return frameworks[i] < frameworks[j] })

	scores := make([]ComplianceScore, 0, len(frameworks)+2)
	byDomain := make(map[Domain]*counts)
	domainMembers := make(map[Domain]int)
	allCompliant, allTotal := 0, 0

	for _, fw := range frameworks {
		c := byFramework[fw]
		scores = append(scores, newScore(tenantID, fw, fw.Domain(), c.compliant, c.total))

		dom := fw.Domain()
		dc := byDomain[dom]
		if dc == nil {
			dc = &counts{}
			byDomain[dom] = dc
		}
		dc.compliant += c.compliant
		dc.total += c.total
		domainMembers[dom]++

		allCompliant += c.compliant
		allTotal += c.total
	}

	// Domain rollups only where more than one framework feeds the domain
	// (e.g. Open Insurance = Solvency II + SUSEP).
	domains := make([]Domain, 0, len(byDomain))
	for dom, members := range domainMembers {
		if members > 1 {
			domains = append(domains, dom)
		}
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
	for _, dom := range domains {
		dc := byDomain[dom]
		scores = append(scores, newScore(tenantID, FrameworkOverall, dom, dc.compliant, dc.total))
	}

	scores = append(scores, newScore(tenantID, FrameworkOverall, DomainGeneral, allCompliant, allTotal))
	return scores
}
