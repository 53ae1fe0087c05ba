package reporting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
)

// Payload is the report input handed to the external report generator.
// Rendering (PDF, HTML, distribution) happens outside this system; the
// payload is the contract.
type Payload struct {
	TenantID    uuid.UUID                      `json:"tenant_id"`
	GeneratedAt time.Time                      `json:"generated_at"`
	PeriodStart time.Time                      `json:"period_start"`
	PeriodEnd   time.Time                      `json:"period_end"`
	Results     []*compliance.ValidationResult `json:"results"`
	Scores      []compliance.ComplianceScore   `json:"scores"`
}

// Service assembles report payloads from validation history and derived
// scores.
type Service struct {
	logger  *zap.Logger
	results compliance.ResultRepository
}

// NewService creates a reporting service.
func NewService(logger *zap.Logger, results compliance.ResultRepository) *Service {
	return &Service{logger: logger, results: results}
}

// Build assembles the payload for a tenant over a period, recomputing
// scores from the period's results so report figures always match the
// result rows they ship with.
func (s *Service) Build(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) (*Payload, error) {
	if !periodEnd.After(periodStart) {
		return nil, errors.NewValidationError("INVALID_PERIOD", "Report period end must be after start")
	}

	results, err := s.results.ListByTenant(ctx, tenantID, periodStart)
	if err != nil {
		return nil, errors.Wrap(err, "list validation results")
	}
	inPeriod := make([]*compliance.ValidationResult, 0, len(results))
	for _, r := range results {
		if !r.EvaluatedAt.After(periodEnd) {
			inPeriod = append(inPeriod, r)
		}
	}

	payload := &Payload{
		TenantID:    tenantID,
		GeneratedAt: time.Now().UTC(),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Results:     inPeriod,
		Scores:      compliance.ComputeScores(tenantID, inPeriod),
	}

	s.logger.Info("report payload built",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("results", len(payload.Results)),
		zap.Int("score_groups", len(payload.Scores)),
	)
	return payload, nil
}

// Render marshals the payload for handoff.
func (p *Payload) Render() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
