package scoring

import (
	"context"

	"github.com/google/uuid"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
)

// ScoreCache stores the most recent score set per tenant so dashboards
// and alert rules can read scores without replaying result history.
type ScoreCache interface {
	Put(ctx context.Context, tenantID uuid.UUID, scores []compliance.ComplianceScore) error
	// Get returns the cached scores and whether the cache held an entry.
	Get(ctx context.Context, tenantID uuid.UUID) ([]compliance.ComplianceScore, bool, error)
}
