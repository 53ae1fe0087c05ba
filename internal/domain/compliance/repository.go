package compliance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CatalogRepository provides read access to the requirement catalog.
// The catalog is seeded at deployment; there is deliberately no write path.
type CatalogRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Requirement, error)
	ListByFramework(ctx context.Context, framework Framework) ([]*Requirement, error)
	ListFrameworks(ctx context.Context) ([]Framework, error)
}

// ResultRepository persists validation results as append-only history.
type ResultRepository interface {
	Save(ctx context.Context, result *ValidationResult) error
	SaveBatch(ctx context.Context, results []*ValidationResult) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]*ValidationResult, error)
	ListByTenantAndFramework(ctx context.Context, tenantID uuid.UUID, framework Framework, since time.Time) ([]*ValidationResult, error)
	// AveragePercentageAt returns the mean compliance percentage across
	// the tenant's results in the 24h window ending at the given instant.
	// Used by deterioration-trend alert rules.
	AveragePercentageAt(ctx context.Context, tenantID uuid.UUID, at time.Time) (float64, error)
}
