package risk

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists risk register entries.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, riskID uuid.UUID) (*Entry, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Entry, error)
	ListOpenByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Entry, error)
	Update(ctx context.Context, entry *Entry) error
}

// MappingRepository resolves validator-to-risk-category mappings.
type MappingRepository interface {
	GetActiveByValidator(ctx context.Context, validatorID string) (*ValidatorRiskMapping, error)
}

// ConfigStore provides tenant risk configurations with lazy defaults.
type ConfigStore interface {
	// GetOrCreateDefault returns the tenant's configuration, creating and
	// persisting the default one on first access.
	GetOrCreateDefault(ctx context.Context, tenantID uuid.UUID) (*TenantConfig, error)
	Save(ctx context.Context, cfg *TenantConfig) error
}
