package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
)

// Tenant is one onboarded tenant as the runner sees it: which sector and
// jurisdiction it operates in, and which frameworks it is evaluated
// against each cycle.
type Tenant struct {
	TenantID     uuid.UUID              `json:"tenant_id"`
	Name         string                 `json:"name"`
	Sector       string                 `json:"sector"`
	Jurisdiction string                 `json:"jurisdiction"`
	Frameworks   []compliance.Framework `json:"frameworks"`
	Active       bool                   `json:"active"`
}

// TenantRepository reads the tenant roster driving each evaluation cycle.
type TenantRepository struct {
	db *pgxpool.Pool
}

// NewTenantRepository creates a PostgreSQL tenant repository.
func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

// ListActive returns all tenants currently enrolled in evaluation.
func (r *TenantRepository) ListActive(ctx context.Context) ([]*Tenant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT tenant_id, name, sector, jurisdiction, frameworks, active
		FROM tenants
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, errors.NewInternalError("failed to list tenants").WithCause(err)
	}
	defer rows.Close()

	var out []*Tenant
	for rows.Next() {
		var t Tenant
		var frameworks []string
		err := rows.Scan(&t.TenantID, &t.Name, &t.Sector, &t.Jurisdiction, &frameworks, &t.Active)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan tenant").WithCause(err)
		}
		for _, fw := range frameworks {
			t.Frameworks = append(t.Frameworks, compliance.Framework(fw))
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
