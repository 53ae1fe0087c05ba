package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
)

// RequirementRepository implements compliance.CatalogRepository over the
// seeded requirement catalog.
type RequirementRepository struct {
	db *pgxpool.Pool
}

// NewRequirementRepository creates a PostgreSQL requirement repository.
func NewRequirementRepository(db *pgxpool.Pool) *RequirementRepository {
	return &RequirementRepository{db: db}
}

const requirementColumns = `
	id, framework_id, name, description, predicate_ref,
	required_auth_level, required_auth_methods, irr_threshold,
	is_mandatory, applies_to, created_at`

func (r *RequirementRepository) GetByID(ctx context.Context, id uuid.UUID) (*compliance.Requirement, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+requirementColumns+`
		FROM compliance_requirements
		WHERE id = $1
	`, id)

	req, err := scanRequirement(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrRequirementNotFound
		}
		return nil, errors.NewInternalError("failed to load requirement").WithCause(err)
	}
	return req, nil
}

func (r *RequirementRepository) ListByFramework(ctx context.Context, framework compliance.Framework) ([]*compliance.Requirement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+requirementColumns+`
		FROM compliance_requirements
		WHERE framework_id = $1
		ORDER BY name
	`, string(framework))
	if err != nil {
		return nil, errors.NewInternalError("failed to list requirements").WithCause(err)
	}
	defer rows.Close()

	var out []*compliance.Requirement
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan requirement").WithCause(err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *RequirementRepository) ListFrameworks(ctx context.Context) ([]compliance.Framework, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT framework_id
		FROM compliance_requirements
		ORDER BY framework_id
	`)
	if err != nil {
		return nil, errors.NewInternalError("failed to list frameworks").WithCause(err)
	}
	defer rows.Close()

	var out []compliance.Framework
	for rows.Next() {
		var fw string
		if err := rows.Scan(&fw); err != nil {
			return nil, errors.NewInternalError("failed to scan framework").WithCause(err)
		}
		out = append(out, compliance.Framework(fw))
	}
	return out, rows.Err()
}

func scanRequirement(row pgx.Row) (*compliance.Requirement, error) {
	var req compliance.Requirement
	err := row.Scan(
		&req.ID, &req.FrameworkID, &req.Name, &req.Description, &req.PredicateRef,
		&req.RequiredAuthLevel, &req.RequiredAuthMethods, &req.IRRThreshold,
		&req.IsMandatory, &req.AppliesTo, &req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
