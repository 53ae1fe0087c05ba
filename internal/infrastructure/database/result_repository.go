package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
)

// ResultRepository implements compliance.ResultRepository. Result rows
// are append-only history; there is no update path.
type ResultRepository struct {
	db *pgxpool.Pool
}

// NewResultRepository creates a PostgreSQL validation result repository.
func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

const insertResultSQL = `
	INSERT INTO validation_results (
		id, requirement_id, tenant_id, framework, is_compliant, detail, evaluated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (r *ResultRepository) Save(ctx context.Context, result *compliance.ValidationResult) error {
	_, err := r.db.Exec(ctx, insertResultSQL,
		result.ID, result.RequirementID, result.TenantID, string(result.Framework),
		result.IsCompliant, result.Detail, result.EvaluatedAt)
	if err != nil {
		return errors.NewInternalError("failed to insert validation result").WithCause(err)
	}
	return nil
}

func (r *ResultRepository) SaveBatch(ctx context.Context, results []*compliance.ValidationResult) error {
	batch := &pgx.Batch{}
	for _, result := range results {
		batch.Queue(insertResultSQL,
			result.ID, result.RequirementID, result.TenantID, string(result.Framework),
			result.IsCompliant, result.Detail, result.EvaluatedAt)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()
	for range results {
		if _, err := br.Exec(); err != nil {
			return errors.NewInternalError("failed to insert validation result batch").WithCause(err)
		}
	}
	return nil
}

func (r *ResultRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]*compliance.ValidationResult, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, requirement_id, tenant_id, framework, is_compliant, detail, evaluated_at
		FROM validation_results
		WHERE tenant_id = $1 AND evaluated_at >= $2
		ORDER BY evaluated_at
	`, tenantID, since)
	if err != nil {
		return nil, errors.NewInternalError("failed to list validation results").WithCause(err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func (r *ResultRepository) ListByTenantAndFramework(ctx context.Context, tenantID uuid.UUID, framework compliance.Framework, since time.Time) ([]*compliance.ValidationResult, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, requirement_id, tenant_id, framework, is_compliant, detail, evaluated_at
		FROM validation_results
		WHERE tenant_id = $1 AND framework = $2 AND evaluated_at >= $3
		ORDER BY evaluated_at
	`, tenantID, string(framework), since)
	if err != nil {
		return nil, errors.NewInternalError("failed to list validation results").WithCause(err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// AveragePercentageAt returns the mean compliance percentage across the
// tenant's results in the 24h window ending at the given instant. Zero
// means no results in the window.
func (r *ResultRepository) AveragePercentageAt(ctx context.Context, tenantID uuid.UUID, at time.Time) (float64, error) {
	var pct *float64
	err := r.db.QueryRow(ctx, `
		SELECT AVG(CASE WHEN is_compliant THEN 100.0 ELSE 0.0 END)
		FROM validation_results
		WHERE tenant_id = $1 AND evaluated_at > $2 AND evaluated_at <= $3
	`, tenantID, at.Add(-24*time.Hour), at).Scan(&pct)
	if err != nil {
		return 0, errors.NewInternalError("failed to compute average percentage").WithCause(err)
	}
	if pct == nil {
		return 0, nil
	}
	return *pct, nil
}

func scanResults(rows pgx.Rows) ([]*compliance.ValidationResult, error) {
	var out []*compliance.ValidationResult
	for rows.Next() {
		var result compliance.ValidationResult
		err := rows.Scan(&result.ID, &result.RequirementID, &result.TenantID,
			&result.Framework, &result.IsCompliant, &result.Detail, &result.EvaluatedAt)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan validation result").WithCause(err)
		}
		out = append(out, &result)
	}
	return out, rows.Err()
}
