package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/economic"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
)

// FactorRepository implements economic.FactorRepository over the seeded
// cost factor table.
type FactorRepository struct {
	db *pgxpool.Pool
}

// NewFactorRepository creates a PostgreSQL cost factor repository.
func NewFactorRepository(db *pgxpool.Pool) *FactorRepository {
	return &FactorRepository{db: db}
}

func (r *FactorRepository) Lookup(ctx context.Context, validatorID, jurisdiction, sector string) (*economic.Factor, error) {
	var f economic.Factor
	err := r.db.QueryRow(ctx, `
		SELECT validator_id, jurisdiction, sector, base_cost, penalty_base,
		       framework_multiplier, currency
		FROM economic_factors
		WHERE validator_id = $1 AND jurisdiction = $2 AND sector = $3
	`, validatorID, jurisdiction, sector).Scan(
		&f.ValidatorID, &f.Jurisdiction, &f.Sector, &f.BaseCost,
		&f.PenaltyBase, &f.FrameworkMultiplier, &f.Currency)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError("economic factor")
		}
		return nil, errors.NewInternalError("failed to load economic factor").WithCause(err)
	}
	return &f, nil
}

// HistoryRepository implements economic.HistoryRepository over the
// monthly impact aggregate table. Record feeds the aggregates; each
// estimate recorded during a cycle is summed into its tenant month.
type HistoryRepository struct {
	db *pgxpool.Pool
}

// NewHistoryRepository creates a PostgreSQL impact history repository.
func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// MonthlyTotals returns up to the last `months` monthly aggregates in
// chronological order.
func (r *HistoryRepository) MonthlyTotals(ctx context.Context, tenantID uuid.UUID, months int) ([]economic.HistoryPoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT month, total_impact
		FROM (
			SELECT month, total_impact
			FROM economic_impact_history
			WHERE tenant_id = $1
			ORDER BY month DESC
			LIMIT $2
		) recent
		ORDER BY month
	`, tenantID, months)
	if err != nil {
		return nil, errors.NewInternalError("failed to list impact history").WithCause(err)
	}
	defer rows.Close()

	var out []economic.HistoryPoint
	for rows.Next() {
		var p economic.HistoryPoint
		if err := rows.Scan(&p.Month, &p.TotalImpact); err != nil {
			return nil, errors.NewInternalError("failed to scan impact history").WithCause(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Record adds an impact amount into the tenant's aggregate for the month
// containing occurredAt.
func (r *HistoryRepository) Record(ctx context.Context, tenantID uuid.UUID, occurredAt time.Time, impact float64) error {
	month := time.Date(occurredAt.Year(), occurredAt.Month(), 1, 0, 0, 0, 0, time.UTC)
	_, err := r.db.Exec(ctx, `
		INSERT INTO economic_impact_history (tenant_id, month, total_impact)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, month) DO UPDATE SET
			total_impact = economic_impact_history.total_impact + EXCLUDED.total_impact
	`, tenantID, month, impact)
	if err != nil {
		return errors.NewInternalError("failed to record impact history").WithCause(err)
	}
	return nil
}
