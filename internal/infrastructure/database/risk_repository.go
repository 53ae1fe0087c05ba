package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/risk"
)

// RiskRepository implements risk.Repository. Treatment history is stored
// as a jsonb column alongside the entry.
type RiskRepository struct {
	db *pgxpool.Pool
}

// NewRiskRepository creates a PostgreSQL risk register repository.
func NewRiskRepository(db *pgxpool.Pool) *RiskRepository {
	return &RiskRepository{db: db}
}

const riskColumns = `
	risk_id, tenant_id, validation_id, category, impact_level,
	probability_level, risk_score, inherent_score, residual_score,
	status, treatment_history, created_at, updated_at`

func (r *RiskRepository) Save(ctx context.Context, entry *risk.Entry) error {
	history, err := json.Marshal(entry.TreatmentHistory)
	if err != nil {
		return errors.NewInternalError("failed to encode treatment history").WithCause(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO risk_register (`+riskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, entry.RiskID, entry.TenantID, entry.ValidationID, entry.Category,
		string(entry.ImpactLevel), string(entry.ProbabilityLevel),
		entry.RiskScore, entry.InherentScore, entry.ResidualScore,
		string(entry.Status), history, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return errors.NewInternalError("failed to insert risk entry").WithCause(err)
	}
	return nil
}

func (r *RiskRepository) GetByID(ctx context.Context, riskID uuid.UUID) (*risk.Entry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+riskColumns+`
		FROM risk_register
		WHERE risk_id = $1
	`, riskID)

	entry, err := scanRiskEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrRiskEntryNotFound
		}
		return nil, errors.NewInternalError("failed to load risk entry").WithCause(err)
	}
	return entry, nil
}

func (r *RiskRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*risk.Entry, error) {
	return r.list(ctx, `
		SELECT`+riskColumns+`
		FROM risk_register
		WHERE tenant_id = $1
		ORDER BY created_at
	`, tenantID)
}

func (r *RiskRepository) ListOpenByTenant(ctx context.Context, tenantID uuid.UUID) ([]*risk.Entry, error) {
	return r.list(ctx, `
		SELECT`+riskColumns+`
		FROM risk_register
		WHERE tenant_id = $1 AND status != $2
		ORDER BY created_at
	`, tenantID, string(risk.StatusClosed))
}

func (r *RiskRepository) Update(ctx context.Context, entry *risk.Entry) error {
	history, err := json.Marshal(entry.TreatmentHistory)
	if err != nil {
		return errors.NewInternalError("failed to encode treatment history").WithCause(err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE risk_register
		SET status = $2, treatment_history = $3, updated_at = $4
		WHERE risk_id = $1
	`, entry.RiskID, string(entry.Status), history, entry.UpdatedAt)
	if err != nil {
		return errors.NewInternalError("failed to update risk entry").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrRiskEntryNotFound
	}
	return nil
}

func (r *RiskRepository) list(ctx context.Context, query string, args ...interface{}) ([]*risk.Entry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternalError("failed to list risk entries").WithCause(err)
	}
	defer rows.Close()

	var out []*risk.Entry
	for rows.Next() {
		entry, err := scanRiskEntry(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan risk entry").WithCause(err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanRiskEntry(row pgx.Row) (*risk.Entry, error) {
	var entry risk.Entry
	var history []byte
	err := row.Scan(
		&entry.RiskID, &entry.TenantID, &entry.ValidationID, &entry.Category,
		&entry.ImpactLevel, &entry.ProbabilityLevel,
		&entry.RiskScore, &entry.InherentScore, &entry.ResidualScore,
		&entry.Status, &history, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &entry.TreatmentHistory); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}

// MappingRepository implements risk.MappingRepository over the seeded
// validator mapping table.
type MappingRepository struct {
	db *pgxpool.Pool
}

// NewMappingRepository creates a PostgreSQL validator mapping repository.
func NewMappingRepository(db *pgxpool.Pool) *MappingRepository {
	return &MappingRepository{db: db}
}

func (r *MappingRepository) GetActiveByValidator(ctx context.Context, validatorID string) (*risk.ValidatorRiskMapping, error) {
	var m risk.ValidatorRiskMapping
	err := r.db.QueryRow(ctx, `
		SELECT id, validator_id, category, impact_level, probability_factor, active
		FROM risk_mappings
		WHERE validator_id = $1 AND active
	`, validatorID).Scan(&m.ID, &m.ValidatorID, &m.Category, &m.ImpactLevel, &m.ProbabilityFactor, &m.Active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewMappingNotFoundError(validatorID)
		}
		return nil, errors.NewInternalError("failed to load validator mapping").WithCause(err)
	}
	return &m, nil
}

// ConfigStore implements risk.ConfigStore with lazy default creation.
type ConfigStore struct {
	db *pgxpool.Pool
}

// NewConfigStore creates a PostgreSQL tenant risk configuration store.
func NewConfigStore(db *pgxpool.Pool) *ConfigStore {
	return &ConfigStore{db: db}
}

// GetOrCreateDefault inserts the default configuration on first access.
// The insert uses ON CONFLICT DO NOTHING so concurrent first accesses for
// the same tenant converge on a single row.
func (s *ConfigStore) GetOrCreateDefault(ctx context.Context, tenantID uuid.UUID) (*risk.TenantConfig, error) {
	def := risk.NewDefaultTenantConfig(tenantID)
	_, err := s.db.Exec(ctx, `
		INSERT INTO risk_tenant_configs (
			tenant_id, risk_appetite, control_effectiveness, category_weights, created_at, updated_at
		) VALUES ($1, $2, $3, '{}', $4, $5)
		ON CONFLICT (tenant_id) DO NOTHING
	`, def.TenantID, def.RiskAppetite, def.ControlEffectiveness, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return nil, errors.NewInternalError("failed to create default risk config").WithCause(err)
	}

	var cfg risk.TenantConfig
	var weights []byte
	err = s.db.QueryRow(ctx, `
		SELECT tenant_id, risk_appetite, control_effectiveness, category_weights, created_at, updated_at
		FROM risk_tenant_configs
		WHERE tenant_id = $1
	`, tenantID).Scan(&cfg.TenantID, &cfg.RiskAppetite, &cfg.ControlEffectiveness, &weights, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, errors.NewInternalError("failed to load risk config").WithCause(err)
	}
	if len(weights) > 0 {
		if err := json.Unmarshal(weights, &cfg.CategoryWeights); err != nil {
			return nil, errors.NewInternalError("failed to decode category weights").WithCause(err)
		}
	}
	return &cfg, nil
}

func (s *ConfigStore) Save(ctx context.Context, cfg *risk.TenantConfig) error {
	weights, err := json.Marshal(cfg.CategoryWeights)
	if err != nil {
		return errors.NewInternalError("failed to encode category weights").WithCause(err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO risk_tenant_configs (
			tenant_id, risk_appetite, control_effectiveness, category_weights, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id) DO UPDATE SET
			risk_appetite = EXCLUDED.risk_appetite,
			control_effectiveness = EXCLUDED.control_effectiveness,
			category_weights = EXCLUDED.category_weights,
			updated_at = EXCLUDED.updated_at
	`, cfg.TenantID, cfg.RiskAppetite, cfg.ControlEffectiveness, weights, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return errors.NewInternalError("failed to save risk config").WithCause(err)
	}
	return nil
}
