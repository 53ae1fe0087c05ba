package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/alert"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/values"
)

// AlertRepository implements alert.Repository. Duplicate suppression
// rides on a partial unique index over dedup_key for rows where
// resolved_at is null, so the existence check and the insert are a
// single atomic statement.
type AlertRepository struct {
	db *pgxpool.Pool
}

// NewAlertRepository creates a PostgreSQL alert repository.
func NewAlertRepository(db *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `
	alert_id, rule_id, tenant_id, domain, requirement_ids, severity,
	status, message, estimated_loss, dedup_key, created_at, resolved_at`

func (r *AlertRepository) CreateIfAbsent(ctx context.Context, a *alert.Alert) (bool, error) {
	var loss []byte
	if a.EstimatedLoss != nil {
		var err error
		loss, err = json.Marshal(a.EstimatedLoss)
		if err != nil {
			return false, errors.NewInternalError("failed to encode estimated loss").WithCause(err)
		}
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (dedup_key) WHERE resolved_at IS NULL DO NOTHING
	`, a.AlertID, a.RuleID, a.TenantID, string(a.Domain), a.RequirementIDs,
		string(a.Severity), string(a.Status), a.Message, loss, a.DedupKey(),
		a.CreatedAt, a.ResolvedAt)
	if err != nil {
		return false, errors.NewInternalError("failed to insert alert").WithCause(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AlertRepository) GetByID(ctx context.Context, alertID uuid.UUID) (*alert.Alert, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+alertColumns+`
		FROM alerts
		WHERE alert_id = $1
	`, alertID)

	a, err := scanAlert(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError("alert")
		}
		return nil, errors.NewInternalError("failed to load alert").WithCause(err)
	}
	return a, nil
}

func (r *AlertRepository) ListOpenByTenant(ctx context.Context, tenantID uuid.UUID) ([]*alert.Alert, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+alertColumns+`
		FROM alerts
		WHERE tenant_id = $1 AND resolved_at IS NULL
		ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list open alerts").WithCause(err)
	}
	defer rows.Close()

	var out []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan alert").WithCause(err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateStatus persists a status change. resolved_at is set when the new
// status is terminal, which releases the row from the dedup index.
func (r *AlertRepository) UpdateStatus(ctx context.Context, alertID uuid.UUID, status alert.Status) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE alerts
		SET status = $2,
		    resolved_at = CASE WHEN $3 THEN now() ELSE resolved_at END
		WHERE alert_id = $1
	`, alertID, string(status), status.IsTerminal())
	if err != nil {
		return errors.NewInternalError("failed to update alert status").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("alert")
	}
	return nil
}

func scanAlert(row pgx.Row) (*alert.Alert, error) {
	var a alert.Alert
	var loss []byte
	var dedup string
	err := row.Scan(
		&a.AlertID, &a.RuleID, &a.TenantID, &a.Domain, &a.RequirementIDs,
		&a.Severity, &a.Status, &a.Message, &loss, &dedup,
		&a.CreatedAt, &a.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(loss) > 0 {
		var m values.Money
		if err := json.Unmarshal(loss, &m); err != nil {
			return nil, err
		}
		a.EstimatedLoss = &m
	}
	return &a, nil
}

// RuleRepository implements alert.RuleRepository over the alert rule
// configuration table. Every loaded rule is validated before use; a
// malformed row fails the whole load rather than silently dropping the
// rule.
type RuleRepository struct {
	db *pgxpool.Pool
}

// NewRuleRepository creates a PostgreSQL alert rule repository.
func NewRuleRepository(db *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) ListEnabled(ctx context.Context) ([]*alert.Rule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT rule_id, name, domain, framework, irr_thresholds, severity,
		       condition_type, threshold_percentage, time_window_days,
		       consecutive_occurrences, cooldown_minutes, requires_ack, enabled
		FROM alert_rules
		WHERE enabled
		ORDER BY name
	`)
	if err != nil {
		return nil, errors.NewInternalError("failed to list alert rules").WithCause(err)
	}
	defer rows.Close()

	var out []*alert.Rule
	for rows.Next() {
		var rule alert.Rule
		var thresholds []string
		err := rows.Scan(&rule.RuleID, &rule.Name, &rule.Domain, &rule.Framework,
			&thresholds, &rule.Severity, &rule.ConditionType,
			&rule.ThresholdPercentage, &rule.TimeWindowDays,
			&rule.ConsecutiveOccurrences, &rule.CooldownMinutes,
			&rule.RequiresAck, &rule.Enabled)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan alert rule").WithCause(err)
		}
		for _, t := range thresholds {
			rule.IRRThresholds = append(rule.IRRThresholds, compliance.IRRLevel(t))
		}
		if err := rule.Validate(); err != nil {
			return nil, errors.NewInternalError("invalid alert rule configuration").WithCause(err)
		}
		out = append(out, &rule)
	}
	return out, rows.Err()
}
