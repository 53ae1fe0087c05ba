package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
)

// IAMConfigStore implements validation.ConfigStore over per-tenant IAM
// configuration snapshots kept as jsonb documents. Snapshots are written
// by the IAM provisioning side; the pipeline only reads them.
type IAMConfigStore struct {
	db *pgxpool.Pool
}

// NewIAMConfigStore creates a PostgreSQL-backed IAM configuration store.
func NewIAMConfigStore(db *pgxpool.Pool) *IAMConfigStore {
	return &IAMConfigStore{db: db}
}

// Snapshot returns the tenant's full configuration as a nested map.
func (s *IAMConfigStore) Snapshot(ctx context.Context, tenantID uuid.UUID) (map[string]interface{}, error) {
	var snapshot map[string]interface{}
	err := s.db.QueryRow(ctx, `
		SELECT snapshot
		FROM tenant_iam_configs
		WHERE tenant_id = $1
	`, tenantID).Scan(&snapshot)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError("tenant IAM configuration")
		}
		return nil, errors.NewInternalError("failed to load IAM configuration").WithCause(err)
	}
	return snapshot, nil
}

// Query resolves a dotted path (e.g. "auth.mfa.enabled") in the tenant's
// configuration snapshot.
func (s *IAMConfigStore) Query(ctx context.Context, tenantID uuid.UUID, path string) (interface{}, error) {
	snapshot, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var current interface{} = map[string]interface{}(snapshot)
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, errors.NewNotFoundError(fmt.Sprintf("config path %q", path))
		}
		current, ok = node[key]
		if !ok {
			return nil, errors.NewNotFoundError(fmt.Sprintf("config path %q", path))
		}
	}
	return current, nil
}
