package alert

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists alerts. CreateIfAbsent is the critical section of
// the evaluator: the open-alert uniqueness check and the insert must be
// atomic (unique constraint or equivalent compare-and-swap), never a plain
// read-then-write.
type Repository interface {
	// CreateIfAbsent persists the alert unless an open alert with the
	// same dedup key exists. Returns false (and no error) when an open
	// duplicate suppressed the insert.
	CreateIfAbsent(ctx context.Context, a *Alert) (bool, error)
	GetByID(ctx context.Context, alertID uuid.UUID) (*Alert, error)
	ListOpenByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Alert, error)
	UpdateStatus(ctx context.Context, alertID uuid.UUID, status Status) error
}

// RuleRepository provides the static alert rule configuration.
type RuleRepository interface {
	ListEnabled(ctx context.Context) ([]*Rule, error)
}
