package economic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FactorRepository resolves cost factor table rows. Lookup returns a
// not-found error when no row matches; callers fall back to sector
// defaults.
type FactorRepository interface {
	Lookup(ctx context.Context, validatorID, jurisdiction, sector string) (*Factor, error)
}

// HistoryRepository maintains the monthly impact aggregates that feed
// forecasting. Estimates recorded during a cycle accrue into the
// tenant's month; MonthlyTotals reads them back for trend fitting.
type HistoryRepository interface {
	// MonthlyTotals returns up to the last `months` monthly aggregates in
	// chronological order.
	MonthlyTotals(ctx context.Context, tenantID uuid.UUID, months int) ([]HistoryPoint, error)
	// Record adds an impact amount into the tenant's aggregate for the
	// month containing occurredAt.
	Record(ctx context.Context, tenantID uuid.UUID, occurredAt time.Time, impact float64) error
}
