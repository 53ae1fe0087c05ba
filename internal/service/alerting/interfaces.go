package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/economic"
)

// CooldownStore suppresses repeat alerts for a key within a window. The
// check and the mark must be one atomic operation (SetNX or equivalent);
// a read-then-write pair would race under concurrent evaluators.
type CooldownStore interface {
	// TrySet marks the key for ttl and reports whether the mark was
	// taken. False means the key is still cooling down.
	TrySet(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ImpactEstimator attaches an economic loss estimate to alerts. Satisfied
// by the economic impact service.
type ImpactEstimator interface {
	Estimate(ctx context.Context, tenantID uuid.UUID, validatorID, jurisdiction, sector string, severity economic.Severity, irr compliance.IRRLevel) (*economic.Impact, error)
}
