package validation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
)

// ConfigStore is the read-only external capability exposing a tenant's
// IAM configuration (authentication policy, factor configuration, session
// records). The pipeline never writes through it.
type ConfigStore interface {
	// Query resolves a dotted path (e.g. "auth.mfa.enabled") in the
	// tenant's configuration snapshot.
	Query(ctx context.Context, tenantID uuid.UUID, path string) (interface{}, error)
	// Snapshot returns the tenant's full configuration as a nested map.
	Snapshot(ctx context.Context, tenantID uuid.UUID) (map[string]interface{}, error)
}

// Predicate evaluates one requirement against a tenant context. It
// returns whether the tenant is compliant plus a human-readable detail.
type Predicate interface {
	Evaluate(ctx context.Context, tc *TenantContext, req *compliance.Requirement) (bool, string, error)
}

// PredicateFunc adapts a function to the Predicate interface.
type PredicateFunc func(ctx context.Context, tc *TenantContext, req *compliance.Requirement) (bool, string, error)

func (f PredicateFunc) Evaluate(ctx context.Context, tc *TenantContext, req *compliance.Requirement) (bool, string, error) {
	return f(ctx, tc, req)
}

// RunLocker serializes concurrent validation runs for the same tenant.
// Concurrent runs for different tenants never contend.
type RunLocker interface {
	// TryAcquire returns a release function when the tenant lock was
	// obtained, or ok=false when another run holds it.
	TryAcquire(ctx context.Context, tenantID uuid.UUID, ttl time.Duration) (release func(), ok bool, err error)
}
