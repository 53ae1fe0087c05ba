package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
)

// TenantContext is a read-only view of one tenant's configuration
// snapshot, handed to predicates during evaluation.
type TenantContext struct {
	TenantID uuid.UUID
	Sector   string

	store ConfigStore
}

// NewTenantContext builds a context bound to a configuration store.
func NewTenantContext(tenantID uuid.UUID, sector string, store ConfigStore) *TenantContext {
	return &TenantContext{TenantID: tenantID, Sector: sector, store: store}
}

// Query resolves a configuration path for this tenant.
func (tc *TenantContext) Query(ctx context.Context, path string) (interface{}, error) {
	return tc.store.Query(ctx, tc.TenantID, path)
}

// Snapshot returns the tenant's full configuration map.
func (tc *TenantContext) Snapshot(ctx context.Context) (map[string]interface{}, error) {
	return tc.store.Snapshot(ctx, tc.TenantID)
}

// Bool resolves a path expected to hold a boolean.
func (tc *TenantContext) Bool(ctx context.Context, path string) (bool, error) {
	v, err := tc.Query(ctx, path)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("path %s is %T, not bool", path, v)
	}
	return b, nil
}

// String resolves a path expected to hold a string.
func (tc *TenantContext) String(ctx context.Context, path string) (string, error) {
	v, err := tc.Query(ctx, path)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("path %s is %T, not string", path, v)
	}
	return s, nil
}

// Int resolves a path expected to hold an integer. JSON-decoded numbers
// arrive as float64 and are accepted when integral.
func (tc *TenantContext) Int(ctx context.Context, path string) (int, error) {
	v, err := tc.Query(ctx, path)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
		return 0, fmt.Errorf("path %s holds non-integral number %v", path, n)
	default:
		return 0, fmt.Errorf("path %s is %T, not int", path, v)
	}
}

// StringSlice resolves a path expected to hold a list of strings.
func (tc *TenantContext) StringSlice(ctx context.Context, path string) ([]string, error) {
	v, err := tc.Query(ctx, path)
	if err != nil {
		return nil, err
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("path %s contains %T, not string", path, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("path %s is %T, not string list", path, v)
	}
}

// AuthLevel resolves the tenant's configured authentication level.
func (tc *TenantContext) AuthLevel(ctx context.Context) (compliance.AuthLevel, error) {
	s, err := tc.String(ctx, "auth.level")
	if err != nil {
		return "", err
	}
	return compliance.AuthLevel(s), nil
}

// EnabledAuthMethods resolves the tenant's enabled authentication methods.
func (tc *TenantContext) EnabledAuthMethods(ctx context.Context) ([]string, error) {
	return tc.StringSlice(ctx, "auth.methods.enabled")
}
