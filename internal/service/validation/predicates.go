package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
)

// Built-in parameterized predicates. Requirement catalogs across sectors
// reduce to a handful of check shapes (level comparison, method presence,
// flag, bounded value, required keys); each shape is one predicate
// parameterized by configuration paths rather than one function per
// regulation clause.

// AuthLevelPredicate checks the tenant's authentication level satisfies
// the requirement's minimum level.
func AuthLevelPredicate() Predicate {
	return PredicateFunc(func(ctx context.Context, tc *TenantContext, req *compliance.Requirement) (bool, string, error) {
		level, err := tc.AuthLevel(ctx)
		if err != nil {
			return false, "", err
		}
		if level.Satisfies(req.RequiredAuthLevel) {
			return true, fmt.Sprintf("auth level %s satisfies required %s", level, req.RequiredAuthLevel), nil
		}
		return false, fmt.Sprintf("auth level %s below required %s", level, req.RequiredAuthLevel), nil
	})
}

// AuthMethodsPredicate checks every required authentication method is
// enabled for the tenant.
func AuthMethodsPredicate() Predicate {
	return PredicateFunc(func(ctx context.Context, tc *TenantContext, req *compliance.Requirement) (bool, string, error) {
		enabled, err := tc.EnabledAuthMethods(ctx)
		if err != nil {
			return false, "", err
		}
		enabledSet := make(map[string]bool, len(enabled))
		for _, m := range enabled {
			enabledSet[m] = true
		}
		var missing []string
		for _, m := range req.RequiredAuthMethods {
			if !enabledSet[m] {
				missing = append(missing, m)
			}
		}
		if len(missing) > 0 {
			return false, "missing auth methods: " + strings.Join(missing, ", "), nil
		}
		return true, "all required auth methods enabled", nil
	})
}

// ConfigFlagPredicate checks a boolean configuration path is true.
func ConfigFlagPredicate(path, description string) Predicate {
	return PredicateFunc(func(ctx context.Context, tc *TenantContext, _ *compliance.Requirement) (bool, string, error) {
		v, err := tc.Bool(ctx, path)
		if err != nil {
			return false, "", err
		}
		if v {
			return true, description + " enabled", nil
		}
		return false, description + " disabled", nil
	})
}

// MaxIntPredicate checks an integer configuration value does not exceed a
// maximum (e.g. session idle timeout in minutes).
func MaxIntPredicate(path string, max int, unit string) Predicate {
	return PredicateFunc(func(ctx context.Context, tc *TenantContext, _ *compliance.Requirement) (bool, string, error) {
		v, err := tc.Int(ctx, path)
		if err != nil {
			return false, "", err
		}
		if v <= max {
			return true, fmt.Sprintf("%s is %d %s (max %d)", path, v, unit, max), nil
		}
		return false, fmt.Sprintf("%s is %d %s, exceeds max %d", path, v, unit, max), nil
	})
}

// MinIntPredicate checks an integer configuration value meets a minimum
// (e.g. password length).
func MinIntPredicate(path string, min int, unit string) Predicate {
	return PredicateFunc(func(ctx context.Context, tc *TenantContext, _ *compliance.Requirement) (bool, string, error) {
		v, err := tc.Int(ctx, path)
		if err != nil {
			return false, "", err
		}
		if v >= min {
			return true, fmt.Sprintf("%s is %d %s (min %d)", path, v, unit, min), nil
		}
		return false, fmt.Sprintf("%s is %d %s, below min %d", path, v, unit, min), nil
	})
}

// RequiredKeysPredicate checks a configuration object holds non-empty
// values for every listed key.
func RequiredKeysPredicate(path string, keys ...string) Predicate {
	return PredicateFunc(func(ctx context.Context, tc *TenantContext, _ *compliance.Requirement) (bool, string, error) {
		v, err := tc.Query(ctx, path)
		if err != nil {
			return false, "", err
		}
		obj, ok := v.(map[string]interface{})
		if !ok {
			return false, "", fmt.Errorf("path %s is %T, not object", path, v)
		}
		var missing []string
		for _, key := range keys {
			val, present := obj[key]
			if !present || val == nil || val == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return false, fmt.Sprintf("%s missing keys: %s", path, strings.Join(missing, ", ")), nil
		}
		return true, fmt.Sprintf("%s has all required keys", path), nil
	})
}

// RegisterBuiltins installs the standard predicate set shared by the
// seeded requirement catalogs.
func RegisterBuiltins(r *Registry) {
	r.Register("auth_level_minimum", AuthLevelPredicate())
	r.Register("auth_methods_required", AuthMethodsPredicate())
	r.Register("mfa_enabled", ConfigFlagPredicate("auth.mfa.enabled", "multi-factor authentication"))
	r.Register("encryption_at_rest", ConfigFlagPredicate("storage.encryption_at_rest", "encryption at rest"))
	r.Register("encryption_in_transit", ConfigFlagPredicate("network.tls_required", "TLS enforcement"))
	r.Register("audit_trail_enabled", ConfigFlagPredicate("audit.trail_enabled", "audit trail"))
	r.Register("consent_tracking_enabled", ConfigFlagPredicate("privacy.consent_tracking", "consent tracking"))
	r.Register("session_idle_timeout", MaxIntPredicate("session.idle_timeout_minutes", 15, "minutes"))
	r.Register("session_absolute_timeout", MaxIntPredicate("session.absolute_timeout_minutes", 480, "minutes"))
	r.Register("password_min_length", MinIntPredicate("auth.password.min_length", 12, "characters"))
	r.Register("password_rotation_days", MaxIntPredicate("auth.password.rotation_days", 90, "days"))
	r.Register("sca_configuration", RequiredKeysPredicate("auth.sca", "factor_one", "factor_two", "exemption_policy"))
	r.Register("qualified_signature", RequiredKeysPredicate("auth.signature", "provider", "certificate_level"))
}
