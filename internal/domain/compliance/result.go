package compliance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationResult records the outcome of evaluating one requirement
// against a tenant's configuration snapshot. Results are append-only
// history; a new row is created each time a validation batch runs and
// existing rows are never updated in place.
type ValidationResult struct {
	ID            uuid.UUID `json:"id"`
	RequirementID uuid.UUID `json:"requirement_id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	Framework     Framework `json:"framework"`
	IsCompliant   bool      `json:"is_compliant"`
	Detail        string    `json:"detail"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

// NewCompliantResult builds a passing result for a requirement.
func NewCompliantResult(req *Requirement, tenantID uuid.UUID, detail string) *ValidationResult {
	return newResult(req, tenantID, true, "Compliant: "+detail)
}

// NewNonCompliantResult builds a failing result for a requirement.
func NewNonCompliantResult(req *Requirement, tenantID uuid.UUID, detail string) *ValidationResult {
	return newResult(req, tenantID, false, "Non-compliant: "+detail)
}

// NewErrorResult builds the forced-failure result used when predicate
// evaluation itself fails. A failed predicate is never silently dropped
// from the batch.
func NewErrorResult(req *Requirement, tenantID uuid.UUID, cause error) *ValidationResult {
	return newResult(req, tenantID, false, fmt.Sprintf("Error validating: %v", cause))
}

func newResult(req *Requirement, tenantID uuid.UUID, compliant bool, detail string) *ValidationResult {
	return &ValidationResult{
		ID:            uuid.New(),
		RequirementID: req.ID,
		TenantID:      tenantID,
		Framework:     req.FrameworkID,
		IsCompliant:   compliant,
		Detail:        detail,
		EvaluatedAt:   time.Now().UTC(),
	}
}

// IsErrored reports whether the result came from a predicate failure
// rather than a genuine non-compliance finding.
func (r *ValidationResult) IsErrored() bool {
	return !r.IsCompliant && len(r.Detail) >= 17 && r.Detail[:17] == "Error validating:"
}
