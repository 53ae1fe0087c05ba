package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/values"
)

// Status is the lifecycle state of an alert. Status names follow the
// operational workflow of the compliance desk (pt-BR). Only StatusNovo is
// entered automatically, by the evaluator; every other transition is
// user-driven.
type Status string

const (
	StatusNovo          Status = "NOVO"
	StatusReconhecido   Status = "RECONHECIDO"
	StatusEmAnalise     Status = "EM_ANALISE"
	StatusEmMitigacao   Status = "EM_MITIGACAO"
	StatusResolvido     Status = "RESOLVIDO"
	StatusFechado       Status = "FECHADO"
	StatusFalsoPositivo Status = "FALSO_POSITIVO"
	StatusDuplicado     Status = "DUPLICADO"
	StatusAdiado        Status = "ADIADO"
)

// IsTerminal reports whether the status closes the alert. Open alerts
// (non-terminal) block creation of duplicates for the same rule, domain
// and requirement.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusResolvido, StatusFechado, StatusFalsoPositivo, StatusDuplicado, StatusAdiado:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the status may move to the target
// state. The main path is NOVO -> RECONHECIDO -> EM_ANALISE ->
// EM_MITIGACAO -> RESOLVIDO/FECHADO; any open alert may be dismissed as
// FALSO_POSITIVO, DUPLICADO or ADIADO.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch target {
	case StatusFalsoPositivo, StatusDuplicado, StatusAdiado:
		return true
	case StatusReconhecido:
		return s == StatusNovo
	case StatusEmAnalise:
		return s == StatusReconhecido
	case StatusEmMitigacao:
		return s == StatusEmAnalise
	case StatusResolvido, StatusFechado:
		return s == StatusEmMitigacao
	default:
		return false
	}
}

// Severity grades an alert for notification routing.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is one emitted alert record. Delivery and formatting are external
// concerns consuming the alert by id.
type Alert struct {
	AlertID        uuid.UUID         `json:"alert_id"`
	RuleID         uuid.UUID         `json:"rule_id"`
	TenantID       uuid.UUID         `json:"tenant_id"`
	Domain         compliance.Domain `json:"domain"`
	RequirementIDs []uuid.UUID       `json:"requirement_ids"`
	Severity       Severity          `json:"severity"`
	Status         Status            `json:"status"`
	Message        string            `json:"message"`
	EstimatedLoss  *values.Money     `json:"estimated_loss,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
}

// New creates an alert in the NOVO state.
func New(ruleID, tenantID uuid.UUID, domain compliance.Domain, requirementIDs []uuid.UUID, severity Severity, message string) *Alert {
	return &Alert{
		AlertID:        uuid.New(),
		RuleID:         ruleID,
		TenantID:       tenantID,
		Domain:         domain,
		RequirementIDs: requirementIDs,
		Severity:       severity,
		Status:         StatusNovo,
		Message:        message,
		CreatedAt:      time.Now().UTC(),
	}
}

// Transition moves the alert to the target status.
func (a *Alert) Transition(target Status) error {
	if !a.Status.CanTransitionTo(target) {
		return errors.NewBusinessError("INVALID_STATUS_TRANSITION",
			"Status transition not allowed").WithDetails(map[string]interface{}{
			"from": string(a.Status),
			"to":   string(target),
		})
	}
	a.Status = target
	if target.IsTerminal() {
		now := time.Now().UTC()
		a.ResolvedAt = &now
	}
	return nil
}

// IsOpen reports whether the alert is in a non-terminal status.
func (a *Alert) IsOpen() bool {
	return !a.Status.IsTerminal()
}

// DedupKey identifies the scope within which an open alert suppresses
// duplicates: tenant + rule + domain + requirement set.
func (a *Alert) DedupKey() string {
	return DedupKey(a.TenantID, a.RuleID, a.Domain, a.RequirementIDs)
}

// DedupKey builds the duplicate-suppression key for an alert scope.
// Requirement ids are sorted so the key is order-independent.
func DedupKey(tenantID, ruleID uuid.UUID, domain compliance.Domain, requirementIDs []uuid.UUID) string {
	ids := make([]string, len(requirementIDs))
	for i, id := range requirementIDs {
		ids[i] = id.String()
	}
	// Insertion sort; requirement sets are tiny.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return fmt.Sprintf("%s|%s|%s|%s", tenantID, ruleID, domain, strings.Join(ids, ","))
}
