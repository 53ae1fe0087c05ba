package risk

import (
	"time"

	"github.com/google/uuid"
)

// DefaultControlEffectiveness is the residual-risk multiplier assumed when
// a tenant has no control effectiveness data: existing controls are taken
// to reduce inherent risk by a flat 30%. It is a documented default, not a
// derived value; tenants with measured control data override it.
const DefaultControlEffectiveness = 0.7

// DefaultRiskAppetite is the residual score above which findings are
// expected to receive treatment.
const DefaultRiskAppetite = 25.0

// TenantConfig carries a tenant's risk translation settings. A default
// configuration is created lazily on first use; there is no ambient
// process-wide state.
type TenantConfig struct {
	TenantID             uuid.UUID          `json:"tenant_id"`
	RiskAppetite         float64            `json:"risk_appetite"`
	ControlEffectiveness float64            `json:"control_effectiveness"`
	CategoryWeights      map[string]float64 `json:"category_weights,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// NewDefaultTenantConfig builds the lazily-created default configuration.
func NewDefaultTenantConfig(tenantID uuid.UUID) *TenantConfig {
	now := time.Now().UTC()
	return &TenantConfig{
		TenantID:             tenantID,
		RiskAppetite:         DefaultRiskAppetite,
		ControlEffectiveness: DefaultControlEffectiveness,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// CategoryWeight returns the configured weight for a risk category,
// defaulting to 1.0 when none is set.
func (c *TenantConfig) CategoryWeight(category string) float64 {
	if w, ok := c.CategoryWeights[category]; ok && w > 0 {
		return w
	}
	return 1.0
}

// ExceedsAppetite reports whether a residual score is above the tenant's
// accepted risk level.
func (c *TenantConfig) ExceedsAppetite(residualScore float64) bool {
	return residualScore > c.RiskAppetite
}
