package risk_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/risk"
)

func TestProbabilityFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  risk.ProbabilityLevel
	}{
		{100, risk.ProbabilityLow},
		{90, risk.ProbabilityLow},
		{89.9, risk.ProbabilityMedium},
		{75, risk.ProbabilityMedium},
		{74.9, risk.ProbabilityHigh},
		{50, risk.ProbabilityHigh},
		{49.9, risk.ProbabilityVeryHigh},
		{0, risk.ProbabilityVeryHigh},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.1f", tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, risk.ProbabilityFromScore(tt.score))
		})
	}
}

func TestComputeScore(t *testing.T) {
	tests := []struct {
		impact      risk.ImpactLevel
		probability risk.ProbabilityLevel
		want        float64
	}{
		{risk.ImpactLow, risk.ProbabilityLow, 6.25},
		{risk.ImpactHigh, risk.ProbabilityMedium, 37.5},
		{risk.ImpactCritical, risk.ProbabilityVeryHigh, 100},
		{risk.ImpactMedium, risk.ProbabilityHigh, 37.5},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%s x %s", tt.impact, tt.probability)
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tt.want, risk.ComputeScore(tt.impact, tt.probability), 1e-9)
		})
	}
}

func TestNewEntry(t *testing.T) {
	tenantID := uuid.New()
	validationID := uuid.New()

	entry := risk.NewEntry(tenantID, validationID, "authentication",
		risk.ImpactHigh, risk.ProbabilityMedium, risk.DefaultControlEffectiveness)

	assert.NotEqual(t, uuid.Nil, entry.RiskID)
	assert.Equal(t, tenantID, entry.TenantID)
	assert.Equal(t, validationID, entry.ValidationID)
	assert.Equal(t, risk.StatusIdentified, entry.Status)
	assert.InDelta(t, 37.5, entry.RiskScore, 1e-9)
	assert.InDelta(t, 37.5, entry.InherentScore, 1e-9)
	assert.InDelta(t, 26.25, entry.ResidualScore, 1e-9)
	assert.True(t, entry.IsOpen())
	assert.Empty(t, entry.TreatmentHistory)
}

func TestEntryResidualFollowsControlEffectiveness(t *testing.T) {
	entry := risk.NewEntry(uuid.New(), uuid.New(), "session",
		risk.ImpactCritical, risk.ProbabilityVeryHigh, 0.5)
	assert.InDelta(t, 100.0, entry.InherentScore, 1e-9)
	assert.InDelta(t, 50.0, entry.ResidualScore, 1e-9)
}

func TestEntryTransitions(t *testing.T) {
	t.Run("full lifecycle", func(t *testing.T) {
		entry := risk.NewEntry(uuid.New(), uuid.New(), "authentication",
			risk.ImpactLow, risk.ProbabilityLow, risk.DefaultControlEffectiveness)

		steps := []risk.Status{
			risk.StatusAssessed,
			risk.StatusTreated,
			risk.StatusMonitored,
			risk.StatusClosed,
		}
		for _, target := range steps {
			require.NoError(t, entry.Transition(target, "analyst", "ok"))
		}
		assert.Equal(t, risk.StatusClosed, entry.Status)
		assert.False(t, entry.IsOpen())
		assert.Len(t, entry.TreatmentHistory, 4)
		assert.Equal(t, risk.StatusIdentified, entry.TreatmentHistory[0].FromStatus)
	})

	t.Run("skipping states is rejected", func(t *testing.T) {
		entry := risk.NewEntry(uuid.New(), uuid.New(), "authentication",
			risk.ImpactLow, risk.ProbabilityLow, risk.DefaultControlEffectiveness)
		err := entry.Transition(risk.StatusClosed, "analyst", "shortcut")
		require.Error(t, err)
		assert.Equal(t, risk.StatusIdentified, entry.Status)
		assert.Empty(t, entry.TreatmentHistory)
	})

	t.Run("closed is terminal", func(t *testing.T) {
		entry := risk.NewEntry(uuid.New(), uuid.New(), "authentication",
			risk.ImpactLow, risk.ProbabilityLow, risk.DefaultControlEffectiveness)
		for _, target := range []risk.Status{risk.StatusAssessed, risk.StatusTreated, risk.StatusMonitored, risk.StatusClosed} {
			require.NoError(t, entry.Transition(target, "analyst", ""))
		}
		assert.Error(t, entry.Transition(risk.StatusAssessed, "analyst", "reopen"))
	})
}

func TestTenantConfigDefaults(t *testing.T) {
	tenantID := uuid.New()
	cfg := risk.NewDefaultTenantConfig(tenantID)

	assert.Equal(t, tenantID, cfg.TenantID)
	assert.Equal(t, risk.DefaultControlEffectiveness, cfg.ControlEffectiveness)
	assert.Equal(t, risk.DefaultRiskAppetite, cfg.RiskAppetite)
	assert.Equal(t, 1.0, cfg.CategoryWeight("anything"))
}

func TestTenantConfigAppetite(t *testing.T) {
	cfg := risk.NewDefaultTenantConfig(uuid.New())
	assert.False(t, cfg.ExceedsAppetite(25.0))
	assert.True(t, cfg.ExceedsAppetite(25.01))
}

func TestTenantConfigCategoryWeights(t *testing.T) {
	cfg := risk.NewDefaultTenantConfig(uuid.New())
	cfg.CategoryWeights = map[string]float64{"authentication": 1.5, "broken": 0}
	assert.Equal(t, 1.5, cfg.CategoryWeight("authentication"))
	assert.Equal(t, 1.0, cfg.CategoryWeight("broken"))
	assert.Equal(t, 1.0, cfg.CategoryWeight("session"))
}
