package reporting

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
)

type fakeResults struct {
	results []*compliance.ValidationResult
}

func (f *fakeResults) Save(context.Context, *compliance.ValidationResult) error        { return nil }
func (f *fakeResults) SaveBatch(context.Context, []*compliance.ValidationResult) error { return nil }
func (f *fakeResults) ListByTenant(_ context.Context, _ uuid.UUID, since time.Time) ([]*compliance.ValidationResult, error) {
	var out []*compliance.ValidationResult
	for _, r := range f.results {
		if !r.EvaluatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeResults) ListByTenantAndFramework(context.Context, uuid.UUID, compliance.Framework, time.Time) ([]*compliance.ValidationResult, error) {
	return nil, nil
}
func (f *fakeResults) AveragePercentageAt(context.Context, uuid.UUID, time.Time) (float64, error) {
	return 0, nil
}

func resultAt(tenantID uuid.UUID, fw compliance.Framework, compliant bool, at time.Time) *compliance.ValidationResult {
	return &compliance.ValidationResult{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Framework:   fw,
		IsCompliant: compliant,
		Detail:      "Compliant: ok",
		EvaluatedAt: at,
	}
}

func TestBuild(t *testing.T) {
	tenantID := uuid.New()
	periodStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	repo := &fakeResults{results: []*compliance.ValidationResult{
		resultAt(tenantID, compliance.FrameworkHIPAA, true, periodStart.AddDate(0, 0, 5)),
		resultAt(tenantID, compliance.FrameworkHIPAA, false, periodStart.AddDate(0, 0, 6)),
		resultAt(tenantID, compliance.FrameworkGDPR, true, periodStart.AddDate(0, 0, 7)),
		// Outside the period, must be excluded.
		resultAt(tenantID, compliance.FrameworkGDPR, false, periodEnd.AddDate(0, 0, 3)),
	}}
	svc := NewService(zaptest.NewLogger(t), repo)

	t.Run("scores match shipped results", func(t *testing.T) {
		payload, err := svc.Build(context.Background(), tenantID, periodStart, periodEnd)
		require.NoError(t, err)

		assert.Len(t, payload.Results, 3)
		require.Len(t, payload.Scores, 3)
		assert.InDelta(t, 50.0, payload.Scores[0].Percentage, 1e-9)  // HIPAA 1/2
		assert.InDelta(t, 100.0, payload.Scores[1].Percentage, 1e-9) // GDPR 1/1
		overall := payload.Scores[2]
		assert.Equal(t, compliance.FrameworkOverall, overall.Framework)
		assert.Equal(t, 3, overall.TotalRequirements)
	})

	t.Run("renders as json", func(t *testing.T) {
		payload, err := svc.Build(context.Background(), tenantID, periodStart, periodEnd)
		require.NoError(t, err)

		raw, err := payload.Render()
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, tenantID.String(), decoded["tenant_id"])
		assert.Len(t, decoded["results"], 3)
		assert.Len(t, decoded["scores"], 3)
	})

	t.Run("invalid period rejected", func(t *testing.T) {
		_, err := svc.Build(context.Background(), tenantID, periodEnd, periodStart)
		assert.Error(t, err)
	})
}
