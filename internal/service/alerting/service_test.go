package alerting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/alert"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/economic"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/values"
)

// fakeAlertRepo enforces dedup-key uniqueness for open alerts under a
// mutex, mirroring the database partial unique index.
type fakeAlertRepo struct {
	mu      sync.Mutex
	alerts  map[uuid.UUID]*alert.Alert
	openKey map[string]uuid.UUID
	err     error
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{
		alerts:  make(map[uuid.UUID]*alert.Alert),
		openKey: make(map[string]uuid.UUID),
	}
}

func (r *fakeAlertRepo) CreateIfAbsent(_ context.Context, a *alert.Alert) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	key := a.DedupKey()
	if _, exists := r.openKey[key]; exists {
		return false, nil
	}
	r.alerts[a.AlertID] = a
	r.openKey[key] = a.AlertID
	return true, nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, alertID uuid.UUID) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[alertID]
	if !ok {
		return nil, errors.NewNotFoundError("alert")
	}
	return a, nil
}

func (r *fakeAlertRepo) ListOpenByTenant(_ context.Context, tenantID uuid.UUID) ([]*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*alert.Alert
	for _, a := range r.alerts {
		if a.TenantID == tenantID && a.IsOpen() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) UpdateStatus(_ context.Context, alertID uuid.UUID, status alert.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[alertID]
	if !ok {
		return errors.NewNotFoundError("alert")
	}
	a.Status = status
	if status.IsTerminal() {
		delete(r.openKey, a.DedupKey())
	}
	return nil
}

func (r *fakeAlertRepo) openCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.openKey)
}

type fakeRules struct {
	rules []*alert.Rule
	err   error
}

func (f *fakeRules) ListEnabled(context.Context) ([]*alert.Rule, error) {
	return f.rules, f.err
}

type fakeResults struct {
	pastPct float64
	pastErr error
}

func (f *fakeResults) Save(context.Context, *compliance.ValidationResult) error        { return nil }
func (f *fakeResults) SaveBatch(context.Context, []*compliance.ValidationResult) error { return nil }
func (f *fakeResults) ListByTenant(context.Context, uuid.UUID, time.Time) ([]*compliance.ValidationResult, error) {
	return nil, nil
}
func (f *fakeResults) ListByTenantAndFramework(context.Context, uuid.UUID, compliance.Framework, time.Time) ([]*compliance.ValidationResult, error) {
	return nil, nil
}
func (f *fakeResults) AveragePercentageAt(context.Context, uuid.UUID, time.Time) (float64, error) {
	return f.pastPct, f.pastErr
}

type fakeCatalog struct {
	byID map[uuid.UUID]*compliance.Requirement
}

func (c *fakeCatalog) GetByID(_ context.Context, id uuid.UUID) (*compliance.Requirement, error) {
	req, ok := c.byID[id]
	if !ok {
		return nil, errors.NewNotFoundError("requirement")
	}
	return req, nil
}
func (c *fakeCatalog) ListByFramework(context.Context, compliance.Framework) ([]*compliance.Requirement, error) {
	return nil, nil
}
func (c *fakeCatalog) ListFrameworks(context.Context) ([]compliance.Framework, error) {
	return nil, nil
}

type fakeCooldowns struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeCooldowns() *fakeCooldowns {
	return &fakeCooldowns{keys: make(map[string]bool)}
}

func (c *fakeCooldowns) TrySet(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

type fakeEstimator struct {
	total float64
	err   error
}

func (e *fakeEstimator) Estimate(_ context.Context, _ uuid.UUID, _, _, _ string, _ economic.Severity, _ compliance.IRRLevel) (*economic.Impact, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &economic.Impact{TotalImpact: values.MustNewMoney(e.total, values.EUR)}, nil
}

func criticalRule(domain compliance.Domain) *alert.Rule {
	return &alert.Rule{
		RuleID:        uuid.New(),
		Name:          "critical non-compliance",
		Domain:        domain,
		IRRThresholds: []compliance.IRRLevel{compliance.IRRHigh, compliance.IRRCritical},
		Severity:      alert.SeverityCritical,
		ConditionType: alert.ConditionCriticalNonCompliance,
		Enabled:       true,
	}
}

func trendRule(domain compliance.Domain, threshold float64, cooldownMinutes int) *alert.Rule {
	return &alert.Rule{
		RuleID:              uuid.New(),
		Name:                "deterioration trend",
		Domain:              domain,
		Severity:            alert.SeverityHigh,
		ConditionType:       alert.ConditionDeteriorationTrend,
		ThresholdPercentage: threshold,
		TimeWindowDays:      7,
		CooldownMinutes:     cooldownMinutes,
		Enabled:             true,
	}
}

func healthcareInput(tenantID, reqID uuid.UUID, pct float64) CycleInput {
	return CycleInput{
		TenantID:     tenantID,
		Sector:       "health",
		Jurisdiction: "US",
		Results: []*compliance.ValidationResult{{
			ID:            uuid.New(),
			RequirementID: reqID,
			TenantID:      tenantID,
			Framework:     compliance.FrameworkHIPAA,
			IsCompliant:   false,
			Detail:        "Non-compliant: mfa disabled",
		}},
		Scores: []compliance.ComplianceScore{
			{TenantID: tenantID, Framework: compliance.FrameworkHIPAA, Domain: compliance.DomainHealthcare, Percentage: pct},
			{TenantID: tenantID, Framework: compliance.FrameworkOverall, Domain: compliance.DomainGeneral, Percentage: pct},
		},
	}
}

func TestCriticalNonCompliance(t *testing.T) {
	tenantID := uuid.New()
	reqID := uuid.New()
	catalog := &fakeCatalog{byID: map[uuid.UUID]*compliance.Requirement{
		reqID: {ID: reqID, FrameworkID: compliance.FrameworkHIPAA, PredicateRef: "mfa_enabled"},
	}}

	t.Run("fires with loss estimate at critical irr", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{criticalRule(compliance.DomainHealthcare)}},
			&fakeResults{}, catalog, newFakeCooldowns(), &fakeEstimator{total: 100000}, nil)

		created, err := svc.EvaluateCycle(context.Background(), healthcareInput(tenantID, reqID, 40))
		require.NoError(t, err)
		require.Len(t, created, 1)

		a := created[0]
		assert.Equal(t, alert.StatusNovo, a.Status)
		assert.Equal(t, alert.SeverityCritical, a.Severity)
		assert.Equal(t, []uuid.UUID{reqID}, a.RequirementIDs)
		require.NotNil(t, a.EstimatedLoss)
		assert.Equal(t, "100000.00 EUR", a.EstimatedLoss.String())
	})

	t.Run("irr outside threshold set does not fire", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{criticalRule(compliance.DomainHealthcare)}},
			&fakeResults{}, catalog, newFakeCooldowns(), nil, nil)

		created, err := svc.EvaluateCycle(context.Background(), healthcareInput(tenantID, reqID, 96))
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("domain mismatch does not fire", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{criticalRule(compliance.DomainDataPrivacy)}},
			&fakeResults{}, catalog, newFakeCooldowns(), nil, nil)

		created, err := svc.EvaluateCycle(context.Background(), healthcareInput(tenantID, reqID, 40))
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("open duplicate suppressed", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{criticalRule(compliance.DomainHealthcare)}},
			&fakeResults{}, catalog, newFakeCooldowns(), nil, nil)

		input := healthcareInput(tenantID, reqID, 40)
		first, err := svc.EvaluateCycle(context.Background(), input)
		require.NoError(t, err)
		require.Len(t, first, 1)

		second, err := svc.EvaluateCycle(context.Background(), input)
		require.NoError(t, err)
		assert.Empty(t, second)
		assert.Equal(t, 1, repo.openCount())
	})

	t.Run("resolved alert no longer suppresses", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{criticalRule(compliance.DomainHealthcare)}},
			&fakeResults{}, catalog, newFakeCooldowns(), nil, nil)

		input := healthcareInput(tenantID, reqID, 40)
		first, err := svc.EvaluateCycle(context.Background(), input)
		require.NoError(t, err)
		require.Len(t, first, 1)

		// Walk the alert to a terminal state, then re-evaluate.
		for _, target := range []alert.Status{alert.StatusReconhecido, alert.StatusEmAnalise, alert.StatusEmMitigacao, alert.StatusResolvido} {
			_, err = svc.UpdateStatus(context.Background(), first[0].AlertID, target)
			require.NoError(t, err)
		}

		second, err := svc.EvaluateCycle(context.Background(), input)
		require.NoError(t, err)
		assert.Len(t, second, 1)
	})

	t.Run("estimator failure does not block alert", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{criticalRule(compliance.DomainHealthcare)}},
			&fakeResults{}, catalog, newFakeCooldowns(), &fakeEstimator{err: fmt.Errorf("factors down")}, nil)

		created, err := svc.EvaluateCycle(context.Background(), healthcareInput(tenantID, reqID, 40))
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Nil(t, created[0].EstimatedLoss)
	})

	t.Run("no duplicate under concurrent evaluation", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{criticalRule(compliance.DomainHealthcare)}},
			&fakeResults{}, catalog, newFakeCooldowns(), nil, nil)

		input := healthcareInput(tenantID, reqID, 40)
		var wg sync.WaitGroup
		totals := make(chan int, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := svc.EvaluateCycle(context.Background(), input)
				assert.NoError(t, err)
				totals <- len(created)
			}()
		}
		wg.Wait()
		close(totals)

		sum := 0
		for n := range totals {
			sum += n
		}
		assert.Equal(t, 1, sum)
		assert.Equal(t, 1, repo.openCount())
	})
}

func TestDeteriorationTrend(t *testing.T) {
	tenantID := uuid.New()
	reqID := uuid.New()

	input := func(current float64) CycleInput {
		in := healthcareInput(tenantID, reqID, current)
		in.Results = nil
		return in
	}

	t.Run("fires on drop past threshold", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{trendRule(compliance.DomainGeneral, 10, 60)}},
			&fakeResults{pastPct: 90}, &fakeCatalog{}, newFakeCooldowns(), nil, nil)

		created, err := svc.EvaluateCycle(context.Background(), input(75))
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Contains(t, created[0].Message, "dropped 15.0%")
	})

	t.Run("improvement never fires even with large delta", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{trendRule(compliance.DomainGeneral, 10, 60)}},
			&fakeResults{pastPct: 60}, &fakeCatalog{}, newFakeCooldowns(), nil, nil)

		created, err := svc.EvaluateCycle(context.Background(), input(90))
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("drop below threshold does not fire", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{trendRule(compliance.DomainGeneral, 10, 60)}},
			&fakeResults{pastPct: 90}, &fakeCatalog{}, newFakeCooldowns(), nil, nil)

		created, err := svc.EvaluateCycle(context.Background(), input(85))
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("cooldown suppresses repeat", func(t *testing.T) {
		repo := newFakeAlertRepo()
		cooldowns := newFakeCooldowns()
		rules := &fakeRules{rules: []*alert.Rule{trendRule(compliance.DomainGeneral, 10, 60)}}
		svc := NewService(zaptest.NewLogger(t), repo, rules, &fakeResults{pastPct: 90}, &fakeCatalog{}, cooldowns, nil, nil)

		first, err := svc.EvaluateCycle(context.Background(), input(75))
		require.NoError(t, err)
		require.Len(t, first, 1)

		// Resolve so the dedup guard is out of the way; the cooldown alone
		// must suppress the repeat.
		for _, target := range []alert.Status{alert.StatusReconhecido, alert.StatusEmAnalise, alert.StatusEmMitigacao, alert.StatusFechado} {
			_, err = svc.UpdateStatus(context.Background(), first[0].AlertID, target)
			require.NoError(t, err)
		}

		second, err := svc.EvaluateCycle(context.Background(), input(70))
		require.NoError(t, err)
		assert.Empty(t, second)
	})

	t.Run("missing baseline skips rule", func(t *testing.T) {
		repo := newFakeAlertRepo()
		svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{rules: []*alert.Rule{trendRule(compliance.DomainGeneral, 10, 60)}},
			&fakeResults{pastPct: 0}, &fakeCatalog{}, newFakeCooldowns(), nil, nil)

		created, err := svc.EvaluateCycle(context.Background(), input(75))
		require.NoError(t, err)
		assert.Empty(t, created)
	})
}

func TestRuleFailureSkipsRuleNotCycle(t *testing.T) {
	tenantID := uuid.New()
	reqID := uuid.New()
	catalog := &fakeCatalog{byID: map[uuid.UUID]*compliance.Requirement{
		reqID: {ID: reqID, FrameworkID: compliance.FrameworkHIPAA, PredicateRef: "mfa_enabled"},
	}}

	broken := trendRule(compliance.DomainGeneral, 10, 60)
	healthy := criticalRule(compliance.DomainHealthcare)
	rules := &fakeRules{rules: []*alert.Rule{broken, healthy}}

	repo := newFakeAlertRepo()
	svc := NewService(zaptest.NewLogger(t), repo, rules,
		&fakeResults{pastErr: fmt.Errorf("history store down")}, catalog, newFakeCooldowns(), nil, nil)

	created, err := svc.EvaluateCycle(context.Background(), healthcareInput(tenantID, reqID, 40))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, healthy.RuleID, created[0].RuleID)
}

func TestUpdateStatus(t *testing.T) {
	repo := newFakeAlertRepo()
	svc := NewService(zaptest.NewLogger(t), repo, &fakeRules{}, &fakeResults{}, &fakeCatalog{}, newFakeCooldowns(), nil, nil)

	a := alert.New(uuid.New(), uuid.New(), compliance.DomainHealthcare, nil, alert.SeverityHigh, "test")
	_, err := repo.CreateIfAbsent(context.Background(), a)
	require.NoError(t, err)

	t.Run("dismissal from open state", func(t *testing.T) {
		updated, err := svc.UpdateStatus(context.Background(), a.AlertID, alert.StatusFalsoPositivo)
		require.NoError(t, err)
		assert.Equal(t, alert.StatusFalsoPositivo, updated.Status)
		assert.NotNil(t, updated.ResolvedAt)
	})

	t.Run("terminal alert rejects transitions", func(t *testing.T) {
		_, err := svc.UpdateStatus(context.Background(), a.AlertID, alert.StatusReconhecido)
		assert.Error(t, err)
	})
}
