package validation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
)

// fakeConfigStore serves nested per-tenant configuration maps.
type fakeConfigStore struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]map[string]interface{}
	queries int
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{tenants: make(map[uuid.UUID]map[string]interface{})}
}

func (s *fakeConfigStore) set(tenantID uuid.UUID, snapshot map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[tenantID] = snapshot
}

func (s *fakeConfigStore) Query(_ context.Context, tenantID uuid.UUID, path string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	snapshot, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s not found", tenantID)
	}
	var current interface{} = snapshot
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("path %s not found", path)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("path %s not found", path)
		}
	}
	return current, nil
}

func (s *fakeConfigStore) Snapshot(_ context.Context, tenantID uuid.UUID) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s not found", tenantID)
	}
	return snapshot, nil
}

// fakeCatalog is an in-memory requirement catalog.
type fakeCatalog struct {
	requirements []*compliance.Requirement
}

func (c *fakeCatalog) GetByID(_ context.Context, id uuid.UUID) (*compliance.Requirement, error) {
	for _, r := range c.requirements {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("requirement not found")
}

func (c *fakeCatalog) ListByFramework(_ context.Context, framework compliance.Framework) ([]*compliance.Requirement, error) {
	var out []*compliance.Requirement
	for _, r := range c.requirements {
		if r.FrameworkID == framework {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ListFrameworks(_ context.Context) ([]compliance.Framework, error) {
	seen := map[compliance.Framework]bool{}
	var out []compliance.Framework
	for _, r := range c.requirements {
		if !seen[r.FrameworkID] {
			seen[r.FrameworkID] = true
			out = append(out, r.FrameworkID)
		}
	}
	return out, nil
}

// fakeResults records saved batches.
type fakeResults struct {
	mu    sync.Mutex
	saved []*compliance.ValidationResult
}

func (r *fakeResults) Save(_ context.Context, result *compliance.ValidationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, result)
	return nil
}

func (r *fakeResults) SaveBatch(_ context.Context, results []*compliance.ValidationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, results...)
	return nil
}

func (r *fakeResults) ListByTenant(_ context.Context, tenantID uuid.UUID, _ time.Time) ([]*compliance.ValidationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*compliance.ValidationResult
	for _, res := range r.saved {
		if res.TenantID == tenantID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *fakeResults) ListByTenantAndFramework(_ context.Context, tenantID uuid.UUID, framework compliance.Framework, _ time.Time) ([]*compliance.ValidationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*compliance.ValidationResult
	for _, res := range r.saved {
		if res.TenantID == tenantID && res.Framework == framework {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *fakeResults) AveragePercentageAt(_ context.Context, _ uuid.UUID, _ time.Time) (float64, error) {
	return 0, nil
}

// fakeLocker implements per-tenant locking in memory.
type fakeLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[uuid.UUID]bool)}
}

func (l *fakeLocker) TryAcquire(_ context.Context, tenantID uuid.UUID, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[tenantID] {
		return nil, false, nil
	}
	l.held[tenantID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, tenantID)
	}, true, nil
}

func requirement(fw compliance.Framework, ref string) *compliance.Requirement {
	return &compliance.Requirement{
		ID:           uuid.New(),
		FrameworkID:  fw,
		Name:         "requirement " + ref,
		PredicateRef: ref,
		IRRThreshold: compliance.IRRHigh,
		IsMandatory:  true,
	}
}

func compliantSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"auth": map[string]interface{}{
			"level":   "ADVANCED",
			"methods": map[string]interface{}{"enabled": []interface{}{"password", "totp", "webauthn"}},
			"mfa":     map[string]interface{}{"enabled": true},
			"password": map[string]interface{}{
				"min_length":    14,
				"rotation_days": 60,
			},
		},
		"session": map[string]interface{}{
			"idle_timeout_minutes":     10,
			"absolute_timeout_minutes": 240,
		},
		"audit":   map[string]interface{}{"trail_enabled": true},
		"storage": map[string]interface{}{"encryption_at_rest": true},
	}
}

func newTestService(t *testing.T, catalog *fakeCatalog, store *fakeConfigStore, results *fakeResults, locker *fakeLocker) *Service {
	t.Helper()
	registry := NewRegistry()
	RegisterBuiltins(registry)
	cfg := DefaultConfig()
	cfg.PredicateTimeout = 200 * time.Millisecond
	return NewService(zaptest.NewLogger(t), catalog, results, store, locker, registry, nil, cfg)
}

func TestEvaluate(t *testing.T) {
	tenantID := uuid.New()
	store := newFakeConfigStore()
	store.set(tenantID, compliantSnapshot())
	svc := newTestService(t, &fakeCatalog{}, store, &fakeResults{}, newFakeLocker())
	tc := NewTenantContext(tenantID, "health", svc.store)

	t.Run("compliant result", func(t *testing.T) {
		req := requirement(compliance.FrameworkHIPAA, "mfa_enabled")
		result := svc.Evaluate(context.Background(), req, tc)
		assert.True(t, result.IsCompliant)
		assert.Contains(t, result.Detail, "Compliant:")
	})

	t.Run("non-compliant result", func(t *testing.T) {
		req := requirement(compliance.FrameworkHIPAA, "auth_level_minimum")
		req.RequiredAuthLevel = compliance.AuthLevelVeryAdvanced
		result := svc.Evaluate(context.Background(), req, tc)
		assert.False(t, result.IsCompliant)
		assert.Contains(t, result.Detail, "Non-compliant:")
	})

	t.Run("unregistered predicate becomes error result", func(t *testing.T) {
		req := requirement(compliance.FrameworkHIPAA, "no_such_predicate")
		result := svc.Evaluate(context.Background(), req, tc)
		assert.False(t, result.IsCompliant)
		assert.Contains(t, result.Detail, "Error validating:")
	})

	t.Run("predicate error becomes error result", func(t *testing.T) {
		req := requirement(compliance.FrameworkHIPAA, "consent_tracking_enabled")
		// Snapshot has no privacy section; the flag lookup fails.
		result := svc.Evaluate(context.Background(), req, tc)
		assert.False(t, result.IsCompliant)
		assert.True(t, result.IsErrored())
	})

	t.Run("predicate panic is recovered", func(t *testing.T) {
		svc.registry.Register("panicking", PredicateFunc(
			func(context.Context, *TenantContext, *compliance.Requirement) (bool, string, error) {
				panic("boom")
			}))
		req := requirement(compliance.FrameworkHIPAA, "panicking")
		result := svc.Evaluate(context.Background(), req, tc)
		assert.False(t, result.IsCompliant)
		assert.Contains(t, result.Detail, "panic")
	})

	t.Run("hanging predicate is abandoned after timeout", func(t *testing.T) {
		svc.registry.Register("hanging", PredicateFunc(
			func(context.Context, *TenantContext, *compliance.Requirement) (bool, string, error) {
				time.Sleep(10 * time.Second) // ignores cancellation
				return true, "", nil
			}))
		req := requirement(compliance.FrameworkHIPAA, "hanging")
		start := time.Now()
		result := svc.Evaluate(context.Background(), req, tc)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.False(t, result.IsCompliant)
		assert.Contains(t, result.Detail, "timed out")
	})
}

func TestEvaluateFramework(t *testing.T) {
	tenantID := uuid.New()
	store := newFakeConfigStore()
	store.set(tenantID, compliantSnapshot())
	results := &fakeResults{}

	catalog := &fakeCatalog{requirements: []*compliance.Requirement{
		requirement(compliance.FrameworkHIPAA, "mfa_enabled"),
		requirement(compliance.FrameworkHIPAA, "audit_trail_enabled"),
		requirement(compliance.FrameworkHIPAA, "no_such_predicate"),
		requirement(compliance.FrameworkGDPR, "mfa_enabled"),
	}}

	svc := newTestService(t, catalog, store, results, newFakeLocker())

	batch, err := svc.EvaluateFramework(context.Background(), compliance.FrameworkHIPAA, tenantID, "health")
	require.NoError(t, err)

	t.Run("only framework requirements evaluated", func(t *testing.T) {
		assert.Len(t, batch, 3)
		for _, r := range batch {
			assert.Equal(t, compliance.FrameworkHIPAA, r.Framework)
		}
	})

	t.Run("bad predicate does not abort the batch", func(t *testing.T) {
		compliant := 0
		errored := 0
		for _, r := range batch {
			if r.IsCompliant {
				compliant++
			}
			if r.IsErrored() {
				errored++
			}
		}
		assert.Equal(t, 2, compliant)
		assert.Equal(t, 1, errored)
	})

	t.Run("results persisted", func(t *testing.T) {
		assert.Len(t, results.saved, 3)
	})

	t.Run("sector filter excludes requirements", func(t *testing.T) {
		restricted := requirement(compliance.FrameworkLGPD, "mfa_enabled")
		restricted.AppliesTo = []string{"government"}
		catalog.requirements = append(catalog.requirements, restricted)

		out, err := svc.EvaluateFramework(context.Background(), compliance.FrameworkLGPD, tenantID, "health")
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestEvaluateFrameworkIdempotence(t *testing.T) {
	tenantID := uuid.New()
	store := newFakeConfigStore()
	store.set(tenantID, compliantSnapshot())

	catalog := &fakeCatalog{requirements: []*compliance.Requirement{
		requirement(compliance.FrameworkHIPAA, "mfa_enabled"),
		requirement(compliance.FrameworkHIPAA, "session_idle_timeout"),
		requirement(compliance.FrameworkHIPAA, "consent_tracking_enabled"),
	}}
	svc := newTestService(t, catalog, store, &fakeResults{}, newFakeLocker())

	first, err := svc.EvaluateFramework(context.Background(), compliance.FrameworkHIPAA, tenantID, "health")
	require.NoError(t, err)
	second, err := svc.EvaluateFramework(context.Background(), compliance.FrameworkHIPAA, tenantID, "health")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].IsCompliant, second[i].IsCompliant)
		assert.Equal(t, first[i].Detail, second[i].Detail)
	}
}

func TestEvaluateMultiFramework(t *testing.T) {
	tenantID := uuid.New()
	store := newFakeConfigStore()
	store.set(tenantID, compliantSnapshot())

	catalog := &fakeCatalog{requirements: []*compliance.Requirement{
		requirement(compliance.FrameworkHIPAA, "mfa_enabled"),
		requirement(compliance.FrameworkGDPR, "audit_trail_enabled"),
	}}
	locker := newFakeLocker()
	svc := newTestService(t, catalog, store, &fakeResults{}, locker)

	t.Run("unions frameworks with tags", func(t *testing.T) {
		out, err := svc.EvaluateMultiFramework(context.Background(), tenantID, "health",
			[]compliance.Framework{compliance.FrameworkHIPAA, compliance.FrameworkGDPR})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, compliance.FrameworkHIPAA, out[0].Framework)
		assert.Equal(t, compliance.FrameworkGDPR, out[1].Framework)
	})

	t.Run("concurrent run for same tenant rejected", func(t *testing.T) {
		release, ok, err := locker.TryAcquire(context.Background(), tenantID, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		defer release()

		_, err = svc.EvaluateMultiFramework(context.Background(), tenantID, "health",
			[]compliance.Framework{compliance.FrameworkHIPAA})
		assert.Error(t, err)
	})
}

func TestEvaluateTenants(t *testing.T) {
	store := newFakeConfigStore()
	catalog := &fakeCatalog{requirements: []*compliance.Requirement{
		requirement(compliance.FrameworkHIPAA, "mfa_enabled"),
	}}
	svc := newTestService(t, catalog, store, &fakeResults{}, newFakeLocker())

	var batches []TenantBatch
	for i := 0; i < 10; i++ {
		tenantID := uuid.New()
		store.set(tenantID, compliantSnapshot())
		batches = append(batches, TenantBatch{
			TenantID:   tenantID,
			Sector:     "health",
			Frameworks: []compliance.Framework{compliance.FrameworkHIPAA},
		})
	}
	// One tenant with no snapshot: its evaluation still succeeds with an
	// error result, not a batch failure.
	missing := uuid.New()
	batches = append(batches, TenantBatch{
		TenantID:   missing,
		Sector:     "health",
		Frameworks: []compliance.Framework{compliance.FrameworkHIPAA},
	})

	results, failures := svc.EvaluateTenants(context.Background(), batches)
	assert.Empty(t, failures)
	assert.Len(t, results, 11)
	require.Len(t, results[missing], 1)
	assert.True(t, results[missing][0].IsErrored())
}
