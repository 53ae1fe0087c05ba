package validation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/metrics"
)

// Config holds the validation service configuration.
type Config struct {
	// PredicateTimeout bounds a single predicate evaluation; a hanging
	// predicate is abandoned and recorded as an error result.
	PredicateTimeout time.Duration `json:"predicate_timeout"`
	// MaxConcurrentTenants bounds the tenant worker pool to protect the
	// configuration data source.
	MaxConcurrentTenants int `json:"max_concurrent_tenants"`
	// ConfigStoreRate and ConfigStoreBurst throttle reads against the
	// external configuration store.
	ConfigStoreRate  float64       `json:"config_store_rate"`
	ConfigStoreBurst int           `json:"config_store_burst"`
	RunLockTTL       time.Duration `json:"run_lock_ttl"`
}

// DefaultConfig returns the default validation configuration.
func DefaultConfig() Config {
	return Config{
		PredicateTimeout:     5 * time.Second,
		MaxConcurrentTenants: 8,
		ConfigStoreRate:      200,
		ConfigStoreBurst:     50,
		RunLockTTL:           2 * time.Minute,
	}
}

// Service executes requirement predicates against tenant configuration
// snapshots. One failing predicate never aborts evaluation of the
// remaining requirements in a batch.
type Service struct {
	logger   *zap.Logger
	catalog  compliance.CatalogRepository
	results  compliance.ResultRepository
	registry *Registry
	store    ConfigStore
	locker   RunLocker
	metrics  *metrics.Registry
	config   Config
}

// NewService creates a validation service. The configuration store is
// wrapped with a rate limiter per the service configuration.
func NewService(
	logger *zap.Logger,
	catalog compliance.CatalogRepository,
	results compliance.ResultRepository,
	store ConfigStore,
	locker RunLocker,
	registry *Registry,
	metricsRegistry *metrics.Registry,
	config Config,
) *Service {
	limited := &rateLimitedStore{
		inner:   store,
		limiter: rate.NewLimiter(rate.Limit(config.ConfigStoreRate), config.ConfigStoreBurst),
	}
	return &Service{
		logger:   logger,
		catalog:  catalog,
		results:  results,
		registry: registry,
		store:    limited,
		locker:   locker,
		metrics:  metricsRegistry,
		config:   config,
	}
}

// TenantBatch names one tenant's evaluation scope.
type TenantBatch struct {
	TenantID   uuid.UUID
	Sector     string
	Frameworks []compliance.Framework
}

// Evaluate runs one requirement's predicate against the tenant context.
// Predicate errors, timeouts and panics are folded into a non-compliant
// result with an error detail; they are never dropped from the batch.
func (s *Service) Evaluate(ctx context.Context, req *compliance.Requirement, tc *TenantContext) *compliance.ValidationResult {
	start := time.Now()

	pred, err := s.registry.Lookup(req.PredicateRef)
	if err != nil {
		s.logger.Warn("predicate not registered",
			zap.String("predicate_ref", req.PredicateRef),
			zap.String("requirement", req.Name),
		)
		return s.record(ctx, compliance.NewErrorResult(req, tc.TenantID, err), start)
	}

	compliant, detail, err := s.evaluateWithTimeout(ctx, pred, tc, req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PredicateErrorCounter.Add(ctx, 1)
		}
		s.logger.Warn("predicate evaluation failed",
			zap.String("predicate_ref", req.PredicateRef),
			zap.String("tenant_id", tc.TenantID.String()),
			zap.Error(err),
		)
		return s.record(ctx, compliance.NewErrorResult(req, tc.TenantID, err), start)
	}

	if compliant {
		return s.record(ctx, compliance.NewCompliantResult(req, tc.TenantID, detail), start)
	}
	return s.record(ctx, compliance.NewNonCompliantResult(req, tc.TenantID, detail), start)
}

func (s *Service) record(ctx context.Context, result *compliance.ValidationResult, start time.Time) *compliance.ValidationResult {
	if s.metrics != nil {
		s.metrics.RecordValidation(ctx, string(result.Framework), result.IsCompliant,
			float64(time.Since(start).Microseconds())/1000.0)
	}
	return result
}

type predicateOutcome struct {
	compliant bool
	detail    string
	err       error
}

// evaluateWithTimeout isolates a predicate run: panics are recovered and
// a predicate that ignores cancellation is abandoned after the timeout
// rather than blocking the rest of the batch.
func (s *Service) evaluateWithTimeout(ctx context.Context, pred Predicate, tc *TenantContext, req *compliance.Requirement) (bool, string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.config.PredicateTimeout)
	defer cancel()

	outcome := make(chan predicateOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- predicateOutcome{err: fmt.Errorf("predicate panic: %v", r)}
			}
		}()
		compliant, detail, err := pred.Evaluate(timeoutCtx, tc, req)
		outcome <- predicateOutcome{compliant: compliant, detail: detail, err: err}
	}()

	select {
	case o := <-outcome:
		return o.compliant, o.detail, o.err
	case <-timeoutCtx.Done():
		if s.metrics != nil {
			s.metrics.PredicateTimeoutCounter.Add(ctx, 1)
		}
		return false, "", fmt.Errorf("predicate timed out after %s", s.config.PredicateTimeout)
	}
}

// EvaluateFramework iterates the full requirement catalog for a
// framework, preserving per-item isolation, and persists the results as
// append-only history.
func (s *Service) EvaluateFramework(ctx context.Context, frameworkID compliance.Framework, tenantID uuid.UUID, sector string) ([]*compliance.ValidationResult, error) {
	requirements, err := s.catalog.ListByFramework(ctx, frameworkID)
	if err != nil {
		return nil, errors.Wrap(err, "list requirements")
	}

	tc := NewTenantContext(tenantID, sector, s.store)
	results := make([]*compliance.ValidationResult, 0, len(requirements))
	for _, req := range requirements {
		if !req.AppliesToSector(sector) {
			continue
		}
		results = append(results, s.Evaluate(ctx, req, tc))
	}

	if len(results) > 0 {
		if err := s.results.SaveBatch(ctx, results); err != nil {
			return nil, errors.Wrap(err, "save validation results")
		}
	}

	compliant := 0
	for _, r := range results {
		if r.IsCompliant {
			compliant++
		}
	}
	s.logger.Info("framework evaluation completed",
		zap.String("framework", string(frameworkID)),
		zap.String("tenant_id", tenantID.String()),
		zap.Int("total", len(results)),
		zap.Int("compliant", compliant),
	)

	return results, nil
}

// EvaluateMultiFramework unions several framework evaluations for one
// tenant under the tenant's run lock, so concurrent runs for the same
// tenant are serialized while independent tenants proceed in parallel.
func (s *Service) EvaluateMultiFramework(ctx context.Context, tenantID uuid.UUID, sector string, frameworks []compliance.Framework) ([]*compliance.ValidationResult, error) {
	release, ok, err := s.locker.TryAcquire(ctx, tenantID, s.config.RunLockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "acquire tenant run lock")
	}
	if !ok {
		return nil, errors.NewConflictError("validation run already in progress for tenant").
			WithDetails(map[string]interface{}{"tenant_id": tenantID.String()})
	}
	defer release()

	var all []*compliance.ValidationResult
	for _, fw := range frameworks {
		results, err := s.EvaluateFramework(ctx, fw, tenantID, sector)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}
	return all, nil
}

// EvaluateTenants runs multi-framework evaluations for a set of tenants
// through a bounded worker pool. Per-tenant failures are collected, not
// fatal to the batch.
func (s *Service) EvaluateTenants(ctx context.Context, batches []TenantBatch) (map[uuid.UUID][]*compliance.ValidationResult, map[uuid.UUID]error) {
	sem := make(chan struct{}, s.config.MaxConcurrentTenants)
	var wg sync.WaitGroup
	var mu sync.Mutex

	results := make(map[uuid.UUID][]*compliance.ValidationResult, len(batches))
	failures := make(map[uuid.UUID]error)

	for _, batch := range batches {
		wg.Add(1)
		go func(b TenantBatch) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			tenantResults, err := s.EvaluateMultiFramework(ctx, b.TenantID, b.Sector, b.Frameworks)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[b.TenantID] = err
				return
			}
			results[b.TenantID] = tenantResults
		}(batch)
	}
	wg.Wait()

	return results, failures
}

// rateLimitedStore throttles reads against the external configuration
// store.
type rateLimitedStore struct {
	inner   ConfigStore
	limiter *rate.Limiter
}

func (s *rateLimitedStore) Query(ctx context.Context, tenantID uuid.UUID, path string) (interface{}, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Query(ctx, tenantID, path)
}

func (s *rateLimitedStore) Snapshot(ctx context.Context, tenantID uuid.UUID) (map[string]interface{}, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Snapshot(ctx, tenantID)
}
