package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/metrics"
)

// Config holds the scoring service configuration.
type Config struct {
	// ResultWindow bounds how far back results are read when scoring a
	// tenant from history.
	ResultWindow time.Duration `json:"result_window"`
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{ResultWindow: 24 * time.Hour}
}

// Service derives compliance scores from validation results. Scores are
// computed, never stored as authoritative state; the cache only carries
// the latest derivation per tenant.
type Service struct {
	logger  *zap.Logger
	results compliance.ResultRepository
	cache   ScoreCache
	metrics *metrics.Registry
	config  Config
}

// NewService creates a scoring service. The cache may be nil, in which
// case every read recomputes from result history.
func NewService(
	logger *zap.Logger,
	results compliance.ResultRepository,
	cache ScoreCache,
	metricsRegistry *metrics.Registry,
	config Config,
) *Service {
	return &Service{
		logger:  logger,
		results: results,
		cache:   cache,
		metrics: metricsRegistry,
		config:  config,
	}
}

// Score aggregates a result batch into per-framework, per-domain and
// overall scores, and refreshes the tenant's cached score set.
func (s *Service) Score(ctx context.Context, tenantID uuid.UUID, results []*compliance.ValidationResult) []compliance.ComplianceScore {
	scores := compliance.ComputeScores(tenantID, results)
	if s.metrics != nil {
		s.metrics.ScoreComputations.Add(ctx, 1)
	}
	if scores == nil {
		return nil
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, tenantID, scores); err != nil {
			// Cache refresh failure is not a scoring failure.
			s.logger.Warn("score cache refresh failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}

	overall := scores[len(scores)-1]
	s.logger.Info("scores computed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("groups", len(scores)),
		zap.Float64("overall_percentage", overall.Percentage),
		zap.String("overall_irr", overall.IRR().String()),
	)
	return scores
}

// ScoreTenant recomputes scores from the tenant's recent result history.
func (s *Service) ScoreTenant(ctx context.Context, tenantID uuid.UUID) ([]compliance.ComplianceScore, error) {
	since := time.Now().UTC().Add(-s.config.ResultWindow)
	results, err := s.results.ListByTenant(ctx, tenantID, since)
	if err != nil {
		return nil, errors.Wrap(err, "list validation results")
	}
	return s.Score(ctx, tenantID, results), nil
}

// LatestScores returns the cached score set, recomputing from history on
// a cache miss.
func (s *Service) LatestScores(ctx context.Context, tenantID uuid.UUID) ([]compliance.ComplianceScore, error) {
	if s.cache != nil {
		scores, ok, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			s.logger.Warn("score cache read failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		} else if ok {
			return scores, nil
		}
	}
	return s.ScoreTenant(ctx, tenantID)
}

// OverallScore extracts the overall rollup row from a score set.
func OverallScore(scores []compliance.ComplianceScore) (compliance.ComplianceScore, bool) {
	for i := len(scores) - 1; i >= 0; i-- {
		if scores[i].Framework == compliance.FrameworkOverall && scores[i].Domain == compliance.DomainGeneral {
			return scores[i], true
		}
	}
	return compliance.ComplianceScore{}, false
}
