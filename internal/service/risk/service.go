package risk

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/risk"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/metrics"
)

// Service translates non-compliant validation results into risk register
// entries. The register is an append-only risk log; re-translating the
// same finding appends a new entry rather than updating an open one.
type Service struct {
	logger   *zap.Logger
	catalog  compliance.CatalogRepository
	register risk.Repository
	mappings risk.MappingRepository
	configs  risk.ConfigStore
	metrics  *metrics.Registry
}

// NewService creates a risk translation service.
func NewService(
	logger *zap.Logger,
	catalog compliance.CatalogRepository,
	register risk.Repository,
	mappings risk.MappingRepository,
	configs risk.ConfigStore,
	metricsRegistry *metrics.Registry,
) *Service {
	return &Service{
		logger:   logger,
		catalog:  catalog,
		register: register,
		mappings: mappings,
		configs:  configs,
		metrics:  metricsRegistry,
	}
}

// Translate converts one validation result into a persisted risk entry.
// Compliant results and findings without an active validator mapping
// yield no entry; the unmapped case is counted and logged so the gap in
// mapping coverage stays visible.
func (s *Service) Translate(ctx context.Context, result *compliance.ValidationResult, complianceScore float64) (*risk.Entry, error) {
	if result.IsCompliant {
		return nil, nil
	}

	req, err := s.catalog.GetByID(ctx, result.RequirementID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve requirement")
	}

	mapping, err := s.mappings.GetActiveByValidator(ctx, req.PredicateRef)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeMapping) || errors.IsType(err, errors.ErrorTypeNotFound) {
			if s.metrics != nil {
				s.metrics.RecordUnmappedFinding(ctx, req.PredicateRef)
			}
			s.logger.Warn("non-compliant finding has no active risk mapping",
				zap.String("validator_id", req.PredicateRef),
				zap.String("tenant_id", result.TenantID.String()),
				zap.String("requirement", req.Name),
			)
			return nil, nil
		}
		return nil, errors.Wrap(err, "resolve risk mapping")
	}

	cfg, err := s.configs.GetOrCreateDefault(ctx, result.TenantID)
	if err != nil {
		return nil, errors.Wrap(err, "load tenant risk config")
	}

	weighted := complianceScore * mapping.ProbabilityFactor
	probability := risk.ProbabilityFromScore(weighted)

	entry := risk.NewEntry(result.TenantID, result.ID, mapping.Category,
		mapping.ImpactLevel, probability, cfg.ControlEffectiveness)
	if err := s.register.Save(ctx, entry); err != nil {
		return nil, errors.Wrap(err, "save risk entry")
	}

	if s.metrics != nil {
		s.metrics.RiskEntriesCreated.Add(ctx, 1)
	}
	s.logger.Info("risk entry created",
		zap.String("risk_id", entry.RiskID.String()),
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("category", entry.Category),
		zap.Float64("inherent_score", entry.InherentScore),
		zap.Float64("residual_score", entry.ResidualScore),
		zap.Bool("exceeds_appetite", cfg.ExceedsAppetite(entry.ResidualScore)),
	)
	return entry, nil
}

// TranslateBatch runs translation over a result batch using the tenant's
// per-framework compliance percentages for probability weighting. A
// translation failure for one result is collected, not fatal to the rest.
func (s *Service) TranslateBatch(ctx context.Context, tenantID uuid.UUID, results []*compliance.ValidationResult, scores []compliance.ComplianceScore) ([]*risk.Entry, error) {
	byFramework := make(map[compliance.Framework]float64, len(scores))
	overall := 0.0
	for _, sc := range scores {
		if sc.Framework == compliance.FrameworkOverall {
			if sc.Domain == compliance.DomainGeneral {
				overall = sc.Percentage
			}
			continue
		}
		byFramework[sc.Framework] = sc.Percentage
	}

	var entries []*risk.Entry
	var firstErr error
	failed := 0
	for _, result := range results {
		pct, ok := byFramework[result.Framework]
		if !ok {
			pct = overall
		}
		entry, err := s.Translate(ctx, result, pct)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Error("risk translation failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("validation_id", result.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if entry != nil {
			entries = append(entries, entry)
		}
	}

	if failed > 0 && len(entries) == 0 {
		return nil, firstErr
	}
	return entries, nil
}

// UpdateStatus drives an externally requested lifecycle transition on a
// register entry, recording the actor in the treatment history.
func (s *Service) UpdateStatus(ctx context.Context, riskID uuid.UUID, target risk.Status, actor, notes string) (*risk.Entry, error) {
	entry, err := s.register.GetByID(ctx, riskID)
	if err != nil {
		return nil, errors.Wrap(err, "load risk entry")
	}
	if err := entry.Transition(target, actor, notes); err != nil {
		return nil, err
	}
	if err := s.register.Update(ctx, entry); err != nil {
		return nil, errors.Wrap(err, "update risk entry")
	}
	s.logger.Info("risk entry transitioned",
		zap.String("risk_id", riskID.String()),
		zap.String("status", string(target)),
		zap.String("actor", actor),
	)
	return entry, nil
}

// OpenEntries lists the tenant's non-closed register entries.
func (s *Service) OpenEntries(ctx context.Context, tenantID uuid.UUID) ([]*risk.Entry, error) {
	return s.register.ListOpenByTenant(ctx, tenantID)
}
