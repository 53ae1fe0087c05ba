package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/infrastructure/database"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/infrastructure/telemetry"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/alerting"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/reporting"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/risk"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/scoring"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/validation"
)

// Runner drives the periodic evaluation loop: validate every active
// tenant, derive scores, translate findings into risk entries, evaluate
// alert rules and refresh the report payload.
type Runner struct {
	logger     *zap.Logger
	interval   time.Duration
	tenants    *database.TenantRepository
	validator  *validation.Service
	scorer     *scoring.Service
	translator *risk.Service
	alerter    *alerting.Service
	reporter   *reporting.Service
}

// NewRunner assembles the cycle loop.
func NewRunner(
	logger *zap.Logger,
	interval time.Duration,
	tenants *database.TenantRepository,
	validator *validation.Service,
	scorer *scoring.Service,
	translator *risk.Service,
	alerter *alerting.Service,
	reporter *reporting.Service,
) *Runner {
	return &Runner{
		logger:     logger,
		interval:   interval,
		tenants:    tenants,
		validator:  validator,
		scorer:     scorer,
		translator: translator,
		alerter:    alerter,
		reporter:   reporter,
	}
}

// Run executes cycles until the context is cancelled. The first cycle
// starts immediately; subsequent cycles follow the configured interval.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("evaluation loop started", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("evaluation loop stopping")
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	start := time.Now()
	tracer := telemetry.Tracer("compliance-runner")

	tenants, err := r.tenants.ListActive(ctx)
	if err != nil {
		r.logger.Error("failed to list tenants, cycle skipped", zap.Error(err))
		return
	}
	if len(tenants) == 0 {
		r.logger.Info("no active tenants")
		return
	}

	byID := make(map[string]*database.Tenant, len(tenants))
	batches := make([]validation.TenantBatch, 0, len(tenants))
	for _, t := range tenants {
		byID[t.TenantID.String()] = t
		batches = append(batches, validation.TenantBatch{
			TenantID:   t.TenantID,
			Sector:     t.Sector,
			Frameworks: t.Frameworks,
		})
	}

	results, failures := r.validator.EvaluateTenants(ctx, batches)
	for tenantID, err := range failures {
		r.logger.Error("tenant evaluation failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	}

	for tenantID, tenantResults := range results {
		tenant := byID[tenantID.String()]
		if tenant == nil || len(tenantResults) == 0 {
			continue
		}

		cycleCtx, span := telemetry.StartCycleSpan(ctx, tracer, tenantID.String())

		scores := r.scorer.Score(cycleCtx, tenantID, tenantResults)

		if _, err := r.translator.TranslateBatch(cycleCtx, tenantID, tenantResults, scores); err != nil {
			telemetry.WithSpanError(span, err)
			r.logger.Error("risk translation failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}

		alerts, err := r.alerter.EvaluateCycle(cycleCtx, alerting.CycleInput{
			TenantID:     tenantID,
			Sector:       tenant.Sector,
			Jurisdiction: tenant.Jurisdiction,
			Results:      tenantResults,
			Scores:       scores,
		})
		if err != nil {
			telemetry.WithSpanError(span, err)
			r.logger.Error("alert evaluation failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}

		now := time.Now().UTC()
		payload, err := r.reporter.Build(cycleCtx, tenantID, now.Add(-24*time.Hour), now)
		if err != nil {
			r.logger.Warn("report payload build failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		} else {
			r.logger.Debug("report payload refreshed",
				zap.String("tenant_id", tenantID.String()),
				zap.Int("results", len(payload.Results)),
				zap.Int("scores", len(payload.Scores)),
			)
		}

		span.End()
		r.logger.Info("tenant cycle complete",
			zap.String("tenant_id", tenantID.String()),
			zap.String("tenant", tenant.Name),
			zap.Int("results", len(tenantResults)),
			zap.Int("scores", len(scores)),
			zap.Int("alerts", len(alerts)),
		)
	}

	r.logger.Info("cycle complete",
		zap.Int("tenants", len(tenants)),
		zap.Int("failures", len(failures)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
