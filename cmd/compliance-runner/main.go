package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/infrastructure/cache"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/infrastructure/config"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/infrastructure/database"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/infrastructure/telemetry"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/metrics"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/alerting"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/economic"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/reporting"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/risk"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/scoring"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/service/validation"
)

func main() {
	var configPath = flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SamplingRate:   cfg.Telemetry.TraceSampling,
		ExportTimeout:  10 * time.Second,
	})
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := cache.NewRedisClient(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	metricsRegistry, err := metrics.NewRegistry(cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Fatal("failed to create metrics registry", zap.Error(err))
	}

	runner := buildRunner(cfg, logger, pool, redisClient, metricsRegistry)

	var metricsServer *http.Server
	if cfg.Telemetry.MetricsEnabled {
		metricsServer = &http.Server{
			Addr:    cfg.Runner.MetricsAddr,
			Handler: metricsHandler(provider),
		}
		go func() {
			logger.Info("metrics endpoint listening", zap.String("addr", cfg.Runner.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Runner.ShutdownTimeout)
	defer cancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	logger.Info("runner stopped")
}

func metricsHandler(provider *telemetry.Provider) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(provider.PromRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func buildRunner(
	cfg *config.Config,
	logger *zap.Logger,
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	metricsRegistry *metrics.Registry,
) *Runner {
	tenants := database.NewTenantRepository(pool)
	catalog := database.NewRequirementRepository(pool)
	results := database.NewResultRepository(pool)
	riskRegister := database.NewRiskRepository(pool)
	riskMappings := database.NewMappingRepository(pool)
	riskConfigs := database.NewConfigStore(pool)
	alertRepo := database.NewAlertRepository(pool)
	ruleRepo := database.NewRuleRepository(pool)
	factors := database.NewFactorRepository(pool)
	history := database.NewHistoryRepository(pool)
	iamConfigs := database.NewIAMConfigStore(pool)

	runLock := cache.NewRunLock(redisClient, logger)
	cooldowns := cache.NewCooldownStore(redisClient)
	scoreCache := cache.NewScoreCache(redisClient, cfg.Pipeline.ScoreCacheTTL)

	registry := validation.NewRegistry()
	validation.RegisterBuiltins(registry)

	validator := validation.NewService(
		logger.Named("validation"), catalog, results, iamConfigs, runLock, registry,
		metricsRegistry, validation.Config{
			PredicateTimeout:     cfg.Pipeline.PredicateTimeout,
			MaxConcurrentTenants: cfg.Pipeline.MaxConcurrentTenants,
			ConfigStoreRate:      cfg.Pipeline.ConfigStoreRate,
			ConfigStoreBurst:     cfg.Pipeline.ConfigStoreBurst,
			RunLockTTL:           cfg.Pipeline.RunLockTTL,
		})

	scorer := scoring.NewService(
		logger.Named("scoring"), results, scoreCache, metricsRegistry, scoring.DefaultConfig())

	translator := risk.NewService(
		logger.Named("risk"), catalog, riskRegister, riskMappings, riskConfigs, metricsRegistry)

	estimator := economic.NewService(
		logger.Named("economic"), factors, history, nil, metricsRegistry, economic.Config{
			DefaultCurrency: cfg.Pipeline.DefaultCurrency,
			HistoryMonths:   cfg.Pipeline.HistoryMonths,
		})

	alerter := alerting.NewService(
		logger.Named("alerting"), alertRepo, ruleRepo, results, catalog,
		cooldowns, estimator, metricsRegistry)

	reporter := reporting.NewService(logger.Named("reporting"), results)

	return NewRunner(logger.Named("runner"), cfg.Runner.CycleInterval,
		tenants, validator, scorer, translator, alerter, reporter)
}
