package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/infrastructure/config"
)

// Key prefixes for consistent cache key naming.
const (
	runLockPrefix  = "iamcomp:runlock:"
	cooldownPrefix = "iamcomp:cooldown:"
	scorePrefix    = "iamcomp:scores:"
)

// NewRedisClient connects a Redis client and verifies the connection.
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("redis connected",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB),
	)
	return client, nil
}
