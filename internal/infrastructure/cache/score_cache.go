package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
)

// ScoreCache holds the latest derived score set per tenant. Scores are
// always recomputable from result history; a cold cache only costs a
// recompute.
type ScoreCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewScoreCache creates a Redis-backed score cache.
func NewScoreCache(client *redis.Client, ttl time.Duration) *ScoreCache {
	return &ScoreCache{client: client, ttl: ttl}
}

// Put replaces the tenant's cached score set.
func (c *ScoreCache) Put(ctx context.Context, tenantID uuid.UUID, scores []compliance.ComplianceScore) error {
	data, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, scorePrefix+tenantID.String(), data, c.ttl).Err()
}

// Get returns the cached scores and whether an entry existed.
func (c *ScoreCache) Get(ctx context.Context, tenantID uuid.UUID) ([]compliance.ComplianceScore, bool, error) {
	data, err := c.client.Get(ctx, scorePrefix+tenantID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var scores []compliance.ComplianceScore
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, false, err
	}
	return scores, true, nil
}
