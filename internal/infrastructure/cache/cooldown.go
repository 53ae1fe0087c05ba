package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore suppresses repeat alerts within a window. The check and
// the mark are one SetNX, so concurrent evaluators cannot both pass.
type CooldownStore struct {
	client *redis.Client
}

// NewCooldownStore creates a Redis-backed cooldown store.
func NewCooldownStore(client *redis.Client) *CooldownStore {
	return &CooldownStore{client: client}
}

// TrySet marks the key for ttl. False means the key is still cooling
// down from an earlier mark.
func (s *CooldownStore) TrySet(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, cooldownPrefix+key, 1, ttl).Result()
}
