package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only when it still holds our token, so
// a holder whose lock expired cannot release a lock re-acquired by
// someone else.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RunLock serializes evaluation runs per tenant across processes using a
// Redis SetNX lease with a TTL as crash protection.
type RunLock struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRunLock creates a Redis-backed tenant run lock.
func NewRunLock(client *redis.Client, logger *zap.Logger) *RunLock {
	return &RunLock{client: client, logger: logger}
}

// TryAcquire takes the tenant's lock for at most ttl. It returns false
// without error when another run holds the lock. The returned release
// function is safe to call after the lease expired.
func (l *RunLock) TryAcquire(ctx context.Context, tenantID uuid.UUID, ttl time.Duration) (func(), bool, error) {
	key := runLockPrefix + tenantID.String()
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Best effort; the TTL reclaims the lock if this fails.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("run lock release failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}
	return release, true, nil
}
