package dialer

import (
	"context"
	"time"

	"outbound-dialer/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Leaser grants exclusive ownership of a campaign run across processes.
// Acquire with the same token renews the lease.
type Leaser interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// RedisLeaser implements Leaser with compare-and-set Lua scripts.
type RedisLeaser struct {
	rdb redis.Scripter
}

func NewRedisLeaser(rdb redis.Scripter) *RedisLeaser { return &RedisLeaser{rdb: rdb} }

func (l *RedisLeaser) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return utils.AcquireLease(ctx, l.rdb, key, token, ttl)
}

func (l *RedisLeaser) Release(ctx context.Context, key, token string) error {
	return utils.ReleaseLease(ctx, l.rdb, key, token)
}

func runLeaseKey(campaignID string) string { return "dialer:run:" + campaignID }
