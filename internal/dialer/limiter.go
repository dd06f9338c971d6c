package dialer

import (
	"context"
	"fmt"
	"time"

	"outbound-dialer/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// InflightLimiter caps concurrent calls per account across every run and process.
type InflightLimiter interface {
	// Acquire blocks until a slot is free or ctx is done. The returned func releases the slot.
	Acquire(ctx context.Context, accountID string) (release func(), err error)
}

// RedisInflightLimiter polls the shared Redis counter until a slot frees up.
type RedisInflightLimiter struct {
	rdb   redis.Scripter
	limit int
	ttl   time.Duration
	poll  time.Duration
}

func NewRedisInflightLimiter(rdb redis.Scripter, limit int, ttl, poll time.Duration) *RedisInflightLimiter {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	return &RedisInflightLimiter{rdb: rdb, limit: limit, ttl: ttl, poll: poll}
}

func inflightKey(accountID string) string { return "dialer:inflight:" + accountID }

func (l *RedisInflightLimiter) Acquire(ctx context.Context, accountID string) (func(), error) {
	key := inflightKey(accountID)
	for {
		ok, err := utils.AcquireConcurrencyCap(ctx, l.rdb, key, l.limit, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire inflight slot: %w", err)
		}
		if ok {
			return func() {
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				_ = utils.ReleaseConcurrencyCap(rctx, l.rdb, key)
			}, nil
		}
		if err := utils.Sleep(ctx, l.poll); err != nil {
			return nil, err
		}
	}
}
