package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefLock serialises job processing per application reference. The queue
// delivers at least once, so two workers can hold the same job concurrently;
// whoever loses the lock backs off and lets the redelivery find the payment
// already committed. The payments unique indexes remain the hard backstop.
type RefLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRefLock(rdb *redis.Client, ttl time.Duration) *RefLock {
	return &RefLock{rdb: rdb, ttl: ttl}
}

func (l *RefLock) key(reference string) string {
	return fmt.Sprintf("reconcile:lock:%s", reference)
}

// Acquire takes the per-reference lock. Returns false when another worker
// holds it.
func (l *RefLock) Acquire(ctx context.Context, reference string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key(reference), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire reference lock: %w", err)
	}
	return ok, nil
}

func (l *RefLock) Release(ctx context.Context, reference string) error {
	return l.rdb.Del(ctx, l.key(reference)).Err()
}
