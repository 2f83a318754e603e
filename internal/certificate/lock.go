package certificate

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"veristamp/internal/verification/models"
)

// Locker serializes mint attempts for a single verification across processes.
type Locker interface {
	// Acquire returns true when this caller holds the mint lock for id.
	Acquire(ctx context.Context, id models.VerificationID) (bool, error)
	Release(ctx context.Context, id models.VerificationID) error
}

const (
	mintLockKeyPrefix = "mint:lock:"
	mintLockTTL       = 2 * time.Minute
)

// RedisLock is the production Locker for multi-instance deployments. The TTL
// bounds how long a crashed holder can block later attempts.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) Acquire(ctx context.Context, id models.VerificationID) (bool, error) {
	key := mintLockKeyPrefix + id.String()
	return l.client.SetNX(ctx, key, "1", mintLockTTL).Result()
}

func (l *RedisLock) Release(ctx context.Context, id models.VerificationID) error {
	key := mintLockKeyPrefix + id.String()
	return l.client.Del(ctx, key).Err()
}

// LocalLock is the single-process Locker used when Redis is not configured.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]bool)}
}

func (l *LocalLock) Acquire(_ context.Context, id models.VerificationID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := id.String()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *LocalLock) Release(_ context.Context, id models.VerificationID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id.String())
	return nil
}
