// internal/directory/locker.go
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker serializes rebuilds of the same tenant's directory. Rebuilds are
// idempotent, so the lock is an optimization against duplicate backend
// fetches, not a correctness requirement.
type Locker interface {
	// TryLock returns a release func and true when the lock was acquired.
	TryLock(ctx context.Context, tenantID string) (func(), bool)
}

type inprocLocker struct {
	mu    sync.Mutex
	locks map[string]bool
}

func NewInprocLocker() Locker {
	return &inprocLocker{locks: map[string]bool{}}
}

func (l *inprocLocker) TryLock(ctx context.Context, tenantID string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[tenantID] {
		return nil, false
	}
	l.locks[tenantID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.locks, tenantID)
	}, true
}

// redisLocker coordinates rebuilds across replicas with SET NX + TTL.
// On any redis error it falls open: a duplicate rebuild is cheaper than a
// blocked one.
type redisLocker struct {
	cli *redis.Client
	ttl time.Duration
	log *zap.SugaredLogger
}

func NewRedisLocker(cli *redis.Client, ttl time.Duration, log *zap.SugaredLogger) Locker {
	return &redisLocker{cli: cli, ttl: ttl, log: log}
}

func (l *redisLocker) TryLock(ctx context.Context, tenantID string) (func(), bool) {
	key := "scanbridge:rebuild:" + tenantID
	ok, err := l.cli.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		l.log.Warnw("redis lock unavailable, proceeding unlocked", "tenant", tenantID, "err", err)
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := l.cli.Del(context.Background(), key).Err(); err != nil {
			l.log.Warnw("redis lock release failed", "tenant", tenantID, "err", err)
		}
	}, true
}
