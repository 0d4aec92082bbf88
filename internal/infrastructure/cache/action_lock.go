package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "billing:lock:"

// RedisActionLocker hands out per-key leases stored in Redis so that only one
// process works on a key at a time.
type RedisActionLocker struct {
	client *redislock.Client
}

// NewRedisActionLocker creates a locker on top of an existing Redis client
func NewRedisActionLocker(rdb redis.UniversalClient) *RedisActionLocker {
	return &RedisActionLocker{client: redislock.New(rdb)}
}

// Obtain takes the lease without waiting. A held key fails with
// shared.ErrActionInProgress.
func (l *RedisActionLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	lock, err := l.client.Obtain(ctx, lockKeyPrefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, shared.ErrActionInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return &redisLease{lock: lock}, nil
}

type redisLease struct {
	lock *redislock.Lock
}

// Release frees the lease. An already expired lease is not an error.
func (r *redisLease) Release(ctx context.Context) error {
	if err := r.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return err
	}
	return nil
}

// InMemoryActionLocker is the single-process Locker used when Redis is not
// configured and in tests.
type InMemoryActionLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	seq    uint64
	now    func() time.Time
}

type memoryLease struct {
	token     uint64
	expiresAt time.Time
}

// NewInMemoryActionLocker creates an empty in-memory locker
func NewInMemoryActionLocker() *InMemoryActionLocker {
	return &InMemoryActionLocker{
		leases: make(map[string]memoryLease),
		now:    time.Now,
	}
}

// Obtain takes the lease unless an unexpired one exists
func (l *InMemoryActionLocker) Obtain(_ context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expiresAt) {
		return nil, shared.ErrActionInProgress
	}
	l.seq++
	lease := memoryLease{token: l.seq, expiresAt: now.Add(ttl)}
	l.leases[key] = lease
	return &inMemoryLease{locker: l, key: key, token: lease.token}, nil
}

type inMemoryLease struct {
	locker *InMemoryActionLocker
	key    string
	token  uint64
}

// Release drops the lease if it is still the current holder
func (r *inMemoryLease) Release(context.Context) error {
	r.locker.mu.Lock()
	defer r.locker.mu.Unlock()
	if held, ok := r.locker.leases[r.key]; ok && held.token == r.token {
		delete(r.locker.leases, r.key)
	}
	return nil
}

var (
	_ shared.Locker = (*RedisActionLocker)(nil)
	_ shared.Locker = (*InMemoryActionLocker)(nil)
)
