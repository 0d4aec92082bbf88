package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyPrefix = "idempotency:"

// InMemoryIdempotencyStore remembers claimed request keys in process memory.
// It only deduplicates requests served by this instance.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a store and starts its expiry sweeper
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		entries:  make(map[string]time.Time),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

// Claim records key for ttl. It returns false while an unexpired claim exists.
func (s *InMemoryIdempotencyStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

// Release forgets key so the request can be retried
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of stored claims, expired ones included
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, key)
		}
	}
}

// RedisIdempotencyStore shares claimed request keys between instances
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore wraps an existing client. The caller owns the client.
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// Claim sets the key with SETNX so exactly one caller wins
func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Release deletes the key
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
