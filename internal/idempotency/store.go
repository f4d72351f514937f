// Package idempotency records which side effects have already been applied so that retries do not repeat them.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store claims keys. Claim reports true only for the first caller of a key;
// Forget releases a claim so the side effect may be attempted again.
type Store interface {
	Claim(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	return s.rdb.SetNX(ctx, s.key(key), "1", s.ttl).Result()
}

func (s *RedisStore) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// MemoryStore is the single-process Store used when Redis is disabled.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	expires map[string]time.Time
	claims  int
}

// sweepEvery is how many claims pass between purges of expired keys.
const sweepEvery = 256

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		expires: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Claim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.expires[key]; ok && (s.ttl <= 0 || now.Before(exp)) {
		return false, nil
	}

	s.claims++
	if s.claims%sweepEvery == 0 {
		s.sweep(now)
	}

	s.expires[key] = now.Add(s.ttl)
	return true, nil
}

// sweep drops expired keys; claimed keys are rarely claimed twice.
func (s *MemoryStore) sweep(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for k, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, k)
		}
	}
}

func (s *MemoryStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.expires, key)
	return nil
}
