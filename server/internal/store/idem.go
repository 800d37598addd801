package store

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency guards one-shot side effects. Match settlement claims a key
// before accruing stats so a replayed terminal transition never double
// counts.
type Idempotency interface {
	SetIfNotExists(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisIdem struct {
	rdb *redis.Client
}

func NewRedisIdem(rdb *redis.Client) *RedisIdem {
	return &RedisIdem{rdb: rdb}
}

func (r *RedisIdem) SetIfNotExists(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// MemoryIdem is the process-local fallback.
type MemoryIdem struct {
	mu      sync.Mutex
	claimed map[string]time.Time
}

func NewMemoryIdem() *MemoryIdem {
	m := &MemoryIdem{claimed: make(map[string]time.Time)}
	go m.expireLoop()
	return m
}

func (m *MemoryIdem) SetIfNotExists(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.claimed[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	m.claimed[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MemoryIdem) expireLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		m.mu.Lock()
		for k, exp := range m.claimed {
			if now.After(exp) {
				delete(m.claimed, k)
			}
		}
		m.mu.Unlock()
	}
}
