package affiliate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RotationStore hands out round-robin indexes for a session+tool pair.
// The browser-session counter of the original design is replaced by a
// server-side counter keyed by session ID, so rotation survives across
// requests from the same visitor.
type RotationStore interface {
	Next(ctx context.Context, sessionID string, toolID uint, count int) (int, error)
}

// RedisRotation stores rotation counters in redis with a sliding expiry so
// abandoned sessions do not accumulate keys.
type RedisRotation struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisRotation creates a redis-backed rotation store
func NewRedisRotation(rdb *redis.Client) *RedisRotation {
	return &RedisRotation{rdb: rdb, ttl: 24 * time.Hour}
}

func (r *RedisRotation) Next(ctx context.Context, sessionID string, toolID uint, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}
	key := fmt.Sprintf("tf:rr:%s:%d", sessionID, toolID)
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	r.rdb.Expire(ctx, key, r.ttl)
	return int((n - 1) % int64(count)), nil
}

// MemoryRotation is an in-process rotation store for tests and single-node
// development setups.
type MemoryRotation struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewMemoryRotation creates an in-memory rotation store
func NewMemoryRotation() *MemoryRotation {
	return &MemoryRotation{counters: make(map[string]int)}
}

func (m *MemoryRotation) Next(_ context.Context, sessionID string, toolID uint, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s:%d", sessionID, toolID)
	idx := m.counters[key] % count
	m.counters[key]++
	return idx, nil
}
