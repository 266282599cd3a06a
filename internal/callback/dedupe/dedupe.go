// Package dedupe remembers which callback events have already been handled so
// redelivered events are acknowledged without running their action twice.
package dedupe

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store claims event keys. Claim returns true only for the first caller of a
// key within the retention window.
type Store interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// Memory is a process-local Store.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	seen   map[string]time.Time
	claims int
}

type MemoryOption func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.claims++
	if m.claims%256 == 0 {
		m.prune(now)
	}
	if expires, ok := m.seen[key]; ok && now.Before(expires) {
		return false, nil
	}
	m.seen[key] = now.Add(m.ttl)
	return true, nil
}

// prune must be called with m.mu held.
func (m *Memory) prune(now time.Time) {
	for k, expires := range m.seen {
		if !now.Before(expires) {
			delete(m.seen, k)
		}
	}
}

// Len reports how many keys are retained, expired ones included until pruned.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

const keyPrefix = "onboard:callback:"

// Redis shares claims across instances with SET NX and an expiry.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed store. The client lifecycle is managed by
// the caller.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Claim(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, keyPrefix+key, "1", r.ttl).Result()
}
