package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps failures talking to the shared revocation list.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RevocationList is an authoritative denylist of logged-out token ids. Entries only
// need to outlive the token they revoke.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// Prune drops entries whose tokens have expired and returns the count.
	Prune(ctx context.Context, now time.Time) (int, error)
}

// MemoryRevocations keeps revocations in process. The expirable LRU drops entries
// after maxTTL; each entry also carries its own deadline, checked on read.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, time.Time]
	now     func() time.Time
}

// NewMemoryRevocations builds an unbounded in-process list. maxTTL should be at
// least the session duration.
func NewMemoryRevocations(maxTTL time.Duration) *MemoryRevocations {
	return &MemoryRevocations{
		entries: expirable.NewLRU[string, time.Time](0, nil, maxTTL),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for deadlines. It must be set before
// the list is shared.
func (m *MemoryRevocations) WithClock(now func() time.Time) *MemoryRevocations {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries.Add(tokenID, m.now().Add(ttl))
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deadline, ok := m.entries.Get(tokenID)
	if !ok {
		return false, nil
	}
	if m.now().After(deadline) {
		m.entries.Remove(tokenID)
		return false, nil
	}
	return true, nil
}

func (m *MemoryRevocations) Prune(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, id := range m.entries.Keys() {
		deadline, ok := m.entries.Peek(id)
		if ok && now.After(deadline) {
			m.entries.Remove(id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of tracked revocations.
func (m *MemoryRevocations) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.entries.Len()
}

// RedisRevocations shares revocations between processes. Each id is a key with a
// TTL equal to the token's remaining lifetime, so Redis expires them on its own.
type RedisRevocations struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisRevocations(client redis.UniversalClient, prefix string) *RedisRevocations {
	if prefix == "" {
		prefix = "authcore"
	}
	return &RedisRevocations{redis: client, prefix: prefix}
}

func (r *RedisRevocations) key(tokenID string) string {
	return r.prefix + ":revoked:" + tokenID
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, r.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Prune is a no-op: Redis expires revocation keys itself.
func (r *RedisRevocations) Prune(context.Context, time.Time) (int, error) {
	return 0, nil
}
