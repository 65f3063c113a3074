package gatekeeper

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldown implements CooldownStore on Redis TTL keys, so the cooldown
// window survives restarts and is shared across processes.
type RedisCooldown struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCooldown creates a cooldown store with the given window.
func NewRedisCooldown(client *redis.Client, ttl time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, ttl: ttl}
}

// SeenRecently reports whether the key was forwarded inside the window.
func (r *RedisCooldown) SeenRecently(ctx context.Context, key string) (bool, error) {
	exists, err := r.client.Exists(ctx, cooldownKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cooldown key: %w", err)
	}
	return exists > 0, nil
}

// MarkForwarded stamps the key for the cooldown window.
func (r *RedisCooldown) MarkForwarded(ctx context.Context, key string) error {
	if err := r.client.Set(ctx, cooldownKey(key), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cooldown key: %w", err)
	}
	return nil
}

func cooldownKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("gatekeeper:cooldown:%x", hash[:8])
}

// MemoryCooldown implements CooldownStore in process memory. Used in tests
// and when Redis is not configured.
type MemoryCooldown struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryCooldown creates an in-memory cooldown store.
func NewMemoryCooldown(ttl time.Duration) *MemoryCooldown {
	return &MemoryCooldown{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// SeenRecently reports whether the key was forwarded inside the window.
func (m *MemoryCooldown) SeenRecently(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.seen[key]
	if !ok {
		return false, nil
	}
	if m.now().Sub(at) > m.ttl {
		delete(m.seen, key)
		return false, nil
	}
	return true, nil
}

// MarkForwarded stamps the key for the cooldown window.
func (m *MemoryCooldown) MarkForwarded(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[key] = m.now()
	return nil
}
