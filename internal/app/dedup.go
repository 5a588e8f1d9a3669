package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator remembers webhook deliveries that have already been processed.
type Deduplicator interface {
	// Claim records key and reports whether this is its first sighting within the TTL.
	Claim(ctx context.Context, key string) (bool, error)
	// Forget releases key so a later delivery is processed again.
	Forget(ctx context.Context, key string) error
}

// RedisDeduplicator shares claimed keys across replicas.
type RedisDeduplicator struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisDeduplicator(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisDeduplicator {
	trimmedPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmedPrefix == "" {
		trimmedPrefix = "papermind:webhook"
	}
	return &RedisDeduplicator{client: client, prefix: trimmedPrefix, ttl: ttl}
}

func (d *RedisDeduplicator) key(key string) string {
	return fmt.Sprintf("%s:%s", d.prefix, key)
}

func (d *RedisDeduplicator) Claim(ctx context.Context, key string) (bool, error) {
	first, err := d.client.SetNX(ctx, d.key(key), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	return first, nil
}

func (d *RedisDeduplicator) Forget(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.key(key)).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}

// MemoryDeduplicator keeps claimed keys in process memory. Expired keys are pruned on Claim.
type MemoryDeduplicator struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (d *MemoryDeduplicator) Claim(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, expiresAt := range d.seen {
		if !now.Before(expiresAt) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(d.ttl)
	return true, nil
}

func (d *MemoryDeduplicator) Forget(ctx context.Context, key string) error {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
	return nil
}
