package urlstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores fetched resources keyed by the requested URL. A miss is
// reported as (nil, nil).
type Cache interface {
	Get(ctx context.Context, url string) (*Resource, error)
	Set(ctx context.Context, url string, res *Resource) error
	Delete(ctx context.Context, url string) error
}

// retentionTTL bounds how long the Redis backend keeps entries. Expired
// entries are still useful for their validators (ETag, Last-Modified),
// so this is deliberately much longer than typical Expires headers.
const retentionTTL = 14 * 24 * time.Hour

// MemoryCache is the default process-local cache backend.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Resource
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Resource)}
}

func (c *MemoryCache) Get(_ context.Context, url string) (*Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[url], nil
}

func (c *MemoryCache) Set(_ context.Context, url string, res *Resource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = res
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, url)
	return nil
}

// RedisCache shares the URL cache between replicas. Entries are stored
// as JSON under a hashed key.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis/Valkey and verifies the connection.
func NewRedisCache(ctx context.Context, host string, port int) (*RedisCache, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	slog.Debug("Connecting to URL cache backend", "addr", addr)

	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Redis URL cache initialized", "addr", addr)
	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient wraps an existing client (for testing).
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func cacheKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "feedsvc:url:" + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, url string) (*Resource, error) {
	data, err := c.client.Get(ctx, cacheKey(url)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", url, err)
	}
	var res Resource
	if err := json.Unmarshal(data, &res); err != nil {
		// Corrupt entry: treat as a miss rather than failing the fetch.
		slog.Warn("Dropping corrupt cache entry", "url", url, "error", err)
		return nil, nil
	}
	return &res, nil
}

func (c *RedisCache) Set(ctx context.Context, url string, res *Resource) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", url, err)
	}
	ttl := retentionTTL
	if until := time.Until(res.Expires); until > ttl {
		ttl = until
	}
	if err := c.client.Set(ctx, cacheKey(url), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", url, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, url string) error {
	if err := c.client.Del(ctx, cacheKey(url)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", url, err)
	}
	return nil
}
