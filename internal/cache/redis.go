package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisMaxFailures   = 3
	redisCheckInterval = 30 * time.Second
	redisOpTimeout     = 2 * time.Second
	// Past this many remembered deletes, recovery clears the whole prefix.
	redisMaxPendingDeletes = 1024
)

// RedisCache stores JSON encoded values under a key prefix. After repeated
// failures it stops calling Redis and reports misses until a background
// ping succeeds again. Deletes that could not reach Redis are replayed
// before the cache is used again, so no entry invalidated during an outage
// is served afterwards.
type RedisCache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu        sync.RWMutex
	healthy   bool
	failures  int
	lastCheck time.Time

	pending  map[string]struct{}
	flushAll bool
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisCache connects to Redis. An unreachable server is not an error:
// the cache starts in degraded mode.
func NewRedisCache[T any](ctx context.Context, opts RedisOptions) *RedisCache[T] {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return newRedisCache[T](ctx, client, opts.Prefix, opts.TTL)
}

func newRedisCache[T any](ctx context.Context, client *redis.Client, prefix string, ttl time.Duration) *RedisCache[T] {
	c := &RedisCache[T]{
		client:    client,
		prefix:    prefix,
		ttl:       ttl,
		lastCheck: time.Now(),
		pending:   make(map[string]struct{}),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.WarnContext(ctx, "Redis unavailable, run cache degraded", "component", "cache", "error", err)
		return c
	}
	c.healthy = true
	return c
}

func (c *RedisCache[T]) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	if !c.available() {
		return zero, false
	}

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if c.mustReplay(key) {
		if err := c.replayDeletes(opCtx); err != nil {
			c.recordFailure(ctx, err)
		}
		return zero, false
	}

	data, err := c.client.Get(opCtx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.recordSuccess()
		return zero, false
	}
	if err != nil {
		c.recordFailure(ctx, err)
		return zero, false
	}
	c.recordSuccess()

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		slog.WarnContext(ctx, "Dropping undecodable cache entry", "component", "cache", "key", key, "error", err)
		c.Delete(ctx, key)
		return zero, false
	}
	return value, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	if !c.available() {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		slog.WarnContext(ctx, "Cannot encode cache entry", "component", "cache", "key", key, "error", err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := c.client.Set(opCtx, c.prefix+key, payload, c.ttl).Err(); err != nil {
		c.recordFailure(ctx, err)
		return
	}
	c.recordSuccess()
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if !c.available() {
		c.deferDelete(key)
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := c.client.Del(opCtx, c.prefix+key).Err(); err != nil {
		c.deferDelete(key)
		c.recordFailure(ctx, err)
		return
	}
	c.recordSuccess()
}

func (c *RedisCache[T]) deferDelete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flushAll {
		return
	}
	if len(c.pending) >= redisMaxPendingDeletes {
		c.flushAll = true
		c.pending = make(map[string]struct{})
		return
	}
	c.pending[key] = struct{}{}
}

// mustReplay reports whether key may hold an entry whose delete never
// reached Redis.
func (c *RedisCache[T]) mustReplay(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pending[key]
	return ok || c.flushAll
}

// PendingDeletes reports how many deletes wait for Redis to come back.
func (c *RedisCache[T]) PendingDeletes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// replayDeletes applies deletes recorded during an outage. Keys stay
// pending when Redis fails again.
func (c *RedisCache[T]) replayDeletes(ctx context.Context) error {
	c.mu.RLock()
	flushAll := c.flushAll
	keys := make([]string, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, c.prefix+k)
	}
	c.mu.RUnlock()

	if flushAll {
		iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	} else if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if flushAll {
		c.flushAll = false
	}
	for _, k := range keys {
		delete(c.pending, k[len(c.prefix):])
	}
	return nil
}

func (c *RedisCache[T]) Close() error {
	return c.client.Close()
}

// available reports whether Redis should be used, scheduling a recovery
// ping when the cache has been unhealthy for long enough.
func (c *RedisCache[T]) available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.healthy {
		return true
	}
	if time.Since(c.lastCheck) >= redisCheckInterval {
		c.lastCheck = time.Now()
		go c.probe()
	}
	return false
}

func (c *RedisCache[T]) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return
	}
	if err := c.replayDeletes(ctx); err != nil {
		slog.Warn("Replaying cache deletes failed", "component", "cache", "error", err)
		return
	}
	c.recordSuccess()
}

func (c *RedisCache[T]) recordFailure(ctx context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= redisMaxFailures && c.healthy {
		c.healthy = false
		c.lastCheck = time.Now()
		slog.WarnContext(ctx, "Redis marked unhealthy", "component", "cache", "failures", c.failures, "error", err)
	}
}

func (c *RedisCache[T]) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.healthy {
		slog.Info("Redis recovered", "component", "cache")
	}
	c.healthy = true
	c.failures = 0
}
