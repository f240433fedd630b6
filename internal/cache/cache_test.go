package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string](2, time.Minute)

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	if v, ok := c.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	// "a" was just used, so "b" is evicted.
	c.Set(ctx, "c", "3")
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Set(ctx, "a", "updated")
	if v, _ := c.Get(ctx, "a"); v != "updated" {
		t.Errorf("Get(a) after overwrite = %q", v)
	}

	c.Delete(ctx, "a")
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected a to be deleted")
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set(ctx, "x", 1)
	c.Set(ctx, "y", 2)

	now = now.Add(30 * time.Second)
	c.Set(ctx, "z", 3)

	now = now.Add(45 * time.Second)
	if _, ok := c.Get(ctx, "x"); ok {
		t.Error("x should have expired")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1", removed)
	}
	if v, ok := c.Get(ctx, "z"); !ok || v != 3 {
		t.Errorf("Get(z) = %d, %v", v, ok)
	}
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Second))
	m.Register("not a cleaner")
	if len(m.caches) != 1 {
		t.Errorf("registered %d cleaners, want 1", len(m.caches))
	}
	m.Stop()
}

func TestManager_Cleanup(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](10, time.Millisecond)
	c.Set(ctx, "k", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(5 * time.Millisecond)
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for c.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Size() != 0 {
		t.Error("expired entry was not swept")
	}
}

func TestRedisCache_Degraded(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCache[string](ctx, RedisOptions{Addr: "127.0.0.1:1", Prefix: "test:", TTL: time.Minute})
	defer c.Close()

	if c.IsHealthy() {
		t.Fatal("cache should start degraded without a server")
	}
	c.Set(ctx, "k", "v")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("degraded cache must report misses")
	}
	c.Delete(ctx, "k")
	c.Delete(ctx, "k")
	if got := c.PendingDeletes(); got != 1 {
		t.Errorf("pending deletes = %d, want 1", got)
	}
}

func TestRedisCache_PendingDeletesOverflow(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCache[string](ctx, RedisOptions{Addr: "127.0.0.1:1", Prefix: "test:", TTL: time.Minute})
	defer c.Close()

	for i := 0; i <= redisMaxPendingDeletes; i++ {
		c.Delete(ctx, fmt.Sprintf("run-%d", i))
	}
	if got := c.PendingDeletes(); got != 0 {
		t.Errorf("pending deletes = %d, want 0 once the whole prefix is scheduled", got)
	}
	if !c.mustReplay("never-deleted") {
		t.Error("every key must be treated as stale after overflow")
	}
}
