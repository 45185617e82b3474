package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON-blob key-value cache over Redis. Failures are logged and
// swallowed: nothing in the storefront depends on the cache for correctness,
// so a broken Redis degrades to cache misses. A nil *Cache is a valid no-op
// client, which keeps tests free of a Redis dependency.
type Cache struct {
	rdb    *redis.Client
	prefix string
	log    *slog.Logger
}

func New(addr, prefix string, log *slog.Logger) *Cache {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &Cache{rdb: rdb, prefix: prefix, log: log}
}

func (c *Cache) key(k string) string {
	return c.prefix + ":" + k
}

func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Error("cache_get_failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Error("cache_decode_failed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Error("cache_encode_failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		c.log.Error("cache_set_failed", "key", key, "error", err)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.rdb.Del(ctx, full...).Err(); err != nil {
		c.log.Error("cache_delete_failed", "keys", keys, "error", err)
	}
}

// DeletePrefix drops every key under the given prefix, used to invalidate
// whole listing families (e.g. every cached products page) on a write.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) {
	if c == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, c.key(prefix)+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Error("cache_scan_failed", "prefix", prefix, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Error("cache_delete_failed", "prefix", prefix, "error", err)
	}
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
