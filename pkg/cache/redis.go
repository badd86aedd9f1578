package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bastion-dev/bastion/core"
)

// RedisCache implements the session cache against a shared Redis
// instance, for deployments running more than one process.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ core.Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, c core.CacheConfig) *RedisCache {
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}

	return &RedisCache{
		client: client,
		ttl:    c.TTL,
		prefix: "sess:",
	}
}

func (c *RedisCache) key(tokenHash string) string {
	return c.prefix + tokenHash
}

func (c *RedisCache) Get(tokenHash string) (*core.Session, error) {
	raw, err := c.client.Get(context.Background(), c.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrCacheNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	session := &core.Session{}
	if err := json.Unmarshal(raw, session); err != nil {
		// A record we cannot decode is as good as a miss.
		_ = c.Delete(tokenHash)
		return nil, core.ErrCacheNotFound
	}
	// TokenHash is excluded from JSON; the cache key carries it.
	session.TokenHash = tokenHash
	return session, nil
}

func (c *RedisCache) Set(tokenHash string, session *core.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return c.client.Set(context.Background(), c.key(tokenHash), raw, c.ttl).Err()
}

func (c *RedisCache) Delete(tokenHash string) error {
	return c.client.Del(context.Background(), c.key(tokenHash)).Err()
}

func (c *RedisCache) Clear() error {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
