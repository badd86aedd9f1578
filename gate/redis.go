package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps rate-limit buckets in a shared Redis instance so the
// limit holds across horizontally scaled processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ BucketStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "rl:"}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := s.prefix + key

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	ttl, err := s.client.TTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		// Key can lose its TTL if Expire raced a crash; restore it so
		// the counter cannot live forever.
		_ = s.client.Expire(ctx, k, window).Err()
		ttl = window
	}

	return count, time.Now().UTC().Add(ttl), nil
}
