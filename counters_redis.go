package raidguard

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisCounterPrefix = "raidguard/window/"

// RedisCounterStore implements ActionCounterStore on redis, for deployments
// where abuse counters must be shared across processes or survive a restart.
// Refreshing the key TTL on every hit gives the same reset-on-idle-gap
// behavior as the in-memory store: a key untouched for longer than the window
// expires, so the next hit starts back at 1.
type RedisCounterStore struct {
	Client *redis.Client
}

func NewRedisCounterStore(redisURL string) (*RedisCounterStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisCounterStore{Client: rdb}, nil
}

func (s *RedisCounterStore) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	k := redisCounterPrefix + key

	// increment and refresh the idle TTL in a single round-trip
	multi := s.Client.Pipeline()
	incr := multi.Incr(ctx, k)
	if window > 0 {
		multi.Expire(ctx, k, window)
	}
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *RedisCounterStore) Reset(ctx context.Context, key string) error {
	return s.Client.Del(ctx, redisCounterPrefix+key).Err()
}

func (s *RedisCounterStore) HealthCheck() error {
	return s.Client.Ping(context.TODO()).Err()
}
