package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

const redisKeyPrefix = "pricing:"

var _ pricing.ResultCache = (*Redis)(nil)

// cmdable is the subset of *redis.Client used by Redis.
type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis is a ResultCache shared by all service replicas.
type Redis struct {
	store cmdable
}

// NewRedis returns a Redis cache on top of client. The caller owns the client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{store: client}
}

// NewRedisClient parses url, connects and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

func (r *Redis) key(k pricing.CacheKey) string {
	return redisKeyPrefix + k.String()
}

// Get returns the cached result. redis.Nil is a miss; a corrupted payload is
// deleted and reported as an error.
func (r *Redis) Get(ctx context.Context, key pricing.CacheKey) (*pricing.Result, bool, error) {
	k := r.key(key)
	data, err := r.store.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %s", k)
	}

	res, err := decodeResult(data)
	if err != nil {
		_ = r.store.Del(ctx, k).Err()
		return nil, false, err
	}
	return &res, true, nil
}

// Put stores result with the given ttl.
func (r *Redis) Put(ctx context.Context, key pricing.CacheKey, result pricing.Result, ttl time.Duration) error {
	k := r.key(key)
	if err := r.store.Set(ctx, k, encodeResult(result), ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %s", k)
	}
	return nil
}
