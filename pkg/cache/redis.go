package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tiergate/pkg/logger"
)

// Redis implements Cache on top of a go-redis client. Every call runs
// under its own timeout; errors are logged and reported as a miss.
type Redis struct {
	client    redis.UniversalClient
	timeout   time.Duration
	scanBatch int64
	log       *slog.Logger
}

// RedisOption configures Redis.
type RedisOption func(*Redis)

// WithOpTimeout bounds each cache call. Non-positive values are ignored.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithScanBatch sets the SCAN COUNT hint used by DeletePattern.
func WithScanBatch(n int64) RedisOption {
	return func(r *Redis) {
		if n > 0 {
			r.scanBatch = n
		}
	}
}

// WithLogger sets the logger for swallowed transport errors.
func WithLogger(log *slog.Logger) RedisOption {
	return func(r *Redis) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRedis wraps client. Panics if client is nil.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	if client == nil {
		panic("cache: redis client is required")
	}
	r := &Redis{
		client:    client,
		timeout:   500 * time.Millisecond,
		scanBatch: 100,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.Component("cache"))
	return r
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.fail(ctx, "get", key, err)
		return nil, false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.fail(ctx, "set", key, err)
		return false
	}
	return true
}

func (r *Redis) Delete(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.fail(ctx, "delete", key, err)
		return false
	}
	return true
}

// DeletePattern walks the keyspace with SCAN and deletes matches batch by
// batch. KEYS is avoided because it blocks the server.
func (r *Redis) DeletePattern(ctx context.Context, pattern string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, r.scanBatch).Result()
		if err != nil {
			r.fail(ctx, "scan", pattern, err)
			return false
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				r.fail(ctx, "delete_pattern", pattern, err)
				return false
			}
		}
		if next == 0 {
			return true
		}
		cursor = next
	}
}

func (r *Redis) Increment(ctx context.Context, key string) (int64, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.fail(ctx, "increment", key, err)
		return 0, false
	}
	return n, true
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		r.fail(ctx, "expire", key, err)
		return false
	}
	return ok
}

func (r *Redis) fail(ctx context.Context, op, key string, err error) {
	r.log.WarnContext(ctx, "cache operation failed",
		slog.String("op", op),
		slog.String("key", key),
		logger.Error(err),
	)
}
