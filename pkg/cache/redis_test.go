package cache_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/pkg/cache"
	"github.com/dmitrymomot/tiergate/pkg/logger"
)

// An unreachable server must degrade every operation instead of failing.
func TestRedisDegradesOnTransportFailure(t *testing.T) {
	t.Parallel()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewRedis(client, cache.WithOpTimeout(200*time.Millisecond), cache.WithLogger(logger.Nop()))
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.False(t, c.Delete(ctx, "k"))
	assert.False(t, c.DeletePattern(ctx, "k*"))
	_, ok = c.Increment(ctx, "k")
	assert.False(t, ok)
	assert.False(t, c.Expire(ctx, "k", time.Minute))
}

func TestRedisLogsFailures(t *testing.T) {
	t.Parallel()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON))
	c := cache.NewRedis(client,
		cache.WithLogger(log),
		cache.WithOpTimeout(200*time.Millisecond),
		cache.WithScanBatch(10),
	)

	_, ok := c.Get(context.Background(), "user:u1")
	require.False(t, ok)

	var rec map[string]any
	require.NoError(t, json.NewDecoder(&buf).Decode(&rec))
	assert.Equal(t, "cache", rec["component"])
	assert.Equal(t, "get", rec["op"])
	assert.Equal(t, "user:u1", rec["key"])
	assert.NotEmpty(t, rec["error"])
}

func TestNewRedisPanicsOnNilClient(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { cache.NewRedis(nil) })
}

var _ cache.Cache = (*cache.Redis)(nil)
var _ cache.Cache = (*cache.Memory)(nil)
