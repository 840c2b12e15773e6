package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/pkg/ratelimit"
)

func TestMemoryStorePrune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	t.Cleanup(store.Close)

	cfg := ratelimit.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Second}
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := store.Take(ctx, "old", 1, t0, cfg)
	require.NoError(t, err)
	_, _, err = store.Take(ctx, "fresh", 1, t0.Add(10*time.Second), cfg)
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	// Two intervals refill the bucket, plus one of slack.
	store.Prune(t0.Add(10 * time.Second))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreConcurrentTake(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	t.Cleanup(store.Close)

	cfg := ratelimit.Config{Capacity: 50, RefillRate: 1, RefillInterval: time.Hour}
	now := time.Now()

	allowed := make(chan bool, 100)
	for range 100 {
		go func() {
			remaining, _, err := store.Take(ctx, "k", 1, now, cfg)
			allowed <- err == nil && remaining >= 0
		}()
	}

	var n int
	for range 100 {
		if <-allowed {
			n++
		}
	}
	assert.Equal(t, 50, n)
}

func TestMemoryStoreCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(time.Millisecond))
	assert.NotPanics(t, func() {
		store.Close()
		store.Close()
	})
}
