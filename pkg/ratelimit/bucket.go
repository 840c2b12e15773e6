package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Bucket applies one Config to many keys held in a Store.
type Bucket struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// BucketOption configures a Bucket.
type BucketOption func(*Bucket)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) BucketOption {
	return func(b *Bucket) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBucket validates cfg and returns a limiter. Panics if store is nil.
func NewBucket(store Store, cfg Config, opts ...BucketOption) (*Bucket, error) {
	if store == nil {
		panic("ratelimit: store is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	b := &Bucket{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Bucket) Allow(ctx context.Context, key string) (Result, error) {
	return b.AllowN(ctx, key, 1)
}

func (b *Bucket) AllowN(ctx context.Context, key string, n int) (Result, error) {
	if n <= 0 {
		return Result{}, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}

	now := b.now()
	remaining, resetAt, err := b.store.Take(ctx, key, n, now, b.cfg)
	if err != nil {
		return Result{}, err
	}

	res := Result{Limit: b.cfg.Capacity, Remaining: remaining, ResetAt: resetAt}
	if !res.Allowed() {
		res.RetryAfter = max(resetAt.Sub(now), 0)
	}
	return res, nil
}

// Reset forgets the state for key so the next request sees a full bucket.
func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, key)
}
