package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/tiergate/pkg/cache"
	"github.com/dmitrymomot/tiergate/pkg/logger"
)

// FailurePolicy decides what the resolver does when the store is unreachable.
type FailurePolicy int

const (
	// DegradeToFree answers with the free entitlement and does not cache
	// it. Availability wins over precise denial.
	DegradeToFree FailurePolicy = iota
	// FailClosed returns ErrPersistenceFailure; guards deny access.
	FailClosed
)

func (p FailurePolicy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "degrade_to_free"
}

// ParseFailurePolicy accepts "degrade_to_free" (or "") and "fail_closed".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "degrade_to_free", "fail_open":
		return DegradeToFree, nil
	case "fail_closed":
		return FailClosed, nil
	}
	return DegradeToFree, errors.New("subscription: unknown failure policy " + s)
}

// Resolver answers entitlement queries cache-first.
type Resolver struct {
	store   Store
	cache   cache.Cache
	ttl     time.Duration
	timeout time.Duration
	policy  FailurePolicy
	log     *slog.Logger
}

// ResolverOption configures Resolver.
type ResolverOption func(*Resolver)

// WithCacheTTL sets how long resolved entitlements are cached.
func WithCacheTTL(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// WithReadTimeout bounds each store read.
func WithReadTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithFailurePolicy(p FailurePolicy) ResolverOption {
	return func(r *Resolver) { r.policy = p }
}

func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver panics if store or cache is nil.
func NewResolver(store Store, c cache.Cache, opts ...ResolverOption) *Resolver {
	if store == nil {
		panic("subscription: store is required")
	}
	if c == nil {
		panic("subscription: cache is required")
	}
	r := &Resolver{
		store:   store,
		cache:   c,
		ttl:     cache.DefaultTTL,
		timeout: 2 * time.Second,
		policy:  DegradeToFree,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.Component("resolver"))
	return r
}

// cachedEntitlement stamps a cached entitlement with the generation that
// was current before the store read.
type cachedEntitlement struct {
	Generation int64 `json:"gen"`
	Entitlement
}

// GetSubscription returns the user's current entitlement. An empty userID
// yields the free entitlement. A store error yields the free entitlement
// under DegradeToFree and ErrPersistenceFailure under FailClosed.
//
// Cached entries written by a read that overlapped an invalidation carry
// an old generation and are ignored.
func (r *Resolver) GetSubscription(ctx context.Context, userID string) (Entitlement, error) {
	if userID == "" {
		return FreeEntitlement(), nil
	}

	key := cache.SubscriptionKey(userID)
	gen := cache.Generation(ctx, r.cache, cache.SubscriptionGenerationKey(userID))
	if c, ok := cache.GetJSON[cachedEntitlement](ctx, r.cache, key); ok && c.Plan.Valid() && c.Generation == gen {
		return c.Entitlement, nil
	}

	ent, err := r.load(ctx, userID)
	if err != nil {
		if r.policy == FailClosed {
			r.log.ErrorContext(ctx, "entitlement lookup failed", logger.UserID(userID), logger.Error(err))
			return Entitlement{}, errors.Join(ErrPersistenceFailure, err)
		}
		r.log.WarnContext(ctx, "entitlement lookup failed, degrading to free",
			logger.UserID(userID), logger.Error(err))
		return FreeEntitlement(), nil
	}

	cache.SetJSON(ctx, r.cache, key, cachedEntitlement{Generation: gen, Entitlement: ent}, r.ttl)
	return ent, nil
}

func (r *Resolver) load(ctx context.Context, userID string) (Entitlement, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sub, err := r.store.CurrentSubscription(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return FreeEntitlement(), nil
	}
	if err != nil {
		return Entitlement{}, err
	}
	return sub.Entitlement(), nil
}

// HasPlan reports whether the user's plan is at least required.
func (r *Resolver) HasPlan(ctx context.Context, userID string, required Plan) (bool, error) {
	ent, err := r.GetSubscription(ctx, userID)
	if err != nil {
		return false, err
	}
	return ent.Satisfies(required), nil
}

// HasFeature reports whether the user's plan grants f.
func (r *Resolver) HasFeature(ctx context.Context, userID string, f Feature) (bool, error) {
	ent, err := r.GetSubscription(ctx, userID)
	if err != nil {
		return false, err
	}
	return ent.HasFeature(f), nil
}
