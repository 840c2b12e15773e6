package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/cache"
	"github.com/dmitrymomot/tiergate/pkg/identity"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/svc/storage/memory"
)

var (
	t0 = time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	errDown = errors.New("connection refused")
)

// autoUsers creates users on first sight, like the identity service would
// after fetching the profile.
type autoUsers struct {
	store *memory.Store
	err   error
}

func (a *autoUsers) EnsureUser(ctx context.Context, id string) error {
	if a.err != nil {
		return a.err
	}
	if _, err := a.store.GetUser(ctx, id); err == nil {
		return nil
	}
	_, err := a.store.UpsertUser(ctx, identity.User{ID: id})
	return err
}

// flakyStore fails reads or writes on demand.
type flakyStore struct {
	subscription.Store
	mu        sync.Mutex
	readErr   error
	writeErr  error
	readCalls int
}

func (f *flakyStore) CurrentSubscription(ctx context.Context, userID string) (subscription.Subscription, error) {
	f.mu.Lock()
	f.readCalls++
	err := f.readErr
	f.mu.Unlock()
	if err != nil {
		return subscription.Subscription{}, err
	}
	return f.Store.CurrentSubscription(ctx, userID)
}

func (f *flakyStore) ApplySubscription(ctx context.Context, m subscription.Mutation) (subscription.Subscription, bool, error) {
	if f.writeErr != nil {
		return subscription.Subscription{}, false, f.writeErr
	}
	return f.Store.ApplySubscription(ctx, m)
}

func (f *flakyStore) reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCalls
}

// stuckCache refuses deletes.
type stuckCache struct {
	*cache.Memory
}

func (stuckCache) Delete(context.Context, string) bool { return false }

type env struct {
	store      *memory.Store
	flaky      *flakyStore
	cache      *cache.Memory
	users      *autoUsers
	reconciler *subscription.Reconciler
	resolver   *subscription.Resolver
}

func newEnv(t *testing.T, opts ...subscription.ResolverOption) *env {
	t.Helper()
	st := memory.New(memory.WithClock(func() time.Time { return t0 }))
	e := &env{
		store: st,
		flaky: &flakyStore{Store: st},
		cache: cache.NewMemory(),
		users: &autoUsers{store: st},
	}
	auditor := audit.NewLogger(st)
	e.reconciler = subscription.NewReconciler(e.flaky, e.users, e.cache, auditor,
		subscription.WithReconcilerLogger(logger.Nop()),
		subscription.WithReconcilerClock(func() time.Time { return t0 }),
	)
	e.resolver = subscription.NewResolver(e.flaky, e.cache,
		append([]subscription.ResolverOption{subscription.WithResolverLogger(logger.Nop())}, opts...)...)
	return e
}

func (e *env) apply(t *testing.T, ev subscription.Event) subscription.Result {
	t.Helper()
	res, err := e.reconciler.Apply(context.Background(), ev)
	require.NoError(t, err)
	return res
}

func (e *env) entitlement(t *testing.T, userID string) subscription.Entitlement {
	t.Helper()
	ent, err := e.resolver.GetSubscription(context.Background(), userID)
	require.NoError(t, err)
	return ent
}

func ptr[T any](v T) *T { return &v }

func activated(userID, subID, planID string, at time.Time) subscription.Event {
	return subscription.Event{
		ID:                     "evt_act_" + subID,
		Provider:               subscription.ProviderRazorpay,
		Kind:                   subscription.EventActivated,
		Name:                   "subscription.activated",
		UserID:                 userID,
		ExternalSubscriptionID: subID,
		ExternalPlanID:         planID,
		OccurredAt:             at,
		StartAt:                ptr(at),
		EndAt:                  ptr(at.AddDate(1, 0, 0)),
	}
}

func cancelled(userID, subID string, at time.Time) subscription.Event {
	return subscription.Event{
		ID:                     "evt_can_" + subID,
		Provider:               subscription.ProviderRazorpay,
		Kind:                   subscription.EventCancelled,
		Name:                   "subscription.cancelled",
		UserID:                 userID,
		ExternalSubscriptionID: subID,
		OccurredAt:             at,
	}
}
