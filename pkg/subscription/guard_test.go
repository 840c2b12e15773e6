package subscription_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/tiergate/pkg/subscription"
)

func TestGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	e.apply(t, activated("user_lite", "sub_1", litePlanID, t0))
	g := subscription.NewGuard(e.resolver)

	t.Run("anonymous goes to sign in", func(t *testing.T) {
		d := g.RequirePlan(ctx, "", subscription.PlanFree)
		assert.False(t, d.Allowed())
		assert.ErrorIs(t, d.Err, subscription.ErrAuthenticationRequired)
		assert.Equal(t, subscription.DefaultSignInPath, d.RedirectTo)
	})

	t.Run("insufficient plan goes to pricing", func(t *testing.T) {
		d := g.RequirePlan(ctx, "user_lite", subscription.PlanPro)
		assert.ErrorIs(t, d.Err, subscription.ErrAuthorizationDenied)
		assert.Equal(t, subscription.DefaultPricingPath, d.RedirectTo)
		assert.Equal(t, subscription.PlanLite, d.Entitlement.Plan)
	})

	t.Run("sufficient plan passes", func(t *testing.T) {
		d := g.RequirePlan(ctx, "user_lite", subscription.PlanLite)
		assert.True(t, d.Allowed())
		assert.Empty(t, d.RedirectTo)
		assert.Equal(t, "user_lite", d.UserID)
	})

	t.Run("feature", func(t *testing.T) {
		assert.True(t, g.RequireFeature(ctx, "user_lite", subscription.FeatureUnlimitedProjects).Allowed())
		assert.False(t, g.RequireFeature(ctx, "user_lite", subscription.FeatureWhiteLabel).Allowed())
	})

	t.Run("custom redirects", func(t *testing.T) {
		custom := subscription.NewGuard(e.resolver, subscription.WithRedirects("/login", "/upgrade"))
		assert.Equal(t, "/login", custom.RequireAuth(ctx, "").RedirectTo)
		assert.Equal(t, "/upgrade", custom.RequirePlan(ctx, "user_lite", subscription.PlanPro).RedirectTo)
	})
}

func TestGuardFailClosed(t *testing.T) {
	t.Parallel()
	e := newEnv(t, subscription.WithFailurePolicy(subscription.FailClosed))
	e.flaky.readErr = errDown
	g := subscription.NewGuard(e.resolver)

	d := g.RequirePlan(context.Background(), "user_1", subscription.PlanFree)
	assert.False(t, d.Allowed())
	assert.ErrorIs(t, d.Err, subscription.ErrPersistenceFailure)
	assert.Equal(t, subscription.DefaultPricingPath, d.RedirectTo)
}
