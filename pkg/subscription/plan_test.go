package subscription_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/pkg/subscription"
)

func TestPlanOrder(t *testing.T) {
	t.Parallel()
	plans := subscription.Plans()
	require.Equal(t, []subscription.Plan{subscription.PlanFree, subscription.PlanLite, subscription.PlanPro}, plans)

	for i, have := range plans {
		for j, want := range plans {
			assert.Equal(t, i >= j, have.Satisfies(want), "%s satisfies %s", have, want)
		}
	}
	assert.False(t, subscription.Plan("gold").Satisfies(subscription.PlanFree))
	assert.False(t, subscription.PlanPro.Satisfies("gold"))
}

func TestFeaturesAreSupersets(t *testing.T) {
	t.Parallel()
	plans := subscription.Plans()
	for i := 1; i < len(plans); i++ {
		lower, higher := subscription.Features(plans[i-1]), subscription.Features(plans[i])
		assert.Subset(t, higher, lower)
		assert.Greater(t, len(higher), len(lower))
	}
	assert.Len(t, subscription.Features(subscription.PlanPro), 10)
	assert.Nil(t, subscription.Features("gold"))
}

func TestMinimumPlan(t *testing.T) {
	t.Parallel()
	tests := map[subscription.Feature]subscription.Plan{
		subscription.FeatureBasicAnalytics:     subscription.PlanFree,
		subscription.FeaturePrioritySupport:    subscription.PlanLite,
		subscription.FeatureAPIAccess:          subscription.PlanPro,
		subscription.FeatureCustomIntegrations: subscription.PlanPro,
	}
	for f, want := range tests {
		got, ok := subscription.MinimumPlan(f)
		require.True(t, ok, f)
		assert.Equal(t, want, got, f)
	}
	_, ok := subscription.MinimumPlan("teleport")
	assert.False(t, ok)
}

func TestParsePlan(t *testing.T) {
	t.Parallel()
	p, err := subscription.ParsePlan("pro")
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanPro, p)

	_, err = subscription.ParsePlan("enterprise")
	assert.ErrorIs(t, err, subscription.ErrInvalidPlan)
}

func TestPlanMapping(t *testing.T) {
	t.Parallel()

	def, err := subscription.NewPlanMapping(nil)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanLite, def.Resolve(litePlanID))
	assert.Equal(t, subscription.PlanFree, def.Resolve("plan_nope"))
	assert.Equal(t, subscription.PlanFree, def.Resolve(""))
	assert.True(t, def.Known(litePlanID))

	m, err := subscription.ParsePlanMapping([]byte("plans:\n  plan_pro_monthly: pro\n  plan_S9Dk9z7e6IH6EO: pro\n"))
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanPro, m.Resolve("plan_pro_monthly"))
	assert.Equal(t, subscription.PlanPro, m.Resolve(litePlanID))

	_, err = subscription.ParsePlanMapping([]byte("plans:\n  plan_x: platinum\n"))
	assert.ErrorIs(t, err, subscription.ErrInvalidPlanMapping)
	_, err = subscription.ParsePlanMapping([]byte("plans: [1, 2"))
	assert.ErrorIs(t, err, subscription.ErrInvalidPlanMapping)
	_, err = subscription.LoadPlanMapping("/does/not/exist.yaml")
	assert.ErrorIs(t, err, subscription.ErrInvalidPlanMapping)

	var zero subscription.PlanMapping
	assert.Equal(t, subscription.PlanFree, zero.Resolve(litePlanID))
}

func TestAmountFromMinor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		minor    int64
		code     string
		want     string
		wantCode string
	}{
		{49900, "INR", "499", "INR"},
		{49950, "inr", "499.5", "INR"},
		{1999, "", "19.99", "INR"},
		{500, "JPY", "500", "JPY"},
		{1234, "USD", "12.34", "USD"},
	}
	for _, tt := range tests {
		got, code, err := subscription.AmountFromMinor(tt.minor, tt.code)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "%d %s = %s", tt.minor, tt.code, got)
		assert.Equal(t, tt.wantCode, code)
	}

	_, _, err := subscription.AmountFromMinor(100, "XXXX")
	assert.ErrorIs(t, err, subscription.ErrInvalidEvent)
}
