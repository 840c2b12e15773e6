package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/pkg/config"
	"github.com/dmitrymomot/tiergate/pkg/identity"
	"github.com/dmitrymomot/tiergate/pkg/ratelimit"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/svc/app"
	"github.com/dmitrymomot/tiergate/svc/storage/memory"
)

var environ = map[string]string{
	"CLERK_SECRET_KEY":        "sk_test_123",
	"CLERK_WEBHOOK_SECRET":    "whsec_dGVzdC1zZWNyZXQtZm9yLXN2aXgtdmVyaWZpZXI=",
	"RAZORPAY_KEY_ID":         "rzp_test_key",
	"RAZORPAY_KEY_SECRET":     "rzp_test_secret",
	"RAZORPAY_WEBHOOK_SECRET": "rzp_webhook_secret",
	"PADDLE_API_KEY":          "pdl_sdbx_apikey_123",
	"PADDLE_WEBHOOK_SECRET":   "pdl_ntfset_123",
	"PADDLE_ENVIRONMENT":      "sandbox",
}

func memoryConfig() app.Config {
	var cfg app.Config
	config.MustLoad(&cfg, config.WithEnviron(map[string]string{}))
	cfg.StorageDriver = app.DriverMemory
	cfg.CacheDriver = app.DriverMemory
	return cfg
}

func TestNewWithMemoryDrivers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, err := app.New(ctx, memoryConfig(), nil, app.WithConfigOptions(config.WithEnviron(environ)))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.IsType(t, &memory.Store{}, a.Store)
	assert.Equal(t, subscription.ProviderRazorpay, a.Provider.Name())
	assert.NotNil(t, a.Checkout)
	assert.Empty(t, a.Checks())
	assert.Nil(t, a.Limiter, "rate limiting is off by default")

	_, err = a.Store.UpsertUser(ctx, identityUser("user_1"))
	require.NoError(t, err)
	_, err = a.Reconciler.Override(ctx, "user_1", subscription.PlanPro)
	require.NoError(t, err)

	ent, err := a.Resolver.GetSubscription(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanPro, ent.Plan)
}

func TestNewSelectsPaddle(t *testing.T) {
	t.Parallel()
	cfg := memoryConfig()
	cfg.BillingProvider = subscription.ProviderPaddle

	a, err := app.New(context.Background(), cfg, nil, app.WithConfigOptions(config.WithEnviron(environ)))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Equal(t, subscription.ProviderPaddle, a.Provider.Name())
}

func TestNewBuildsLimiter(t *testing.T) {
	t.Parallel()
	cfg := memoryConfig()
	cfg.RateLimit.Capacity = 2

	a, err := app.New(context.Background(), cfg, nil, app.WithConfigOptions(config.WithEnviron(environ)))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NotNil(t, a.Limiter)

	res, err := a.Limiter.Allow(context.Background(), "203.0.113.1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
}

func TestRateLimitConfigFromEnv(t *testing.T) {
	t.Parallel()
	var cfg app.Config
	require.NoError(t, config.Load(&cfg, config.WithEnviron(map[string]string{
		"RATE_LIMIT_CAPACITY":        "30",
		"RATE_LIMIT_REFILL_RATE":     "5",
		"RATE_LIMIT_REFILL_INTERVAL": "10s",
	})))
	assert.Equal(t, 30, cfg.RateLimit.Capacity)
	assert.Equal(t, 5, cfg.RateLimit.RefillRate)
	assert.Equal(t, "10s", cfg.RateLimit.RefillInterval.String())
}

func TestCacheConfigDefaults(t *testing.T) {
	t.Parallel()
	var cfg app.Config
	require.NoError(t, config.Load(&cfg, config.WithEnviron(map[string]string{
		"CACHE_SCAN_BATCH": "250",
	})))
	assert.Equal(t, 10000, cfg.MemoryCacheSize)
	assert.Equal(t, 500*time.Millisecond, cfg.CacheOpTimeout)
	assert.Equal(t, int64(250), cfg.CacheScanBatch)
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*app.Config)
		environ map[string]string
		wantErr error
	}{
		{"unknown storage", func(c *app.Config) { c.StorageDriver = "sqlite" }, environ, app.ErrUnknownDriver},
		{"unknown cache", func(c *app.Config) { c.CacheDriver = "memcached" }, environ, app.ErrUnknownDriver},
		{"unknown provider", func(c *app.Config) { c.BillingProvider = "stripe" }, environ, app.ErrUnknownProvider},
		{"bad failure policy", func(c *app.Config) { c.FailurePolicy = "sometimes" }, environ, nil},
		{"missing credentials", func(*app.Config) {}, map[string]string{}, config.ErrParsingConfig},
		{"bad rate limit", func(c *app.Config) { c.RateLimit = ratelimit.Config{Capacity: 5} }, environ, ratelimit.ErrInvalidConfig},
		{"zero memory cache", func(c *app.Config) { c.MemoryCacheSize = 0 }, environ, app.ErrInvalidConfig},
		{"negative memory cache", func(c *app.Config) { c.MemoryCacheSize = -1 }, environ, app.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := memoryConfig()
			tt.mutate(&cfg)

			a, err := app.New(context.Background(), cfg, nil, app.WithConfigOptions(config.WithEnviron(tt.environ)))
			t.Cleanup(a.Close)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func identityUser(id string) identity.User {
	return identity.User{ID: id, Email: id + "@example.com"}
}
