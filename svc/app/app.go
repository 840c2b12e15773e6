// Package app assembles the storage, cache, identity and subscription
// services from environment configuration. Commands build one App and
// share its wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tiergate/db"
	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/cache"
	"github.com/dmitrymomot/tiergate/pkg/config"
	"github.com/dmitrymomot/tiergate/pkg/httpserver"
	"github.com/dmitrymomot/tiergate/pkg/identity"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/pkg/pg"
	"github.com/dmitrymomot/tiergate/pkg/ratelimit"
	"github.com/dmitrymomot/tiergate/pkg/redis"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/pkg/usage"
	"github.com/dmitrymomot/tiergate/svc/storage/memory"
	"github.com/dmitrymomot/tiergate/svc/storage/postgres"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

var (
	ErrUnknownDriver   = errors.New("unknown driver")
	ErrUnknownProvider = errors.New("unknown billing provider")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// Config selects drivers and tunes the services. Driver specific settings
// (DATABASE_URL, REDIS_URL, provider credentials) are loaded only for the
// selected driver.
type Config struct {
	StorageDriver   string        `env:"STORAGE_DRIVER" envDefault:"postgres"`
	CacheDriver     string        `env:"CACHE_DRIVER" envDefault:"redis"`
	BillingProvider string        `env:"BILLING_PROVIDER" envDefault:"razorpay"`
	FailurePolicy   string        `env:"FAILURE_POLICY" envDefault:"degrade_to_free"`
	PlanMappingFile string        `env:"PLAN_MAPPING_FILE"`
	CacheTTL        time.Duration `env:"ENTITLEMENT_CACHE_TTL" envDefault:"5m"`
	UserCacheTTL    time.Duration `env:"USER_CACHE_TTL" envDefault:"1h"`
	MemoryCacheSize int           `env:"MEMORY_CACHE_SIZE" envDefault:"10000"`
	CacheOpTimeout  time.Duration `env:"CACHE_OP_TIMEOUT" envDefault:"500ms"`
	CacheScanBatch  int64         `env:"CACHE_SCAN_BATCH" envDefault:"100"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	ReadTimeout     time.Duration `env:"ENTITLEMENT_READ_TIMEOUT" envDefault:"2s"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"5s"`

	// RateLimit is disabled while RATE_LIMIT_CAPACITY is zero.
	RateLimit ratelimit.Config `envPrefix:"RATE_LIMIT_"`
}

// Backend is everything the services persist.
type Backend interface {
	subscription.Store
	identity.UserStore
	audit.Storage
	usage.Store
}

// App holds the wired services.
type App struct {
	Config     Config
	Log        *slog.Logger
	Store      Backend
	Cache      cache.Cache
	Audit      *audit.Logger
	Identity   *identity.Service
	Reconciler *subscription.Reconciler
	Resolver   *subscription.Resolver
	Guard      *subscription.Guard
	Usage      *usage.Service
	Provider   subscription.BillingProvider
	Checkout   subscription.CheckoutProvider
	// Limiter is nil unless rate limiting is configured.
	Limiter *ratelimit.Bucket

	redis    goredis.UniversalClient
	loadOpts []config.Option
	checks   []httpserver.Check
	closers  []func()
}

// Option configures New.
type Option func(*App)

// WithConfigOptions is passed to every driver and provider config load.
func WithConfigOptions(opts ...config.Option) Option {
	return func(a *App) { a.loadOpts = append(a.loadOpts, opts...) }
}

// New connects the configured drivers, runs migrations for Postgres and
// wires the services. Call Close when done, also after an error.
func New(ctx context.Context, cfg Config, log *slog.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Config: cfg, Log: log}
	for _, opt := range opts {
		opt(a)
	}

	policy, err := subscription.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return a, err
	}
	plans, err := subscription.LoadPlanMapping(cfg.PlanMappingFile)
	if err != nil {
		return a, err
	}

	if err := a.openStorage(ctx); err != nil {
		return a, err
	}
	if err := a.openCache(ctx); err != nil {
		return a, err
	}
	if err := a.openProvider(); err != nil {
		return a, err
	}

	var clerkCfg identity.ClerkConfig
	if err := config.Load(&clerkCfg, a.loadOpts...); err != nil {
		return a, err
	}
	clerk, err := identity.NewClerkProvider(clerkCfg)
	if err != nil {
		return a, err
	}
	verifier, err := identity.NewSvixVerifier(clerkCfg.WebhookSecret)
	if err != nil {
		return a, err
	}

	a.Audit = audit.NewLogger(a.Store, audit.WithExtractors(audit.RequestMetaExtractor()))
	a.Identity = identity.NewService(a.Store, clerk, verifier, a.Cache, a.Audit,
		identity.WithLogger(log),
		identity.WithCacheTTL(cfg.UserCacheTTL),
		identity.WithTimeout(cfg.UpstreamTimeout),
	)
	a.Reconciler = subscription.NewReconciler(a.Store, a.Identity, a.Cache, a.Audit,
		subscription.WithPlanMapping(plans),
		subscription.WithReconcilerLogger(log),
		subscription.WithStoreTimeout(cfg.StoreTimeout),
	)
	a.Resolver = subscription.NewResolver(a.Store, a.Cache,
		subscription.WithCacheTTL(cfg.CacheTTL),
		subscription.WithReadTimeout(cfg.ReadTimeout),
		subscription.WithFailurePolicy(policy),
		subscription.WithResolverLogger(log),
	)
	a.Guard = subscription.NewGuard(a.Resolver)
	if err := a.openLimiter(); err != nil {
		return a, err
	}
	a.Usage = usage.NewService(a.Store, a.Cache, usage.WithLogger(log), usage.WithTimeout(cfg.StoreTimeout))

	log.InfoContext(ctx, "services ready",
		slog.String("storage", cfg.StorageDriver),
		slog.String("cache", cfg.CacheDriver),
		logger.Provider(a.Provider.Name()),
		slog.String("failure_policy", policy.String()),
	)
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	switch strings.ToLower(a.Config.StorageDriver) {
	case DriverMemory:
		a.Store = memory.New()
		return nil
	case DriverPostgres, "":
	default:
		return fmt.Errorf("%w: storage %q", ErrUnknownDriver, a.Config.StorageDriver)
	}

	var pgCfg pg.Config
	if err := config.Load(&pgCfg, a.loadOpts...); err != nil {
		return err
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pool.Close)

	sqlDB := pg.OpenDB(pool)
	a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	if err := pg.Migrate(ctx, sqlDB, db.Migrations, db.Dir, pgCfg, a.Log); err != nil {
		return err
	}

	a.Store = postgres.New(sqlDB)
	a.checks = append(a.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
	return nil
}

func (a *App) openCache(ctx context.Context) error {
	switch strings.ToLower(a.Config.CacheDriver) {
	case DriverMemory:
		if a.Config.MemoryCacheSize <= 0 {
			return fmt.Errorf("%w: MEMORY_CACHE_SIZE must be positive, got %d", ErrInvalidConfig, a.Config.MemoryCacheSize)
		}
		a.Cache = cache.NewMemory(cache.WithCapacity(a.Config.MemoryCacheSize))
		return nil
	case DriverRedis, "":
	default:
		return fmt.Errorf("%w: cache %q", ErrUnknownDriver, a.Config.CacheDriver)
	}

	var redisCfg redis.Config
	if err := config.Load(&redisCfg, a.loadOpts...); err != nil {
		return err
	}
	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })

	a.redis = client
	a.Cache = cache.NewRedis(client,
		cache.WithLogger(a.Log),
		cache.WithOpTimeout(a.Config.CacheOpTimeout),
		cache.WithScanBatch(a.Config.CacheScanBatch),
	)
	a.checks = append(a.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	return nil
}

// openLimiter shares the Redis connection when the cache uses one so all
// replicas draw from the same buckets.
func (a *App) openLimiter() error {
	if !a.Config.RateLimit.Enabled() {
		return nil
	}

	var store ratelimit.Store
	if a.redis != nil {
		store = ratelimit.NewRedisStore(a.redis)
	} else {
		mem := ratelimit.NewMemoryStore()
		a.closers = append(a.closers, mem.Close)
		store = mem
	}

	limiter, err := ratelimit.NewBucket(store, a.Config.RateLimit)
	if err != nil {
		return err
	}
	a.Limiter = limiter
	return nil
}

func (a *App) openProvider() error {
	switch strings.ToLower(a.Config.BillingProvider) {
	case subscription.ProviderRazorpay, "":
		var cfg subscription.RazorpayConfig
		if err := config.Load(&cfg, a.loadOpts...); err != nil {
			return err
		}
		p, err := subscription.NewRazorpayProvider(cfg)
		if err != nil {
			return err
		}
		a.Provider, a.Checkout = p, p
	case subscription.ProviderPaddle:
		var cfg subscription.PaddleConfig
		if err := config.Load(&cfg, a.loadOpts...); err != nil {
			return err
		}
		p, err := subscription.NewPaddleProvider(cfg)
		if err != nil {
			return err
		}
		a.Provider, a.Checkout = p, p
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, a.Config.BillingProvider)
	}
	return nil
}

// Checks returns readiness probes for the connected drivers.
func (a *App) Checks() []httpserver.Check {
	return a.checks
}

// Close releases driver connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
