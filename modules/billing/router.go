package billing

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/identity"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/pkg/ratelimit"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/pkg/usage"
)

// Config is the HTTP-facing part of the billing module configuration.
type Config struct {
	// InternalAPIToken guards the service-to-service lookup endpoint. The
	// endpoint is not mounted when empty.
	InternalAPIToken string `env:"INTERNAL_API_TOKEN"`
	UserHeader       string `env:"AUTH_USER_HEADER" envDefault:"X-User-ID"`
}

// RouterOptions wires the billing module. Checkout is optional; without it
// POST /api/subscriptions is not mounted. RateLimiter, when set, limits the
// webhook routes per client address and the API routes per user and client
// address.
type RouterOptions struct {
	Config      Config
	Provider    subscription.BillingProvider
	Checkout    subscription.CheckoutProvider
	Reconciler  *subscription.Reconciler
	Resolver    *subscription.Resolver
	Guard       *subscription.Guard
	Identity    *identity.Service
	Usage       *usage.Service
	RateLimiter ratelimit.Limiter
	Logger      *slog.Logger
}

type module struct {
	provider   subscription.BillingProvider
	checkout   subscription.CheckoutProvider
	reconciler *subscription.Reconciler
	resolver   *subscription.Resolver
	guard      *subscription.Guard
	identity   *identity.Service
	usage      *usage.Service
	log        *slog.Logger
}

// Router mounts the webhook receivers and the entitlement API. It panics
// when a required dependency is missing.
//
//	r := chi.NewRouter()
//	r.Use(reqmeta.Middleware, middleware.Recoverer)
//	r.Mount("/", billing.Router(billing.RouterOptions{...}))
func Router(opts RouterOptions) chi.Router {
	switch {
	case opts.Provider == nil:
		panic("billing: provider is required")
	case opts.Reconciler == nil:
		panic("billing: reconciler is required")
	case opts.Resolver == nil:
		panic("billing: resolver is required")
	case opts.Guard == nil:
		panic("billing: guard is required")
	case opts.Identity == nil:
		panic("billing: identity service is required")
	case opts.Usage == nil:
		panic("billing: usage service is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	m := &module{
		provider:   opts.Provider,
		checkout:   opts.Checkout,
		reconciler: opts.Reconciler,
		resolver:   opts.Resolver,
		guard:      opts.Guard,
		identity:   opts.Identity,
		usage:      opts.Usage,
		log:        log.With(logger.Component("billing")),
	}

	userHeader := opts.Config.UserHeader
	if userHeader == "" {
		userHeader = identity.DefaultUserHeader
	}
	limit := func(scope string, key ratelimit.KeyFunc) func(http.Handler) http.Handler {
		if opts.RateLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return ratelimit.Middleware(opts.RateLimiter,
			ratelimit.Prefixed(scope, key),
			ratelimit.WithLogger(log),
		)
	}

	r := chi.NewRouter()

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(limit("webhooks", ratelimit.ByIP()))
		r.Post("/billing", m.billingWebhook)
		r.Post("/identity", m.identityWebhook)
	})

	r.Group(func(r chi.Router) {
		r.Use(limit("api", ratelimit.Composite(ratelimit.ByHeader(userHeader), ratelimit.ByIP())))
		r.Use(identity.HeaderAuthenticator(userHeader))

		r.Get("/api/subscription", handler.Wrap(m.currentSubscription))
		r.Get("/api/pro-feature", handler.Wrap(m.proFeature))
		if m.checkout != nil {
			r.Post("/api/subscriptions", handler.Wrap(m.createCheckout,
				handler.WithBinders[handler.Context, checkoutRequest](jsonBody),
			))
		}

		r.Get("/dashboard", handler.Wrap(m.dashboard))
		r.Get("/dashboard/{plan}", handler.Wrap(m.planDashboard))
	})

	if token := opts.Config.InternalAPIToken; token != "" {
		r.With(requireBearer(token)).
			Get("/internal/users/{userID}/subscription", handler.Wrap(m.userSubscription))
	}

	return r
}

// requireBearer compares the Authorization bearer token in constant time.
func requireBearer(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				_ = handler.JSONError(http.StatusUnauthorized, "Unauthorized").Render(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
