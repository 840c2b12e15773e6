// Package identity mirrors identity-provider users locally so that
// subscriptions and payments always reference a known user.
//
// The package is built around three collaborators:
//
//   - Provider fetches a user profile. ClerkProvider implements it with
//     the Clerk backend SDK.
//   - Verifier authenticates webhook deliveries. SvixVerifier checks the
//     svix-id, svix-timestamp and svix-signature headers Clerk sends.
//   - UserStore persists users. Deleting a user removes everything it
//     owns.
//
// Service combines them. EnsureUser creates a user on first reference and
// HandleWebhook applies user.created, user.updated and user.deleted.
//
// # Configuration
//
//	CLERK_SECRET_KEY      backend API key (required)
//	CLERK_WEBHOOK_SECRET  svix signing secret, whsec_ prefixed (required)
//
// Service options: WithCacheTTL sets how long a known user is cached
// (default five minutes, the server uses USER_CACHE_TTL), WithTimeout
// bounds each store and provider call (default 5s, UPSTREAM_TIMEOUT) and
// WithLogger sets the logger.
//
// # Usage
//
//	var cfg identity.ClerkConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	clerk, err := identity.NewClerkProvider(cfg)
//	if err != nil {
//		return err
//	}
//	verifier, err := identity.NewSvixVerifier(cfg.WebhookSecret)
//	if err != nil {
//		return err
//	}
//
//	svc := identity.NewService(store, clerk, verifier, c, auditLog,
//		identity.WithLogger(log),
//	)
//
// Make sure the user referenced by a billing event exists:
//
//	if err := svc.EnsureUser(ctx, userID); err != nil {
//		// ErrUserNotFound: the provider does not know the user
//	}
//
// Apply an identity webhook:
//
//	res, err := svc.HandleWebhook(ctx, body, r.Header)
//	if err == nil && !res.Handled {
//		// acknowledged but ignored event type
//	}
//
// user.created and user.updated upsert the profile, picking the primary
// email address. user.deleted removes the user and drops its cached
// profile, entitlement and usage counters; the entitlement is invalidated
// through cache.InvalidateSubscription. Created and deleted users are
// audited.
//
// # Request authentication
//
// Sessions are verified by a gateway in front of the service.
// HeaderAuthenticator lifts the user id it sets (X-User-ID by default)
// into the request context; UserIDFromContext reads it back and returns ""
// for anonymous requests:
//
//	r.Use(identity.HeaderAuthenticator("X-User-ID"))
//
// # Errors
//
// Failures share the taxonomy of package subscription so HTTP adapters
// classify them the same way:
//
//   - ErrUserNotFound matches subscription.ErrNotFound.
//   - ErrUpstreamUnavailable reports a provider outage.
//   - ErrPersistenceFailure reports a store or cache failure; the delivery
//     should be retried.
//   - ErrMissingHeaders and ErrVerificationFailed reject a delivery;
//     ErrVerificationFailed matches subscription.ErrSignatureInvalid.
//   - ErrInvalidPayload reports an undecodable event.
//   - ErrMissingSecret is returned by the constructors for blank secrets.
package identity
