// Package subscription reconciles payment processor webhooks into local
// subscription state and answers entitlement queries for route guards.
//
// The package has two halves that share a Store and a cache.Cache. The
// write side turns a verified processor event into an idempotent upsert.
// The read side resolves what a user may access right now. Both agree on
// one current subscription per user.
//
// # Architecture
//
//   - BillingProvider verifies a webhook and normalizes it into an Event.
//     RazorpayProvider and PaddleProvider implement it.
//   - CheckoutProvider starts a subscription on the processor side. Both
//     providers implement it too.
//   - Reconciler applies Events to the Store, records payments, drops the
//     cached entitlement and appends audit entries.
//   - Resolver answers GetSubscription from the cache or the Store.
//   - Guard wraps the Resolver with RequireAuth, RequirePlan and
//     RequireFeature decisions.
//   - PlanMapping resolves processor plan ids to tiers.
//
// # Plans and features
//
// Tiers are totally ordered: free < lite < pro. Each tier grants the
// features of the tiers below it plus its own:
//
//	free  basic_analytics, community_support, limited_projects
//	lite  advanced_analytics, priority_support, unlimited_projects
//	pro   api_access, custom_integrations, dedicated_support, white_label
//
// Query the table with Features, PlanHasFeature and MinimumPlan:
//
//	subscription.PlanHasFeature(subscription.PlanLite, subscription.FeatureAPIAccess) // false
//	plan, _ := subscription.MinimumPlan(subscription.FeatureAPIAccess)              // pro
//
// ParsePlan accepts tier names in any case and returns ErrInvalidPlan for
// anything else.
//
// # Providers
//
// Razorpay signs the raw body with HMAC-SHA256 in X-Razorpay-Signature.
// Events must carry the owning user id in the subscription notes
// (clerk_user_id unless RAZORPAY_OWNER_NOTE says otherwise):
//
//	provider, err := subscription.NewRazorpayProvider(subscription.RazorpayConfig{
//		KeyID:         os.Getenv("RAZORPAY_KEY_ID"),
//		KeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
//		WebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
//	})
//
// Paddle verification goes through the Paddle SDK and reads the owner from
// custom_data (user_id unless PADDLE_OWNER_KEY says otherwise):
//
//	provider, err := subscription.NewPaddleProvider(subscription.PaddleConfig{
//		APIKey:        os.Getenv("PADDLE_API_KEY"),
//		WebhookSecret: os.Getenv("PADDLE_WEBHOOK_SECRET"),
//		Environment:   "sandbox",
//	})
//
// Both configs carry env tags and are normally filled by config.Load.
// ParseWebhook returns an error matching ErrSignatureInvalid when the
// signature fails and ErrInvalidEvent when a verified payload does not
// decode. Event names are normalized to EventActivated, EventCharged,
// EventCancelled, EventExpired, EventPaused and EventResumed. Other events
// pass through with their raw name and are acknowledged without effect.
//
// # Plan mapping
//
// Processor plan ids map to tiers through PlanMapping. DefaultPlanIDs
// holds the built-in ids. A YAML file can extend or override them:
//
//	plans:
//	  plan_pro_monthly: pro
//	  plan_lite_yearly: lite
//
//	plans, err := subscription.LoadPlanMapping(os.Getenv("PLAN_MAPPING_FILE"))
//	r := subscription.NewReconciler(store, users, c, auditLog,
//		subscription.WithPlanMapping(plans),
//	)
//
// Unknown ids resolve to free. The reconciler then logs a warning and sets
// Result.UnmappedPlan so a stale mapping is visible.
//
// # Reconciling events
//
//	res, err := r.Apply(ctx, ev)
//	if err != nil {
//		// answer 5xx so the processor redelivers
//	}
//	switch res.Outcome {
//	case subscription.OutcomeApplied, subscription.OutcomeStale:
//	case subscription.OutcomeIgnored, subscription.OutcomeDropped:
//	}
//
// Apply makes sure the owning user exists through a UserEnsurer, then asks
// the Store to apply a Mutation atomically per user:
//
//   - The row is keyed by its external subscription id. Redelivered events
//     update the same row.
//   - An event older than the newest one already applied is stale. The row
//     is left as it is and the outcome is OutcomeStale.
//   - The row becomes the user's current subscription unless it is being
//     downgraded while another active subscription is current.
//   - Cancelled and expired events move the row to free. Paused and
//     resumed events keep the stored plan, and so do charged events
//     without a plan id.
//
// Charged events also insert a Payment keyed by its external payment id.
// Duplicate payments are ignored. Amounts arrive in minor units and are
// converted with AmountFromMinor, which honours the currency's scale.
//
// After an applied write the cached entitlement is invalidated with
// cache.InvalidateSubscription and an audit entry is appended. A stale
// charge that still inserted its payment gets a PAYMENT_SUCCESS entry. If
// any step fails, Apply returns an error and the processor's redelivery
// finishes the job; every step is idempotent.
//
// Events without an owner, events for users the identity provider does
// not know and events for a subscription owned by another user are
// dropped, not retried.
//
// Operators set a plan by hand with Override, which goes through the same
// upsert path with a synthetic external id and a 30-day period:
//
//	sub, err := r.Override(ctx, userID, subscription.PlanPro)
//
// # Resolving entitlements
//
//	resolver := subscription.NewResolver(store, c,
//		subscription.WithCacheTTL(5*time.Minute),
//		subscription.WithReadTimeout(2*time.Second),
//		subscription.WithFailurePolicy(subscription.FailClosed),
//	)
//
//	ent, err := resolver.GetSubscription(ctx, userID)
//	ok, err := resolver.HasFeature(ctx, userID, subscription.FeatureAPIAccess)
//
// Anonymous users and users without a current row get FreeEntitlement.
// Results are cached for five minutes by default. Each cached value is
// stamped with the user's entitlement generation read before the store
// lookup. Writers bump the generation when they invalidate, so a lookup
// that overlapped a write cannot bring its stale value back.
//
// FailurePolicy decides what a store failure means. DegradeToFree answers
// with the free entitlement and caches nothing. FailClosed returns
// ErrPersistenceFailure and guards deny access. ParseFailurePolicy reads
// "degrade_to_free" and "fail_closed".
//
// # Guards
//
//	guard := subscription.NewGuard(resolver,
//		subscription.WithRedirects("/sign-in", "/pricing"),
//	)
//
//	d := guard.RequireFeature(ctx, userID, subscription.FeatureAdvancedAnalytics)
//	if !d.Allowed() {
//		http.Redirect(w, r, d.RedirectTo, http.StatusSeeOther)
//		return
//	}
//
// A Decision carries the resolved entitlement. Its Err is
// ErrAuthenticationRequired with the sign-in path, ErrAuthorizationDenied
// with the pricing path, or a lookup error under FailClosed.
//
// # Errors
//
// The package owns the error taxonomy shared with package identity. HTTP
// adapters classify with errors.Is:
//
//   - ErrAuthenticationRequired and ErrAuthorizationDenied come from
//     guards.
//   - ErrSignatureInvalid means a webhook failed verification.
//   - ErrUpstreamUnavailable means a processor or identity call failed.
//   - ErrPersistenceFailure covers store and audit failures.
//     ErrCacheInvalidation is returned when a write could not drop the
//     cached entitlement.
//   - ErrNotFound is matched by ErrUserNotFound and
//     ErrSubscriptionNotFound.
//
// Configuration errors (ErrMissingAPIKey, ErrMissingWebhookSecret,
// ErrInvalidProviderConfig, ErrInvalidPlanMapping) are returned by the
// constructors.
package subscription
