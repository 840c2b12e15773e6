// Package audit records append-only audit entries: who did what to which
// resource, with the request id, client ip and user agent of the request
// that caused it.
//
// Entries are written by the subscription reconciler and the identity
// service for every state change they apply, and by operator commands for
// manual overrides. Nothing updates or deletes an entry once stored.
//
// # Usage
//
// Create a Logger over a Storage implementation. Both the Postgres and the
// in-memory stores of this module implement Storage:
//
//	auditLog := audit.NewLogger(store,
//		audit.WithExtractors(audit.RequestMetaExtractor()),
//	)
//
// Log an action with optional fields:
//
//	err := auditLog.Log(ctx, audit.ActionSubscriptionActivated,
//		audit.WithUser(userID),
//		audit.WithResource("subscription", subID),
//		audit.WithDetail("plan", "lite"),
//	)
//
// Extractors run before the entry options, so an explicit option always
// wins over a value taken from the context. RequestMetaExtractor copies
// the values captured by reqmeta.Middleware; outside a request they are
// empty.
//
// # Actions
//
// Actions are stored verbatim:
//
//	SUBSCRIPTION_ACTIVATED   SUBSCRIPTION_CANCELLED   SUBSCRIPTION_EXPIRED
//	SUBSCRIPTION_PAUSED      SUBSCRIPTION_RESUMED     SUBSCRIPTION_OVERRIDDEN
//	PAYMENT_SUCCESS          USER_CREATED             USER_DELETED
//
// # Testing
//
// WithClock fixes CreatedAt. The in-memory store exposes the recorded
// entries for assertions.
//
// # Errors
//
// Log returns ErrInvalidEntry when the action is empty and joins storage
// failures with ErrStorageNotAvailable. Callers decide whether a failed
// audit write fails the operation; the reconciler treats it as a
// persistence failure so the provider redelivers.
package audit
