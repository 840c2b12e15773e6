package subscription

import "context"

// Store persists subscriptions and payments. Implementations must apply a
// mutation atomically per user: lock the user, skip stale mutations, move
// the current pointer, and upsert keyed by external subscription id.
type Store interface {
	// ApplySubscription upserts the row addressed by m. applied is false
	// when m was stale; the stored row is returned either way. Returns
	// ErrUserNotFound when the owner does not exist and ErrOwnerMismatch
	// when the external id belongs to another user.
	ApplySubscription(ctx context.Context, m Mutation) (sub Subscription, applied bool, err error)
	// CurrentSubscription returns the user's current row or ErrSubscriptionNotFound.
	CurrentSubscription(ctx context.Context, userID string) (Subscription, error)
	// RecordPayment inserts p unless its external id already exists.
	RecordPayment(ctx context.Context, p Payment) (inserted bool, err error)
}

// UserEnsurer makes sure a user row exists before subscriptions are
// attached to it.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, userID string) error
}
