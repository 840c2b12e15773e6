package subscription

import (
	"errors"
	"fmt"
)

// Error taxonomy. HTTP adapters classify with errors.Is.
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAuthorizationDenied    = errors.New("plan does not grant access")
	ErrSignatureInvalid       = errors.New("webhook signature invalid")
	ErrUpstreamUnavailable    = errors.New("upstream provider unavailable")
	ErrPersistenceFailure     = errors.New("persistence failure")
	ErrNotFound               = errors.New("not found")
)

var (
	ErrUserNotFound          = fmt.Errorf("user %w", ErrNotFound)
	ErrSubscriptionNotFound  = fmt.Errorf("subscription %w", ErrNotFound)
	ErrOwnerMismatch         = errors.New("subscription belongs to another user")
	ErrInvalidEvent          = errors.New("invalid webhook event")
	ErrInvalidPlan           = errors.New("invalid plan")
	ErrInvalidPlanMapping    = errors.New("invalid plan mapping")
	ErrCacheInvalidation     = errors.New("failed to invalidate cached entitlement")
	ErrMissingAPIKey         = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret  = errors.New("billing provider webhook secret is required")
	ErrInvalidProviderConfig = errors.New("invalid billing provider configuration")
	ErrMissingPlanID         = errors.New("plan id is required")
	ErrMissingUserID         = errors.New("user id is required")
)
