package identity

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/tiergate/pkg/subscription"
)

// The shared taxonomy lives in package subscription so that HTTP adapters
// classify identity and billing failures the same way.
var (
	ErrUserNotFound        = fmt.Errorf("user %w", subscription.ErrNotFound)
	ErrUpstreamUnavailable = subscription.ErrUpstreamUnavailable
	ErrPersistenceFailure  = subscription.ErrPersistenceFailure
)

var (
	ErrMissingHeaders     = errors.New("missing webhook verification headers")
	ErrVerificationFailed = fmt.Errorf("identity %w", subscription.ErrSignatureInvalid)
	ErrInvalidPayload     = errors.New("invalid identity webhook payload")
	ErrMissingSecret      = errors.New("identity provider secret is required")
)
