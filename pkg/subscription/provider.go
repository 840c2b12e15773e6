package subscription

import (
	"context"
	"net/http"
	"time"
)

// BillingProvider verifies and normalizes processor webhooks. ParseWebhook
// returns an error wrapping ErrSignatureInvalid when verification fails,
// and ErrInvalidEvent when a verified payload cannot be decoded.
type BillingProvider interface {
	Name() string
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (Event, error)
}

// CheckoutProvider starts a subscription on the processor side.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
}

// CheckoutRequest asks the processor for a new subscription owned by UserID.
type CheckoutRequest struct {
	UserID string
	PlanID string
	Email  string
}

// Checkout is the processor's answer to a CheckoutRequest.
type Checkout struct {
	// ID is the processor subscription or transaction id.
	ID     string
	Status string
	// URL is a hosted page the user completes payment on, when provided.
	URL       string
	ExpiresAt *time.Time
}

func unixTime(sec *int64) *time.Time {
	if sec == nil || *sec <= 0 {
		return nil
	}
	t := time.Unix(*sec, 0).UTC()
	return &t
}
