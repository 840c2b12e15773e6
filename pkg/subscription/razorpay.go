package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/dmitrymomot/tiergate/pkg/webhook"
)

const (
	ProviderRazorpay = "razorpay"

	HeaderRazorpaySignature = "X-Razorpay-Signature"
	HeaderRazorpayEventID   = "X-Razorpay-Event-Id"
)

// RazorpayConfig holds API and webhook credentials.
type RazorpayConfig struct {
	KeyID         string `env:"RAZORPAY_KEY_ID,required"`
	KeySecret     string `env:"RAZORPAY_KEY_SECRET,required"`
	WebhookSecret string `env:"RAZORPAY_WEBHOOK_SECRET,required"`
	// OwnerNote is the subscription notes key carrying the user id.
	OwnerNote string `env:"RAZORPAY_OWNER_NOTE" envDefault:"clerk_user_id"`
	// TotalCount is the number of billing cycles for new subscriptions.
	TotalCount int `env:"RAZORPAY_TOTAL_COUNT" envDefault:"12"`
}

// razorpaySubscriptions is the subset of the Razorpay client used here.
type razorpaySubscriptions interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayProvider implements BillingProvider and CheckoutProvider.
type RazorpayProvider struct {
	subscriptions razorpaySubscriptions
	secret        string
	ownerNote     string
	totalCount    int
	now           func() time.Time
}

// RazorpayOption configures RazorpayProvider.
type RazorpayOption func(*RazorpayProvider)

// WithRazorpayClient replaces the subscriptions API client.
func WithRazorpayClient(c razorpaySubscriptions) RazorpayOption {
	return func(p *RazorpayProvider) {
		if c != nil {
			p.subscriptions = c
		}
	}
}

func NewRazorpayProvider(cfg RazorpayConfig, opts ...RazorpayOption) (*RazorpayProvider, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.OwnerNote == "" {
		cfg.OwnerNote = "clerk_user_id"
	}
	if cfg.TotalCount <= 0 {
		cfg.TotalCount = 12
	}

	p := &RazorpayProvider{
		subscriptions: razorpay.NewClient(cfg.KeyID, cfg.KeySecret).Subscription,
		secret:        cfg.WebhookSecret,
		ownerNote:     cfg.OwnerNote,
		totalCount:    cfg.TotalCount,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *RazorpayProvider) Name() string { return ProviderRazorpay }

// CreateCheckout creates a processor subscription that notifies the
// customer and carries the owner in its notes, so later webhooks can be
// attributed.
func (p *RazorpayProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	if req.PlanID == "" {
		return Checkout{}, ErrMissingPlanID
	}
	if req.UserID == "" {
		return Checkout{}, ErrMissingUserID
	}
	if err := ctx.Err(); err != nil {
		return Checkout{}, errors.Join(ErrUpstreamUnavailable, err)
	}

	resp, err := p.subscriptions.Create(map[string]interface{}{
		"plan_id":         req.PlanID,
		"total_count":     p.totalCount,
		"customer_notify": 1,
		"notes": map[string]interface{}{
			p.ownerNote: req.UserID,
		},
	}, nil)
	if err != nil {
		return Checkout{}, errors.Join(ErrUpstreamUnavailable, fmt.Errorf("razorpay: create subscription: %w", err))
	}

	out := Checkout{}
	out.ID, _ = resp["id"].(string)
	out.Status, _ = resp["status"].(string)
	out.URL, _ = resp["short_url"].(string)
	if out.ID == "" {
		return Checkout{}, errors.Join(ErrUpstreamUnavailable, errors.New("razorpay: response without subscription id"))
	}
	return out, nil
}

type razorpayEnvelope struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Subscription *struct {
			Entity razorpaySubscription `json:"entity"`
		} `json:"subscription"`
		Payment *struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type razorpaySubscription struct {
	ID           string          `json:"id"`
	PlanID       string          `json:"plan_id"`
	Status       string          `json:"status"`
	StartAt      *int64          `json:"start_at"`
	EndAt        *int64          `json:"end_at"`
	CurrentStart *int64          `json:"current_start"`
	CurrentEnd   *int64          `json:"current_end"`
	EndedAt      *int64          `json:"ended_at"`
	Notes        json.RawMessage `json:"notes"`
}

type razorpayPayment struct {
	ID        string  `json:"id"`
	Amount    int64   `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
	Method    string  `json:"method"`
	OrderID   *string `json:"order_id"`
	InvoiceID *string `json:"invoice_id"`
	CreatedAt int64   `json:"created_at"`
}

var razorpayKinds = map[string]EventKind{
	"subscription.activated": EventActivated,
	"subscription.charged":   EventCharged,
	"subscription.cancelled": EventCancelled,
	"subscription.expired":   EventExpired,
	"subscription.paused":    EventPaused,
	"subscription.resumed":   EventResumed,
}

// ParseWebhook verifies X-Razorpay-Signature over the raw payload and
// normalizes the envelope. Unhandled event names come back with an
// unknown Kind and no error.
func (p *RazorpayProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (Event, error) {
	if err := webhook.Verify(p.secret, payload, header.Get(HeaderRazorpaySignature)); err != nil {
		return Event{}, errors.Join(ErrSignatureInvalid, err)
	}

	var env razorpayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, errors.Join(ErrInvalidEvent, err)
	}
	if env.Event == "" {
		return Event{}, fmt.Errorf("%w: missing event name", ErrInvalidEvent)
	}

	ev := Event{
		ID:       header.Get(HeaderRazorpayEventID),
		Provider: ProviderRazorpay,
		Name:     env.Event,
		Kind:     EventKind(env.Event),
	}
	if kind, ok := razorpayKinds[env.Event]; ok {
		ev.Kind = kind
	}
	if t := unixTime(&env.CreatedAt); t != nil {
		ev.OccurredAt = *t
	} else {
		ev.OccurredAt = p.now().UTC()
	}

	if env.Payload.Subscription == nil {
		if ev.Kind.Known() {
			return Event{}, fmt.Errorf("%w: %s without subscription entity", ErrInvalidEvent, env.Event)
		}
		return ev, nil
	}

	sub := env.Payload.Subscription.Entity
	ev.ExternalSubscriptionID = sub.ID
	ev.ExternalPlanID = sub.PlanID
	ev.UserID = strings.TrimSpace(notesValue(sub.Notes, p.ownerNote))
	ev.CurrentPeriodStart = unixTime(sub.CurrentStart)
	ev.CurrentPeriodEnd = unixTime(sub.CurrentEnd)

	switch ev.Kind {
	case EventActivated:
		ev.StartAt = unixTime(sub.StartAt)
		ev.EndAt = unixTime(sub.EndAt)
	case EventCancelled:
		ev.CancelledAt = unixTime(sub.EndedAt)
	case EventExpired:
		ev.EndAt = unixTime(sub.EndedAt)
	case EventCharged:
		if env.Payload.Payment == nil {
			break
		}
		pay, err := p.payment(env.Payload.Payment.Entity, ev)
		if err != nil {
			return Event{}, err
		}
		ev.Payment = &pay
	}
	return ev, nil
}

func (p *RazorpayProvider) payment(in razorpayPayment, ev Event) (Payment, error) {
	if in.ID == "" {
		return Payment{}, fmt.Errorf("%w: payment without id", ErrInvalidEvent)
	}
	amount, code, err := AmountFromMinor(in.Amount, in.Currency)
	if err != nil {
		return Payment{}, err
	}

	meta := map[string]any{
		"provider":        ProviderRazorpay,
		"subscription_id": ev.ExternalSubscriptionID,
		"plan_id":         ev.ExternalPlanID,
		"amount_minor":    in.Amount,
	}
	if in.OrderID != nil && *in.OrderID != "" {
		meta["order_id"] = *in.OrderID
	}
	if in.InvoiceID != nil && *in.InvoiceID != "" {
		meta["invoice_id"] = *in.InvoiceID
	}

	pay := Payment{
		ExternalPaymentID: in.ID,
		Amount:            amount,
		Currency:          code,
		Status:            in.Status,
		Method:            in.Method,
		Metadata:          meta,
	}
	if t := unixTime(&in.CreatedAt); t != nil {
		pay.PaidAt = *t
	}
	return pay, nil
}

// notesValue reads a string from Razorpay notes, which arrive as an object
// or, when empty, as an array.
func notesValue(raw json.RawMessage, key string) string {
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	var notes map[string]any
	if err := json.Unmarshal(raw, &notes); err != nil {
		return ""
	}
	v, _ := notes[key].(string)
	return v
}
