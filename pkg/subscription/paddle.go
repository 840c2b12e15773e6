package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

const (
	ProviderPaddle = "paddle"

	HeaderPaddleSignature = "Paddle-Signature"
)

// PaddleConfig holds API and webhook credentials.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	// OwnerKey is the custom_data key carrying the user id.
	OwnerKey string `env:"PADDLE_OWNER_KEY" envDefault:"user_id"`
}

// PaddleProvider implements BillingProvider and CheckoutProvider.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	ownerKey string
	now      func() time.Time
}

func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: paddle environment %q", ErrInvalidProviderConfig, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	ownerKey := cfg.OwnerKey
	if ownerKey == "" {
		ownerKey = "user_id"
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		ownerKey: ownerKey,
		now:      time.Now,
	}, nil
}

func (p *PaddleProvider) Name() string { return ProviderPaddle }

// CreateCheckout creates a draft transaction for the price and returns its
// hosted checkout URL. The owner travels in custom_data.
func (p *PaddleProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	if req.PlanID == "" {
		return Checkout{}, ErrMissingPlanID
	}
	if req.UserID == "" {
		return Checkout{}, ErrMissingUserID
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PlanID,
		Quantity: 1,
	})
	txReq := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{p.ownerKey: req.UserID},
	}
	if req.Email != "" {
		txReq.CustomData["email"] = req.Email
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return Checkout{}, errors.Join(ErrUpstreamUnavailable, fmt.Errorf("paddle: create transaction: %w", err))
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil {
		return Checkout{}, errors.Join(ErrUpstreamUnavailable, errors.New("paddle: no checkout url returned"))
	}

	// Paddle checkout links stay valid for about a day.
	expires := p.now().Add(24 * time.Hour).UTC()
	return Checkout{
		ID:        tx.ID,
		Status:    string(tx.Status),
		URL:       *tx.Checkout.URL,
		ExpiresAt: &expires,
	}, nil
}

type paddleEnvelope struct {
	EventID    string     `json:"event_id"`
	EventType  string     `json:"event_type"`
	OccurredAt time.Time  `json:"occurred_at"`
	Data       paddleData `json:"data"`
}

type paddleData struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	SubscriptionID string         `json:"subscription_id"`
	CustomData     map[string]any `json:"custom_data"`
	StartedAt      *time.Time     `json:"started_at"`
	CanceledAt     *time.Time     `json:"canceled_at"`
	BilledAt       *time.Time     `json:"billed_at"`
	CurrencyCode   string         `json:"currency_code"`
	Period         *struct {
		StartsAt *time.Time `json:"starts_at"`
		EndsAt   *time.Time `json:"ends_at"`
	} `json:"current_billing_period"`
	Items []struct {
		PriceID string `json:"price_id"`
		Price   *struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"items"`
	Details *struct {
		Totals struct {
			GrandTotal string `json:"grand_total"`
		} `json:"totals"`
	} `json:"details"`
	Payments []struct {
		MethodDetails *struct {
			Type string `json:"type"`
		} `json:"method_details"`
	} `json:"payments"`
}

func (d paddleData) priceID() string {
	if len(d.Items) == 0 {
		return ""
	}
	if d.Items[0].Price != nil && d.Items[0].Price.ID != "" {
		return d.Items[0].Price.ID
	}
	return d.Items[0].PriceID
}

// ParseWebhook verifies the Paddle-Signature header and normalizes the
// notification.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return Event{}, errors.Join(ErrInvalidEvent, err)
	}
	req.Header.Set(HeaderPaddleSignature, header.Get(HeaderPaddleSignature))

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return Event{}, errors.Join(ErrSignatureInvalid, err)
	}
	if !valid {
		return Event{}, ErrSignatureInvalid
	}

	var env paddleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, errors.Join(ErrInvalidEvent, err)
	}

	ev := Event{
		ID:         env.EventID,
		Provider:   ProviderPaddle,
		Name:       env.EventType,
		Kind:       paddleKind(env.EventType, env.Data),
		OccurredAt: env.OccurredAt.UTC(),
		UserID:     p.owner(env.Data.CustomData),
	}
	if env.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}

	d := env.Data
	ev.ExternalPlanID = d.priceID()
	if d.Period != nil {
		ev.CurrentPeriodStart = d.Period.StartsAt
		ev.CurrentPeriodEnd = d.Period.EndsAt
	}

	if strings.HasPrefix(env.EventType, "transaction.") {
		ev.ExternalSubscriptionID = d.SubscriptionID
		if ev.Kind == EventCharged {
			pay, err := paddlePayment(d)
			if err != nil {
				return Event{}, err
			}
			ev.Payment = &pay
		}
		return ev, nil
	}

	ev.ExternalSubscriptionID = d.ID
	switch ev.Kind {
	case EventActivated:
		ev.StartAt = d.StartedAt
	case EventCancelled:
		ev.CancelledAt = d.CanceledAt
	}
	return ev, nil
}

func (p *PaddleProvider) owner(custom map[string]any) string {
	for _, key := range []string{p.ownerKey, "customer_id"} {
		if v, ok := custom[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func paddleKind(eventType string, d paddleData) EventKind {
	switch eventType {
	case "subscription.activated", "subscription.created":
		return EventActivated
	case "subscription.canceled":
		return EventCancelled
	case "subscription.paused":
		return EventPaused
	case "subscription.resumed":
		return EventResumed
	case "subscription.updated":
		switch d.Status {
		case "active", "trialing":
			return EventActivated
		case "paused":
			return EventPaused
		case "canceled":
			return EventCancelled
		}
	case "transaction.completed":
		if d.SubscriptionID != "" {
			return EventCharged
		}
	}
	return EventKind(eventType)
}

func paddlePayment(d paddleData) (Payment, error) {
	var minor int64
	if d.Details != nil && d.Details.Totals.GrandTotal != "" {
		n, err := strconv.ParseInt(d.Details.Totals.GrandTotal, 10, 64)
		if err != nil {
			return Payment{}, fmt.Errorf("%w: grand_total %q", ErrInvalidEvent, d.Details.Totals.GrandTotal)
		}
		minor = n
	}
	amount, code, err := AmountFromMinor(minor, d.CurrencyCode)
	if err != nil {
		return Payment{}, err
	}

	pay := Payment{
		ExternalPaymentID: d.ID,
		Amount:            amount,
		Currency:          code,
		Status:            d.Status,
		Metadata: map[string]any{
			"provider":        ProviderPaddle,
			"subscription_id": d.SubscriptionID,
			"amount_minor":    minor,
		},
	}
	if len(d.Payments) > 0 && d.Payments[0].MethodDetails != nil {
		pay.Method = d.Payments[0].MethodDetails.Type
	}
	if d.BilledAt != nil {
		pay.PaidAt = d.BilledAt.UTC()
	}
	return pay, nil
}
