package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tiergate/pkg/pg"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
)

// RecordPayment inserts p, or does nothing when the external payment id is
// already recorded.
func (s *Store) RecordPayment(ctx context.Context, p subscription.Payment) (bool, error) {
	const q = `
		INSERT INTO payments (id, subscription_id, external_payment_id, amount, currency, status, method, paid_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_payment_id) DO NOTHING`

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Currency == "" {
		p.Currency = subscription.DefaultCurrency
	}
	meta := []byte("{}")
	if len(p.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(p.Metadata); err != nil {
			return false, fmt.Errorf("encode payment metadata: %w", err)
		}
	}

	res, err := s.db.ExecContext(ctx, q,
		p.ID, p.SubscriptionID, p.ExternalPaymentID, p.Amount.StringFixed(2), p.Currency,
		p.Status, p.Method, p.PaidAt.UTC(), string(meta),
	)
	if pg.IsForeignKeyViolationError(err) {
		return false, fmt.Errorf("payment %s: %w", p.ExternalPaymentID, subscription.ErrSubscriptionNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("record payment %s: %w", p.ExternalPaymentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record payment %s: %w", p.ExternalPaymentID, err)
	}
	return n == 1, nil
}
