package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrymomot/tiergate/pkg/pg"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
)

const subscriptionColumns = `id, user_id, external_subscription_id, plan, status, external_plan_id,
	start_date, end_date, current_period_start, current_period_end, cancelled_at,
	is_current, last_event_at, created_at, updated_at`

func scanSubscription(row rowScanner) (subscription.Subscription, error) {
	var (
		sub                                subscription.Subscription
		start, end, periodStart, periodEnd sql.NullTime
		cancelled                          sql.NullTime
		plan, status                       string
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.ExternalSubscriptionID, &plan, &status, &sub.ExternalPlanID,
		&start, &end, &periodStart, &periodEnd, &cancelled,
		&sub.IsCurrent, &sub.LastEventAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return subscription.Subscription{}, err
	}
	sub.Plan = subscription.Plan(plan)
	sub.Status = subscription.Status(status)
	sub.StartDate = nullTime(start)
	sub.EndDate = nullTime(end)
	sub.CurrentPeriodStart = nullTime(periodStart)
	sub.CurrentPeriodEnd = nullTime(periodEnd)
	sub.CancelledAt = nullTime(cancelled)
	sub.LastEventAt = sub.LastEventAt.UTC()
	return sub, nil
}

// ApplySubscription runs the whole mutation in one transaction holding the
// owner's row lock, so concurrent events for a user serialize.
func (s *Store) ApplySubscription(ctx context.Context, m subscription.Mutation) (subscription.Subscription, bool, error) {
	var (
		out     subscription.Subscription
		applied bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, applied, err = s.applyTx(ctx, tx, m)
		return err
	})
	if err != nil {
		return subscription.Subscription{}, false, err
	}
	return out, applied, nil
}

func (s *Store) applyTx(ctx context.Context, tx *sql.Tx, m subscription.Mutation) (subscription.Subscription, bool, error) {
	var owner string
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, m.UserID).Scan(&owner)
	if pg.IsNotFoundError(err) {
		return subscription.Subscription{}, false, subscription.ErrUserNotFound
	}
	if err != nil {
		return subscription.Subscription{}, false, fmt.Errorf("lock user %s: %w", m.UserID, err)
	}

	target, err := s.lockOne(ctx, tx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE external_subscription_id = $1 FOR UPDATE`,
		m.ExternalSubscriptionID)
	if err != nil {
		return subscription.Subscription{}, false, err
	}
	if target != nil && target.UserID != m.UserID {
		return subscription.Subscription{}, false, subscription.ErrOwnerMismatch
	}
	if m.IsStale(target) {
		return *target, false, nil
	}

	current, err := s.lockOne(ctx, tx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 AND is_current FOR UPDATE`,
		m.UserID)
	if err != nil {
		return subscription.Subscription{}, false, err
	}

	now := s.now().UTC()
	takes := m.TakesCurrent(target, current)
	row := m.Merge(target, now)
	if takes {
		if current != nil && current.ID != row.ID {
			if _, err := tx.ExecContext(ctx,
				`UPDATE subscriptions SET is_current = false, updated_at = $2 WHERE id = $1`,
				current.ID, now); err != nil {
				return subscription.Subscription{}, false, fmt.Errorf("release current subscription: %w", err)
			}
		}
		row.IsCurrent = true
	}

	const upsert = `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (external_subscription_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			external_plan_id = EXCLUDED.external_plan_id,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancelled_at = EXCLUDED.cancelled_at,
			is_current = EXCLUDED.is_current,
			last_event_at = EXCLUDED.last_event_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + subscriptionColumns

	saved, err := scanSubscription(tx.QueryRowContext(ctx, upsert,
		row.ID, row.UserID, row.ExternalSubscriptionID, string(row.Plan), string(row.Status), row.ExternalPlanID,
		toNullTime(row.StartDate), toNullTime(row.EndDate),
		toNullTime(row.CurrentPeriodStart), toNullTime(row.CurrentPeriodEnd), toNullTime(row.CancelledAt),
		row.IsCurrent, row.LastEventAt, row.CreatedAt, row.UpdatedAt,
	))
	if err != nil {
		return subscription.Subscription{}, false, fmt.Errorf("upsert subscription %s: %w", row.ExternalSubscriptionID, err)
	}
	return saved, true, nil
}

// lockOne returns nil when no row matches.
func (s *Store) lockOne(ctx context.Context, tx *sql.Tx, q string, arg any) (*subscription.Subscription, error) {
	sub, err := scanSubscription(tx.QueryRowContext(ctx, q, arg))
	if pg.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return &sub, nil
}

func (s *Store) CurrentSubscription(ctx context.Context, userID string) (subscription.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 AND is_current`, userID))
	if pg.IsNotFoundError(err) {
		return subscription.Subscription{}, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("current subscription for %s: %w", userID, err)
	}
	return sub, nil
}
