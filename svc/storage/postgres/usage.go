package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrymomot/tiergate/pkg/pg"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/pkg/usage"
)

const metricColumns = `user_id, metric_type, current_value, limit_value, reset_date, created_at, updated_at`

func scanMetric(row rowScanner) (usage.Metric, error) {
	var (
		m     usage.Metric
		limit sql.NullInt64
		reset sql.NullTime
	)
	if err := row.Scan(&m.UserID, &m.MetricType, &m.CurrentValue, &limit, &reset, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return usage.Metric{}, err
	}
	if limit.Valid {
		m.LimitValue = &limit.Int64
	}
	m.ResetDate = nullTime(reset)
	return m, nil
}

// GetOrCreateMetric inserts a zero counter on first access. The no-op
// update makes RETURNING yield the existing row on conflict.
func (s *Store) GetOrCreateMetric(ctx context.Context, userID, metricType string) (usage.Metric, error) {
	const q = `
		INSERT INTO usage_metrics (user_id, metric_type, current_value, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (user_id, metric_type) DO UPDATE SET metric_type = EXCLUDED.metric_type
		RETURNING ` + metricColumns

	m, err := scanMetric(s.db.QueryRowContext(ctx, q, userID, metricType, s.now().UTC()))
	return m, metricErr(err, userID, metricType)
}

// IncrementMetric adds by in a single statement, so concurrent increments
// never lose updates.
func (s *Store) IncrementMetric(ctx context.Context, userID, metricType string, by int64) (usage.Metric, error) {
	const q = `
		INSERT INTO usage_metrics (user_id, metric_type, current_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, metric_type) DO UPDATE SET
			current_value = usage_metrics.current_value + EXCLUDED.current_value,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + metricColumns

	m, err := scanMetric(s.db.QueryRowContext(ctx, q, userID, metricType, by, s.now().UTC()))
	return m, metricErr(err, userID, metricType)
}

func metricErr(err error, userID, metricType string) error {
	switch {
	case err == nil:
		return nil
	case pg.IsForeignKeyViolationError(err):
		return fmt.Errorf("usage %s/%s: %w", userID, metricType, subscription.ErrUserNotFound)
	default:
		return fmt.Errorf("usage %s/%s: %w", userID, metricType, err)
	}
}
