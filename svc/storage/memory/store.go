// Package memory is an in-process implementation of every storage
// interface. It follows the same locking and upsert rules as the
// Postgres store and is used in tests and single-instance deployments.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/identity"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/pkg/usage"
)

// Store keeps users, subscriptions, payments, usage metrics and audit
// entries in maps guarded by a single mutex.
type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	users         map[string]identity.User
	subscriptions map[string]subscription.Subscription // by external id
	payments      map[string]subscription.Payment      // by external id
	metrics       map[string]usage.Metric              // by user id + metric type
	audit         []audit.Entry
}

// Option configures Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		now:           time.Now,
		users:         make(map[string]identity.User),
		subscriptions: make(map[string]subscription.Subscription),
		payments:      make(map[string]subscription.Payment),
		metrics:       make(map[string]usage.Metric),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetUser(ctx context.Context, id string) (identity.User, error) {
	if err := ctx.Err(); err != nil {
		return identity.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return identity.User{}, identity.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) UpsertUser(ctx context.Context, u identity.User) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	existing, ok := s.users[u.ID]
	if ok {
		u.CreatedAt = existing.CreatedAt
	} else if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = u
	return !ok, nil
}

// DeleteUser removes the user with its subscriptions, payments and usage
// metrics. Audit entries are kept.
func (s *Store) DeleteUser(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)

	for extID, sub := range s.subscriptions {
		if sub.UserID != id {
			continue
		}
		for payID, p := range s.payments {
			if p.SubscriptionID == sub.ID {
				delete(s.payments, payID)
			}
		}
		delete(s.subscriptions, extID)
	}
	for key, m := range s.metrics {
		if m.UserID == id {
			delete(s.metrics, key)
		}
	}
	return true, nil
}

func (s *Store) ApplySubscription(ctx context.Context, m subscription.Mutation) (subscription.Subscription, bool, error) {
	if err := ctx.Err(); err != nil {
		return subscription.Subscription{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[m.UserID]; !ok {
		return subscription.Subscription{}, false, subscription.ErrUserNotFound
	}

	var target *subscription.Subscription
	if existing, ok := s.subscriptions[m.ExternalSubscriptionID]; ok {
		if existing.UserID != m.UserID {
			return subscription.Subscription{}, false, subscription.ErrOwnerMismatch
		}
		target = &existing
	}
	if m.IsStale(target) {
		return *target, false, nil
	}

	current := s.current(m.UserID)
	takes := m.TakesCurrent(target, current)

	row := m.Merge(target, s.now().UTC())
	if takes {
		if current != nil && current.ExternalSubscriptionID != row.ExternalSubscriptionID {
			prev := *current
			prev.IsCurrent = false
			s.subscriptions[prev.ExternalSubscriptionID] = prev
		}
		row.IsCurrent = true
	}
	s.subscriptions[row.ExternalSubscriptionID] = row
	return row, true, nil
}

func (s *Store) CurrentSubscription(ctx context.Context, userID string) (subscription.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return subscription.Subscription{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cur := s.current(userID); cur != nil {
		return *cur, nil
	}
	return subscription.Subscription{}, subscription.ErrSubscriptionNotFound
}

// Subscriptions lists every row owned by userID, current or not.
func (s *Store) Subscriptions(userID string) []subscription.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b subscription.Subscription) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (s *Store) current(userID string) *subscription.Subscription {
	for _, sub := range s.subscriptions {
		if sub.UserID == userID && sub.IsCurrent {
			return &sub
		}
	}
	return nil
}

func (s *Store) RecordPayment(ctx context.Context, p subscription.Payment) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.ExternalPaymentID]; ok {
		return false, nil
	}
	if p.Metadata != nil {
		p.Metadata = maps.Clone(p.Metadata)
	}
	s.payments[p.ExternalPaymentID] = p
	return true, nil
}

// Payments lists payments recorded against a subscription row.
func (s *Store) Payments(subscriptionID string) []subscription.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []subscription.Payment
	for _, p := range s.payments {
		if p.SubscriptionID.String() == subscriptionID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b subscription.Payment) int { return a.PaidAt.Compare(b.PaidAt) })
	return out
}

func (s *Store) StoreAuditEntry(ctx context.Context, e audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Details != nil {
		e.Details = maps.Clone(e.Details)
	}
	s.audit = append(s.audit, e)
	return nil
}

// AuditEntries returns entries in insertion order, optionally filtered to
// the given actions.
func (s *Store) AuditEntries(actions ...audit.Action) []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for _, e := range s.audit {
		if len(actions) == 0 || slices.Contains(actions, e.Action) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) GetOrCreateMetric(ctx context.Context, userID, metricType string) (usage.Metric, error) {
	if err := ctx.Err(); err != nil {
		return usage.Metric{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return usage.Metric{}, subscription.ErrUserNotFound
	}
	return s.metric(userID, metricType), nil
}

func (s *Store) IncrementMetric(ctx context.Context, userID, metricType string, by int64) (usage.Metric, error) {
	if err := ctx.Err(); err != nil {
		return usage.Metric{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return usage.Metric{}, subscription.ErrUserNotFound
	}

	m := s.metric(userID, metricType)
	m.CurrentValue += by
	m.UpdatedAt = s.now().UTC()
	s.metrics[metricKey(userID, metricType)] = m
	return m, nil
}

// SetMetricLimit caps a metric, creating it when missing. Pass a negative
// limit to make it unbounded again.
func (s *Store) SetMetricLimit(userID, metricType string, limit int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.metric(userID, metricType)
	m.LimitValue = nil
	if limit >= 0 {
		m.LimitValue = &limit
	}
	s.metrics[metricKey(userID, metricType)] = m
}

// metric must be called with the write lock held.
func (s *Store) metric(userID, metricType string) usage.Metric {
	key := metricKey(userID, metricType)
	if m, ok := s.metrics[key]; ok {
		return m
	}
	now := s.now().UTC()
	m := usage.Metric{UserID: userID, MetricType: metricType, CreatedAt: now, UpdatedAt: now}
	s.metrics[key] = m
	return m
}

func metricKey(userID, metricType string) string {
	return userID + "\x00" + metricType
}
