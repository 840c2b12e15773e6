package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/cache"
	"github.com/dmitrymomot/tiergate/pkg/logger"
)

// OverridePeriod is the billing period granted by an administrative override.
const OverridePeriod = 30 * 24 * time.Hour

// deliveryWindow is how long delivery ids are remembered.
const deliveryWindow = 24 * time.Hour

// Auditor appends audit entries.
type Auditor interface {
	Log(ctx context.Context, action audit.Action, opts ...audit.EntryOption) error
}

// Reconciler applies verified processor events to the store.
type Reconciler struct {
	store   Store
	users   UserEnsurer
	cache   cache.Cache
	audit   Auditor
	plans   PlanMapping
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// ReconcilerOption configures Reconciler.
type ReconcilerOption func(*Reconciler)

// WithPlanMapping replaces the default plan id table.
func WithPlanMapping(m PlanMapping) ReconcilerOption {
	return func(r *Reconciler) { r.plans = m }
}

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(log *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithStoreTimeout bounds every store call made while applying an event.
func WithStoreTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithReconcilerClock overrides the time source.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler panics if a required dependency is nil.
func NewReconciler(store Store, users UserEnsurer, c cache.Cache, auditor Auditor, opts ...ReconcilerOption) *Reconciler {
	if store == nil {
		panic("subscription: store is required")
	}
	if users == nil {
		panic("subscription: user ensurer is required")
	}
	if c == nil {
		panic("subscription: cache is required")
	}
	if auditor == nil {
		panic("subscription: auditor is required")
	}

	defaultPlans, _ := NewPlanMapping(nil)
	r := &Reconciler{
		store:   store,
		users:   users,
		cache:   c,
		audit:   auditor,
		plans:   defaultPlans,
		log:     slog.Default(),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.Component("reconciler"))
	return r
}

// Apply reconciles one event. It returns an error only when the event
// must be redelivered: persistence failures, an unavailable identity
// provider, or a failed cache invalidation. All writes are idempotent, so
// redelivery is safe.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (Result, error) {
	res := Result{Kind: ev.Kind, Name: ev.Name, UserID: ev.UserID}
	log := r.log.With(
		logger.Provider(ev.Provider),
		logger.EventKind(string(ev.Kind)),
		logger.EventID(ev.ID),
		logger.UserID(ev.UserID),
		logger.SubscriptionID(ev.ExternalSubscriptionID),
	)

	res.Redelivery = r.trackDelivery(ctx, ev)
	if res.Redelivery {
		log.InfoContext(ctx, "webhook redelivery")
	}

	if !ev.Kind.Known() {
		log.InfoContext(ctx, "ignoring unhandled event", slog.String("event", ev.Name))
		res.Outcome = OutcomeIgnored
		return res, nil
	}
	if ev.UserID == "" {
		log.WarnContext(ctx, "dropping event without owner reference")
		res.Outcome = OutcomeDropped
		return res, nil
	}
	if ev.ExternalSubscriptionID == "" {
		log.WarnContext(ctx, "dropping event without subscription id")
		res.Outcome = OutcomeDropped
		return res, nil
	}

	if err := r.users.EnsureUser(ctx, ev.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WarnContext(ctx, "dropping event for unknown user", logger.Error(err))
			res.Outcome = OutcomeDropped
			return res, nil
		}
		return res, fmt.Errorf("ensure user %s: %w", ev.UserID, err)
	}

	m := r.mutationFor(ev)
	if ev.ExternalPlanID != "" && m.Status == StatusActive && !m.PreservePlan && !r.plans.Known(ev.ExternalPlanID) {
		res.UnmappedPlan = true
		log.WarnContext(ctx, "unmapped plan id, reconciling as free", slog.String("plan_id", ev.ExternalPlanID))
	}

	sub, applied, err := r.applyMutation(ctx, m)
	if errors.Is(err, ErrOwnerMismatch) {
		log.ErrorContext(ctx, "dropping event for subscription owned by another user", logger.Error(err))
		res.Outcome = OutcomeDropped
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Subscription = &sub
	res.Outcome = OutcomeApplied
	if !applied {
		res.Outcome = OutcomeStale
		log.InfoContext(ctx, "skipping stale event",
			slog.Time("occurred_at", ev.OccurredAt),
			slog.Time("last_event_at", sub.LastEventAt),
		)
	}

	if ev.Kind == EventCharged && ev.Payment != nil {
		inserted, err := r.recordPayment(ctx, sub, *ev.Payment)
		if err != nil {
			return res, err
		}
		res.PaymentRecorded = inserted
		if !inserted {
			log.InfoContext(ctx, "payment already recorded", logger.PaymentID(ev.Payment.ExternalPaymentID))
		}
	}

	if res.Outcome == OutcomeStale {
		// The subscription row is untouched, but a new payment still
		// gets its audit entry.
		if res.PaymentRecorded {
			if err := r.audit.Log(ctx, audit.ActionPaymentSuccess, r.auditOptions(ev, sub)...); err != nil {
				return res, errors.Join(ErrPersistenceFailure, err)
			}
		}
		return res, nil
	}

	if err := r.invalidate(ctx, ev.UserID); err != nil {
		return res, err
	}
	if err := r.audit.Log(ctx, actionFor(ev.Kind), r.auditOptions(ev, sub)...); err != nil {
		return res, errors.Join(ErrPersistenceFailure, err)
	}

	log.InfoContext(ctx, "subscription event applied",
		logger.Plan(sub.Plan.String()),
		slog.String("status", string(sub.Status)),
		slog.Bool("current", sub.IsCurrent),
	)
	return res, nil
}

// Override sets a user's plan through the same upsert path as processor
// events, using a synthetic external id so repeated overrides update one
// row. The user must already exist.
func (r *Reconciler) Override(ctx context.Context, userID string, plan Plan) (Subscription, error) {
	if userID == "" {
		return Subscription{}, ErrMissingUserID
	}
	if !plan.Valid() {
		return Subscription{}, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}

	now := r.now().UTC()
	end := now.Add(OverridePeriod)
	m := Mutation{
		UserID:                 userID,
		ExternalSubscriptionID: OverrideSubscriptionID(userID),
		Plan:                   plan,
		Status:                 StatusActive,
		StartDate:              &now,
		EndDate:                &end,
		CurrentPeriodStart:     &now,
		CurrentPeriodEnd:       &end,
		OccurredAt:             now,
	}

	sub, _, err := r.applyMutation(ctx, m)
	if err != nil {
		return Subscription{}, err
	}
	if err := r.invalidate(ctx, userID); err != nil {
		return sub, err
	}
	if err := r.audit.Log(ctx, audit.ActionSubscriptionOverridden,
		audit.WithUser(userID),
		audit.WithResource("subscription", sub.ExternalSubscriptionID),
		audit.WithDetail("plan", string(plan)),
	); err != nil {
		return sub, errors.Join(ErrPersistenceFailure, err)
	}

	r.log.InfoContext(ctx, "subscription overridden", logger.UserID(userID), logger.Plan(plan.String()))
	return sub, nil
}

// OverrideSubscriptionID is the synthetic external id used by Override.
func OverrideSubscriptionID(userID string) string {
	return "override_" + userID
}

func (r *Reconciler) mutationFor(ev Event) Mutation {
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = r.now()
	}
	m := Mutation{
		UserID:                 ev.UserID,
		ExternalSubscriptionID: ev.ExternalSubscriptionID,
		ExternalPlanID:         ev.ExternalPlanID,
		Plan:                   r.plans.Resolve(ev.ExternalPlanID),
		StartDate:              ev.StartAt,
		EndDate:                ev.EndAt,
		CurrentPeriodStart:     ev.CurrentPeriodStart,
		CurrentPeriodEnd:       ev.CurrentPeriodEnd,
		OccurredAt:             occurred.UTC(),
	}

	switch ev.Kind {
	case EventActivated:
		m.Status = StatusActive
	case EventCharged:
		m.Status = StatusActive
		// Charge payloads without a plan id must not downgrade the row.
		m.PreservePlan = ev.ExternalPlanID == ""
	case EventCancelled:
		m.Status = StatusCancelled
		m.Plan = PlanFree
		cancelled := m.OccurredAt
		if ev.CancelledAt != nil {
			cancelled = ev.CancelledAt.UTC()
		}
		m.CancelledAt = &cancelled
	case EventExpired:
		m.Status = StatusExpired
		m.Plan = PlanFree
	case EventPaused:
		m.Status = StatusPaused
		m.PreservePlan = true
	case EventResumed:
		m.Status = StatusActive
		m.PreservePlan = true
	}
	return m
}

func (r *Reconciler) applyMutation(ctx context.Context, m Mutation) (Subscription, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sub, applied, err := r.store.ApplySubscription(ctx, m)
	switch {
	case err == nil:
		return sub, applied, nil
	case errors.Is(err, ErrOwnerMismatch), errors.Is(err, ErrNotFound), errors.Is(err, ErrPersistenceFailure):
		return sub, applied, err
	default:
		return sub, applied, errors.Join(ErrPersistenceFailure, err)
	}
}

func (r *Reconciler) recordPayment(ctx context.Context, sub Subscription, p Payment) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p.SubscriptionID = sub.ID
	if p.PaidAt.IsZero() {
		p.PaidAt = r.now().UTC()
	}
	inserted, err := r.store.RecordPayment(ctx, p)
	if err != nil && !errors.Is(err, ErrPersistenceFailure) {
		err = errors.Join(ErrPersistenceFailure, err)
	}
	return inserted, err
}

func (r *Reconciler) invalidate(ctx context.Context, userID string) error {
	if !cache.InvalidateSubscription(ctx, r.cache, userID) {
		return ErrCacheInvalidation
	}
	return nil
}

// trackDelivery counts deliveries per event id. The counter only feeds
// logs; idempotence comes from the store's unique keys.
func (r *Reconciler) trackDelivery(ctx context.Context, ev Event) bool {
	if ev.ID == "" {
		return false
	}
	key := cache.DeliveryKey(ev.Provider, ev.ID)
	n, ok := r.cache.Increment(ctx, key)
	if !ok {
		return false
	}
	if n == 1 {
		r.cache.Expire(ctx, key, deliveryWindow)
	}
	return n > 1
}

func (r *Reconciler) auditOptions(ev Event, sub Subscription) []audit.EntryOption {
	opts := []audit.EntryOption{
		audit.WithUser(ev.UserID),
		audit.WithDetail("plan", string(sub.Plan)),
		audit.WithDetail("status", string(sub.Status)),
		audit.WithDetail("event", ev.Name),
	}
	if ev.ExternalPlanID != "" {
		opts = append(opts, audit.WithDetail("plan_id", ev.ExternalPlanID))
	}
	if ev.Payment == nil {
		return append(opts, audit.WithResource("subscription", ev.ExternalSubscriptionID))
	}
	return append(opts,
		audit.WithResource("payment", ev.Payment.ExternalPaymentID),
		audit.WithDetail("subscription_id", ev.ExternalSubscriptionID),
		audit.WithDetail("amount", ev.Payment.Amount.String()),
		audit.WithDetail("currency", ev.Payment.Currency),
	)
}

func actionFor(k EventKind) audit.Action {
	switch k {
	case EventActivated:
		return audit.ActionSubscriptionActivated
	case EventCharged:
		return audit.ActionPaymentSuccess
	case EventCancelled:
		return audit.ActionSubscriptionCancelled
	case EventExpired:
		return audit.ActionSubscriptionExpired
	case EventPaused:
		return audit.ActionSubscriptionPaused
	case EventResumed:
		return audit.ActionSubscriptionResumed
	}
	return audit.Action(k)
}
