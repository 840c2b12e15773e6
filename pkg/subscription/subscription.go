package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription mirrors one processor subscription object. A user may own
// several rows over time; exactly one of them has IsCurrent set.
type Subscription struct {
	ID                     uuid.UUID
	UserID                 string
	ExternalSubscriptionID string
	Plan                   Plan
	Status                 Status
	ExternalPlanID         string
	StartDate              *time.Time
	EndDate                *time.Time
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelledAt            *time.Time
	IsCurrent              bool
	// LastEventAt is the occurrence time of the newest event applied to
	// the row. Older events are skipped.
	LastEventAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Entitlement projects the row into the cached wire form.
func (s Subscription) Entitlement() Entitlement {
	return Entitlement{
		Plan:                   s.Plan,
		Status:                 s.Status,
		ExternalSubscriptionID: s.ExternalSubscriptionID,
		StartDate:              s.StartDate,
		EndDate:                s.EndDate,
	}
}

// Mutation is a write against the subscription keyed by
// ExternalSubscriptionID. Nil timestamps leave stored values untouched.
type Mutation struct {
	UserID                 string
	ExternalSubscriptionID string
	ExternalPlanID         string
	Plan                   Plan
	// PreservePlan keeps the stored plan on update. Plan is still used
	// when the row is inserted.
	PreservePlan       bool
	Status             Status
	StartDate          *time.Time
	EndDate            *time.Time
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelledAt        *time.Time
	OccurredAt         time.Time
}

// IsStale reports whether the mutation happened before the newest event
// already applied to existing.
func (m Mutation) IsStale(existing *Subscription) bool {
	if existing == nil || m.OccurredAt.IsZero() {
		return false
	}
	return m.OccurredAt.Before(existing.LastEventAt)
}

// TakesCurrent decides whether the target row becomes the user's current
// subscription. A downgrade of an old row never displaces another active
// subscription.
func (m Mutation) TakesCurrent(target, current *Subscription) bool {
	if current == nil {
		return true
	}
	if target != nil && target.ID == current.ID {
		return true
	}
	if m.Status == StatusActive {
		return true
	}
	return current.Status != StatusActive
}

// Merge applies m on top of existing (nil for a new row) and returns the
// row to persist. IsCurrent is left to the caller.
func (m Mutation) Merge(existing *Subscription, now time.Time) Subscription {
	var s Subscription
	if existing != nil {
		s = *existing
	} else {
		s = Subscription{
			ID:                     uuid.New(),
			UserID:                 m.UserID,
			ExternalSubscriptionID: m.ExternalSubscriptionID,
			Plan:                   PlanFree,
			CreatedAt:              now,
		}
	}

	if existing == nil || !m.PreservePlan {
		if m.Plan.Valid() {
			s.Plan = m.Plan
		}
	}
	s.Status = m.Status
	if m.ExternalPlanID != "" {
		s.ExternalPlanID = m.ExternalPlanID
	}

	s.StartDate = coalesce(m.StartDate, s.StartDate)
	s.EndDate = coalesce(m.EndDate, s.EndDate)
	s.CurrentPeriodStart = coalesce(m.CurrentPeriodStart, s.CurrentPeriodStart)
	s.CurrentPeriodEnd = coalesce(m.CurrentPeriodEnd, s.CurrentPeriodEnd)
	if m.Status == StatusActive {
		s.CancelledAt = nil
	} else {
		s.CancelledAt = coalesce(m.CancelledAt, s.CancelledAt)
	}

	if m.OccurredAt.After(s.LastEventAt) {
		s.LastEventAt = m.OccurredAt
	}
	s.UpdatedAt = now
	return s
}

func coalesce(v, fallback *time.Time) *time.Time {
	if v != nil {
		t := v.UTC()
		return &t
	}
	return fallback
}
