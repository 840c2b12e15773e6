package subscription

import "time"

// EventKind is a normalized processor event.
type EventKind string

const (
	EventActivated EventKind = "activated"
	EventCharged   EventKind = "charged"
	EventCancelled EventKind = "cancelled"
	EventExpired   EventKind = "expired"
	EventPaused    EventKind = "paused"
	EventResumed   EventKind = "resumed"
)

// Known reports whether the reconciler acts on k.
func (k EventKind) Known() bool {
	switch k {
	case EventActivated, EventCharged, EventCancelled, EventExpired, EventPaused, EventResumed:
		return true
	}
	return false
}

// Event is a verified processor event in provider-neutral form.
type Event struct {
	// ID is the processor's delivery id, used only to spot redeliveries.
	ID       string
	Provider string
	Kind     EventKind
	// Name is the provider's raw event name, e.g. "subscription.charged".
	Name                   string
	UserID                 string
	ExternalSubscriptionID string
	ExternalPlanID         string
	OccurredAt             time.Time
	StartAt                *time.Time
	EndAt                  *time.Time
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelledAt            *time.Time
	// Payment is set for charged events.
	Payment *Payment
}

// Outcome describes what Apply did with an event.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	// OutcomeStale means a newer event was already applied to the row.
	OutcomeStale Outcome = "stale"
	// OutcomeIgnored means the event kind is not reconciled.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDropped means the event cannot be attributed to a user.
	OutcomeDropped Outcome = "dropped"
)

// Result reports the effect of a successful Apply.
type Result struct {
	Outcome         Outcome
	Kind            EventKind
	Name            string
	UserID          string
	Subscription    *Subscription
	PaymentRecorded bool
	// Redelivery is set when the delivery id was seen before.
	Redelivery bool
	// UnmappedPlan is set when an activating event named a plan id the
	// mapping does not know. The subscription was reconciled on the free
	// tier.
	UnmappedPlan bool
}
