package subscription

import "time"

// Status is the lifecycle state of a subscription row.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusPaused    Status = "paused"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCancelled, StatusExpired, StatusPaused:
		return true
	}
	return false
}

// Entitlement is the resolved access a user has right now. It is the value
// cached per user and the wire form of GetSubscription.
type Entitlement struct {
	Plan                   Plan       `json:"plan"`
	Status                 Status     `json:"status,omitempty"`
	ExternalSubscriptionID string     `json:"externalSubscriptionId,omitempty"`
	StartDate              *time.Time `json:"startDate,omitempty"`
	EndDate                *time.Time `json:"endDate,omitempty"`
}

// FreeEntitlement is returned for anonymous users and users without a
// current subscription.
func FreeEntitlement() Entitlement {
	return Entitlement{Plan: PlanFree}
}

// HasFeature reports whether the entitlement's plan includes f.
func (e Entitlement) HasFeature(f Feature) bool {
	return PlanHasFeature(e.Plan, f)
}

// Satisfies reports whether the entitlement's plan is at least required.
func (e Entitlement) Satisfies(required Plan) bool {
	return e.Plan.Satisfies(required)
}
