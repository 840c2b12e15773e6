package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action names what happened. Stored verbatim.
type Action string

const (
	ActionSubscriptionActivated  Action = "SUBSCRIPTION_ACTIVATED"
	ActionPaymentSuccess         Action = "PAYMENT_SUCCESS"
	ActionSubscriptionCancelled  Action = "SUBSCRIPTION_CANCELLED"
	ActionSubscriptionExpired    Action = "SUBSCRIPTION_EXPIRED"
	ActionSubscriptionPaused     Action = "SUBSCRIPTION_PAUSED"
	ActionSubscriptionResumed    Action = "SUBSCRIPTION_RESUMED"
	ActionSubscriptionOverridden Action = "SUBSCRIPTION_OVERRIDDEN"
	ActionUserCreated            Action = "USER_CREATED"
	ActionUserDeleted            Action = "USER_DELETED"
)

// Entry is one append-only audit row.
type Entry struct {
	ID           uuid.UUID      `json:"id"`
	UserID       string         `json:"user_id,omitempty"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (e Entry) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidEntry)
	}
	return nil
}

// Storage appends entries. Entries are never updated or deleted.
type Storage interface {
	StoreAuditEntry(ctx context.Context, e Entry) error
}

// EntryOption sets optional entry fields.
type EntryOption func(*Entry)

// WithUser sets the acting or affected user.
func WithUser(userID string) EntryOption {
	return func(e *Entry) { e.UserID = userID }
}

func WithResource(resourceType, id string) EntryOption {
	return func(e *Entry) {
		e.ResourceType = resourceType
		e.ResourceID = id
	}
}

// WithDetail adds one key to the free-form details.
func WithDetail(key string, value any) EntryOption {
	return func(e *Entry) {
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		e.Details[key] = value
	}
}
