package identity

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// User is the local copy of an identity-provider account. ID is the
// provider's stable user id.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName joins first and last name, falling back to the email.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// UserStore persists users. DeleteUser cascades to everything the user owns.
type UserStore interface {
	GetUser(ctx context.Context, id string) (User, error)
	UpsertUser(ctx context.Context, u User) (created bool, err error)
	DeleteUser(ctx context.Context, id string) (deleted bool, err error)
}

// Provider fetches profiles from the identity provider.
type Provider interface {
	FetchUser(ctx context.Context, id string) (User, error)
}

// Verifier authenticates identity webhook deliveries.
type Verifier interface {
	Verify(payload []byte, header http.Header) error
}
