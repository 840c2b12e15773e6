package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"
)

// ClerkConfig configures the Clerk backend client and webhook verifier.
type ClerkConfig struct {
	SecretKey     string `env:"CLERK_SECRET_KEY,required"`
	WebhookSecret string `env:"CLERK_WEBHOOK_SECRET,required"`
}

// ClerkProvider fetches users from the Clerk Backend API.
type ClerkProvider struct {
	client *clerkuser.Client
}

func NewClerkProvider(cfg ClerkConfig) (*ClerkProvider, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingSecret
	}
	client := clerkuser.NewClient(&clerk.ClientConfig{
		BackendConfig: clerk.BackendConfig{Key: clerk.String(cfg.SecretKey)},
	})
	return &ClerkProvider{client: client}, nil
}

// FetchUser returns ErrUserNotFound for unknown ids and
// ErrUpstreamUnavailable for any other API failure.
func (p *ClerkProvider) FetchUser(ctx context.Context, id string) (User, error) {
	u, err := p.client.Get(ctx, id)
	if err != nil {
		var apiErr *clerk.APIErrorResponse
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
			return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		return User{}, errors.Join(ErrUpstreamUnavailable, err)
	}
	return userFromClerk(u), nil
}

func userFromClerk(u *clerk.User) User {
	out := User{
		ID:        u.ID,
		CreatedAt: fromMillis(u.CreatedAt),
		UpdatedAt: fromMillis(u.UpdatedAt),
	}
	if u.FirstName != nil {
		out.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		out.LastName = *u.LastName
	}

	for _, e := range u.EmailAddresses {
		if e == nil {
			continue
		}
		if out.Email == "" {
			out.Email = e.EmailAddress
		}
		if u.PrimaryEmailAddressID != nil && e.ID == *u.PrimaryEmailAddressID {
			out.Email = e.EmailAddress
			break
		}
	}
	return out
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
