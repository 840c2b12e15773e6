package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/cache"
	"github.com/dmitrymomot/tiergate/pkg/logger"
)

// Auditor appends audit entries.
type Auditor interface {
	Log(ctx context.Context, action audit.Action, opts ...audit.EntryOption) error
}

// Service keeps local users in sync with the identity provider.
type Service struct {
	users    UserStore
	provider Provider
	verifier Verifier
	cache    cache.Cache
	audit    Auditor
	log      *slog.Logger
	ttl      time.Duration
	timeout  time.Duration
}

// Option configures Service.
type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCacheTTL sets how long a known user id is cached.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithTimeout bounds store and provider calls.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService panics if a required dependency is nil.
func NewService(users UserStore, provider Provider, verifier Verifier, c cache.Cache, auditor Auditor, opts ...Option) *Service {
	switch {
	case users == nil:
		panic("identity: user store is required")
	case provider == nil:
		panic("identity: provider is required")
	case verifier == nil:
		panic("identity: verifier is required")
	case c == nil:
		panic("identity: cache is required")
	case auditor == nil:
		panic("identity: auditor is required")
	}

	s := &Service{
		users:    users,
		provider: provider,
		verifier: verifier,
		cache:    c,
		audit:    auditor,
		log:      slog.Default(),
		ttl:      cache.DefaultTTL,
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("identity"))
	return s
}

// EnsureUser creates the local user from the provider profile when it is
// absent. Existing users are left untouched.
func (s *Service) EnsureUser(ctx context.Context, id string) error {
	if _, ok := cache.GetJSON[User](ctx, s.cache, cache.UserKey(id)); ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.users.GetUser(ctx, id)
	if err == nil {
		cache.SetJSON(ctx, s.cache, cache.UserKey(id), u, s.ttl)
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return errors.Join(ErrPersistenceFailure, err)
	}

	u, err = s.provider.FetchUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return errors.Join(ErrUpstreamUnavailable, err)
	}
	if u.ID == "" {
		u.ID = id
	}
	if _, err := s.users.UpsertUser(ctx, u); err != nil {
		return errors.Join(ErrPersistenceFailure, err)
	}
	cache.SetJSON(ctx, s.cache, cache.UserKey(id), u, s.ttl)
	s.log.InfoContext(ctx, "user synced from identity provider", logger.UserID(id))
	return nil
}

// WebhookResult reports what HandleWebhook did.
type WebhookResult struct {
	Event   string
	UserID  string
	Handled bool
}

type webhookEnvelope struct {
	Type string      `json:"type"`
	Data webhookUser `json:"data"`
}

type webhookUser struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

func (w webhookUser) user() User {
	u := User{
		ID:        w.ID,
		FirstName: w.FirstName,
		LastName:  w.LastName,
		CreatedAt: fromMillis(w.CreatedAt),
		UpdatedAt: fromMillis(w.UpdatedAt),
	}
	for _, e := range w.EmailAddresses {
		if u.Email == "" || e.ID == w.PrimaryEmailAddressID {
			u.Email = e.EmailAddress
		}
	}
	return u
}

// HandleWebhook verifies and applies an identity provider event. Errors
// wrap ErrMissingHeaders or ErrVerificationFailed for rejected deliveries,
// ErrInvalidPayload for undecodable ones, and ErrPersistenceFailure when
// the delivery should be retried.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, header http.Header) (WebhookResult, error) {
	if err := s.verifier.Verify(payload, header); err != nil {
		return WebhookResult{}, err
	}

	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return WebhookResult{}, errors.Join(ErrInvalidPayload, err)
	}
	res := WebhookResult{Event: env.Type, UserID: env.Data.ID}
	log := s.log.With(slog.String("event", env.Type), logger.UserID(env.Data.ID))

	switch env.Type {
	case "user.created", "user.updated":
		if env.Data.ID == "" {
			return res, errors.Join(ErrInvalidPayload, errors.New("user id is missing"))
		}
		if err := s.upsert(ctx, env.Data.user()); err != nil {
			return res, err
		}
		if env.Type == "user.created" {
			u := env.Data.user()
			if err := s.audit.Log(ctx, audit.ActionUserCreated,
				audit.WithUser(u.ID),
				audit.WithResource("user", u.ID),
				audit.WithDetail("email", u.Email),
			); err != nil {
				return res, errors.Join(ErrPersistenceFailure, err)
			}
		}
		res.Handled = true
	case "user.deleted":
		if env.Data.ID == "" {
			return res, errors.Join(ErrInvalidPayload, errors.New("user id is missing"))
		}
		if err := s.delete(ctx, env.Data.ID); err != nil {
			return res, err
		}
		if err := s.audit.Log(ctx, audit.ActionUserDeleted, audit.WithResource("user", env.Data.ID)); err != nil {
			return res, errors.Join(ErrPersistenceFailure, err)
		}
		res.Handled = true
	default:
		log.InfoContext(ctx, "ignoring unhandled identity event")
		return res, nil
	}

	log.InfoContext(ctx, "identity event applied")
	return res, nil
}

func (s *Service) upsert(ctx context.Context, u User) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.users.UpsertUser(opCtx, u); err != nil {
		return errors.Join(ErrPersistenceFailure, err)
	}
	cache.SetJSON(ctx, s.cache, cache.UserKey(u.ID), u, s.ttl)
	return nil
}

// delete removes the user with everything it owns and clears its cache keys.
func (s *Service) delete(ctx context.Context, id string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.users.DeleteUser(opCtx, id); err != nil {
		return errors.Join(ErrPersistenceFailure, err)
	}

	ok := s.cache.Delete(ctx, cache.UserKey(id))
	ok = cache.InvalidateSubscription(ctx, s.cache, id) && ok
	ok = s.cache.DeletePattern(ctx, cache.UsagePattern(id)) && ok
	if !ok {
		return errors.Join(ErrPersistenceFailure, errors.New("failed to invalidate cached user data"))
	}
	return nil
}
