package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/modules/billing"
	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/cache"
	"github.com/dmitrymomot/tiergate/pkg/identity"
	"github.com/dmitrymomot/tiergate/pkg/ratelimit"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/pkg/usage"
	"github.com/dmitrymomot/tiergate/pkg/webhook"
	"github.com/dmitrymomot/tiergate/svc/storage/memory"
)

const (
	rzpSecret     = "rzp_webhook_secret"
	internalToken = "internal-token"
	litePlanID    = "plan_S9Dk9z7e6IH6EO"
)

type directory map[string]identity.User

func (d directory) FetchUser(_ context.Context, id string) (identity.User, error) {
	if id == "down" {
		return identity.User{}, errors.New("identity provider timeout")
	}
	u, ok := d[id]
	if !ok {
		return identity.User{}, identity.ErrUserNotFound
	}
	return u, nil
}

type verifierFunc func(payload []byte, header http.Header) error

func (f verifierFunc) Verify(payload []byte, header http.Header) error { return f(payload, header) }

type fakeRazorpay struct {
	got map[string]interface{}
}

func (f *fakeRazorpay) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.got = data
	return map[string]interface{}{"id": "sub_new", "status": "created", "short_url": "https://rzp.io/i/abc"}, nil
}

type fixture struct {
	router   http.Handler
	store    *memory.Store
	razorpay *fakeRazorpay
}

func newFixture(t *testing.T, mutate ...func(*billing.RouterOptions)) *fixture {
	t.Helper()

	store := memory.New()
	c := cache.NewMemory()
	auditLog := audit.NewLogger(store)

	verify := verifierFunc(func(_ []byte, h http.Header) error {
		switch h.Get("svix-signature") {
		case "":
			return identity.ErrMissingHeaders
		case "valid":
			return nil
		default:
			return identity.ErrVerificationFailed
		}
	})
	users := directory{
		"user_1": {ID: "user_1", Email: "one@example.com"},
		"user_2": {ID: "user_2", Email: "two@example.com"},
	}
	idSvc := identity.NewService(store, users, verify, c, auditLog)

	rzp := &fakeRazorpay{}
	provider, err := subscription.NewRazorpayProvider(subscription.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "rzp_test_secret",
		WebhookSecret: rzpSecret,
	}, subscription.WithRazorpayClient(rzp))
	require.NoError(t, err)

	resolver := subscription.NewResolver(store, c)
	opts := billing.RouterOptions{
		Config:     billing.Config{InternalAPIToken: internalToken},
		Provider:   provider,
		Checkout:   provider,
		Reconciler: subscription.NewReconciler(store, idSvc, c, auditLog),
		Resolver:   resolver,
		Guard:      subscription.NewGuard(resolver),
		Identity:   idSvc,
		Usage:      usage.NewService(store, c),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return &fixture{router: billing.Router(opts), store: store, razorpay: rzp}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) as(t *testing.T, userID, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(identity.DefaultUserHeader, userID)
	}
	return f.do(t, req)
}

func rzpEvent(event, userID string, createdAt int64) string {
	b, _ := json.Marshal(map[string]any{
		"entity":     "event",
		"event":      event,
		"created_at": createdAt,
		"payload": map[string]any{
			"subscription": map[string]any{"entity": map[string]any{
				"id":      "sub_" + userID,
				"plan_id": litePlanID,
				"status":  "active",
				"notes":   map[string]string{"clerk_user_id": userID},
			}},
		},
	})
	return string(b)
}

func (f *fixture) deliver(t *testing.T, payload string, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(payload))
	if sign {
		req.Header.Set(subscription.HeaderRazorpaySignature, webhook.Sign(rzpSecret, []byte(payload)))
	}
	return f.do(t, req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

type ack struct {
	Success bool   `json:"success"`
	Event   string `json:"event"`
	Outcome string `json:"outcome"`
}

func TestBillingWebhook(t *testing.T) {
	t.Parallel()

	t.Run("activation grants plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.deliver(t, rzpEvent("subscription.activated", "user_1", 1738404000), true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, ack{Success: true, Event: "subscription.activated", Outcome: "applied"}, decode[ack](t, rec))

		rec = f.as(t, "user_1", http.MethodGet, "/api/subscription", "")
		require.Equal(t, http.StatusOK, rec.Code)
		ent := decode[subscription.Entitlement](t, rec)
		assert.Equal(t, subscription.PlanLite, ent.Plan)
		assert.Equal(t, subscription.StatusActive, ent.Status)
		assert.Equal(t, "sub_user_1", ent.ExternalSubscriptionID)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.deliver(t, rzpEvent("subscription.activated", "user_1", 1738404000), false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid signature"}`, rec.Body.String())
		assert.Empty(t, f.store.Subscriptions("user_1"))
	})

	t.Run("signed garbage", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.deliver(t, `{not json`, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown user is acknowledged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.deliver(t, rzpEvent("subscription.activated", "ghost", 1738404000), true)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "dropped", decode[ack](t, rec).Outcome)
	})

	t.Run("unhandled event is acknowledged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.deliver(t, rzpEvent("subscription.pending", "user_1", 1738404000), true)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored", decode[ack](t, rec).Outcome)
	})

	t.Run("identity outage asks for redelivery", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.deliver(t, rzpEvent("subscription.activated", "down", 1738404000), true)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode[map[string]string](t, rec)
		assert.Equal(t, "Webhook processing failed", body["error"])
		assert.NotEmpty(t, body["details"])
	})
}

func TestIdentityWebhook(t *testing.T) {
	t.Parallel()

	post := func(f *fixture, sig, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/identity", strings.NewReader(body))
		if sig != "" {
			req.Header.Set("svix-signature", sig)
		}
		return f.do(t, req)
	}
	created := `{"type":"user.created","data":{"id":"user_9","first_name":"Nia",
		"primary_email_address_id":"e1","email_addresses":[{"id":"e1","email_address":"nia@example.com"}]}}`

	t.Run("missing headers", func(t *testing.T) {
		t.Parallel()
		rec := post(newFixture(t), "", created)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		rec := post(newFixture(t), "forged", created)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid signature"}`, rec.Body.String())
	})

	t.Run("user created", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := post(f, "valid", created)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, ack{Success: true, Event: "user.created", Outcome: "applied"}, decode[ack](t, rec))

		u, err := f.store.GetUser(context.Background(), "user_9")
		require.NoError(t, err)
		assert.Equal(t, "nia@example.com", u.Email)
		assert.Len(t, f.store.AuditEntries(audit.ActionUserCreated), 1)
	})

	t.Run("unhandled event", func(t *testing.T) {
		t.Parallel()
		rec := post(newFixture(t), "valid", `{"type":"session.created","data":{"id":"sess_1"}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored", decode[ack](t, rec).Outcome)
	})
}

func TestSubscriptionEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("anonymous is free", func(t *testing.T) {
		t.Parallel()
		rec := newFixture(t).as(t, "", http.MethodGet, "/api/subscription", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"plan":"free"}`, rec.Body.String())
	})

	t.Run("internal lookup requires token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.Equal(t, http.StatusOK, f.deliver(t, rzpEvent("subscription.activated", "user_2", 1738404000), true).Code)

		req := httptest.NewRequest(http.MethodGet, "/internal/users/user_2/subscription", nil)
		assert.Equal(t, http.StatusUnauthorized, f.do(t, req).Code)

		req = httptest.NewRequest(http.MethodGet, "/internal/users/user_2/subscription", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		assert.Equal(t, http.StatusUnauthorized, f.do(t, req).Code)

		req = httptest.NewRequest(http.MethodGet, "/internal/users/user_2/subscription", nil)
		req.Header.Set("Authorization", "Bearer "+internalToken)
		rec := f.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, subscription.PlanLite, decode[subscription.Entitlement](t, rec).Plan)
	})

	t.Run("internal lookup not mounted without token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(o *billing.RouterOptions) { o.Config.InternalAPIToken = "" })
		req := httptest.NewRequest(http.MethodGet, "/internal/users/user_2/subscription", nil)
		req.Header.Set("Authorization", "Bearer ")
		assert.Equal(t, http.StatusNotFound, f.do(t, req).Code)
	})
}

func TestCreateCheckout(t *testing.T) {
	t.Parallel()

	t.Run("requires user", func(t *testing.T) {
		t.Parallel()
		rec := newFixture(t).as(t, "", http.MethodPost, "/api/subscriptions", `{"planId":"plan_x"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	})

	t.Run("requires plan id", func(t *testing.T) {
		t.Parallel()
		rec := newFixture(t).as(t, "user_1", http.MethodPost, "/api/subscriptions", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Plan ID is required"}`, rec.Body.String())
	})

	t.Run("rejects non json", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/api/subscriptions", strings.NewReader("planId=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set(identity.DefaultUserHeader, "user_1")
		assert.Equal(t, http.StatusUnsupportedMediaType, newFixture(t).do(t, req).Code)
	})

	t.Run("creates subscription owned by caller", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.as(t, "user_1", http.MethodPost, "/api/subscriptions", `{"planId":"`+litePlanID+`"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode[map[string]string](t, rec)
		assert.Equal(t, "sub_new", body["subscriptionId"])
		assert.Equal(t, "created", body["status"])
		assert.Equal(t, litePlanID, f.razorpay.got["plan_id"])
		assert.Equal(t, map[string]interface{}{"clerk_user_id": "user_1"}, f.razorpay.got["notes"])
	})

	t.Run("not mounted without checkout provider", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(o *billing.RouterOptions) { o.Checkout = nil })
		rec := f.as(t, "user_1", http.MethodPost, "/api/subscriptions", `{"planId":"x"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestProFeature(t *testing.T) {
	t.Parallel()

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()
		rec := newFixture(t).as(t, "", http.MethodGet, "/api/pro-feature", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("free plan gets upgrade hint", func(t *testing.T) {
		t.Parallel()
		rec := newFixture(t).as(t, "user_1", http.MethodGet, "/api/pro-feature", "")
		require.Equal(t, http.StatusForbidden, rec.Code)
		body := decode[map[string]string](t, rec)
		assert.Equal(t, "Upgrade required", body["error"])
		assert.Equal(t, "free", body["currentPlan"])
		assert.Equal(t, "lite", body["requiredPlan"])
		assert.NotEmpty(t, body["message"])
	})

	t.Run("lite plan is granted and counted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.Equal(t, http.StatusOK, f.deliver(t, rzpEvent("subscription.activated", "user_1", 1738404000), true).Code)

		type granted struct {
			Success  bool  `json:"success"`
			APICalls int64 `json:"apiCalls"`
		}
		for want := int64(1); want <= 2; want++ {
			rec := f.as(t, "user_1", http.MethodGet, "/api/pro-feature", "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, granted{Success: true, APICalls: want}, decode[granted](t, rec))
		}

		rec := f.as(t, "user_1", http.MethodGet, "/dashboard/lite", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(2), decode[struct {
			APICalls int64 `json:"apiCalls"`
		}](t, rec).APICalls)
	})

	t.Run("usage limit turns calls away", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.Equal(t, http.StatusOK, f.deliver(t, rzpEvent("subscription.activated", "user_1", 1738404000), true).Code)
		f.store.SetMetricLimit("user_1", usage.MetricAPICalls, 1)

		require.Equal(t, http.StatusOK, f.as(t, "user_1", http.MethodGet, "/api/pro-feature", "").Code)
		rec := f.as(t, "user_1", http.MethodGet, "/api/pro-feature", "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.JSONEq(t, `{"error":"Usage limit exceeded"}`, rec.Body.String())

		f.store.SetMetricLimit("user_1", usage.MetricAPICalls, -1)
		assert.Equal(t, http.StatusOK, f.as(t, "user_1", http.MethodGet, "/api/pro-feature", "").Code)
	})
}

func TestDashboard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.deliver(t, rzpEvent("subscription.activated", "user_2", 1738404000), true).Code)

	tests := []struct {
		name     string
		user     string
		target   string
		status   int
		location string
	}{
		{"anonymous", "", "/dashboard", http.StatusSeeOther, "/sign-in"},
		{"free user", "user_1", "/dashboard", http.StatusSeeOther, "/dashboard/free"},
		{"lite user", "user_2", "/dashboard", http.StatusSeeOther, "/dashboard/lite"},
		{"anonymous plan page", "", "/dashboard/lite", http.StatusSeeOther, "/sign-in"},
		{"below plan", "user_1", "/dashboard/pro", http.StatusSeeOther, "/pricing"},
		{"lite on pro", "user_2", "/dashboard/pro", http.StatusSeeOther, "/pricing"},
		{"lite on lite", "user_2", "/dashboard/lite", http.StatusOK, ""},
		{"lite on free", "user_2", "/dashboard/free", http.StatusOK, ""},
		{"unknown plan", "user_2", "/dashboard/enterprise", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := f.as(t, tt.user, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}

	t.Run("plan page lists features", func(t *testing.T) {
		t.Parallel()
		rec := f.as(t, "user_2", http.MethodGet, "/dashboard/lite", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Dashboard string   `json:"dashboard"`
			Plan      string   `json:"plan"`
			Features  []string `json:"features"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "lite", body.Plan)
		assert.Contains(t, body.Features, "advanced_analytics")
		assert.NotContains(t, body.Features, "api_access")
	})
}

func TestRateLimitedRoutes(t *testing.T) {
	t.Parallel()
	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(0))
	t.Cleanup(store.Close)
	limiter, err := ratelimit.NewBucket(store, ratelimit.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	f := newFixture(t, func(o *billing.RouterOptions) { o.RateLimiter = limiter })

	assert.Equal(t, http.StatusOK, f.as(t, "user_1", http.MethodGet, "/api/subscription", "").Code)
	rec := f.as(t, "user_1", http.MethodGet, "/api/subscription", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// API buckets are per user, so another caller on the same address passes.
	assert.Equal(t, http.StatusOK, f.as(t, "user_2", http.MethodGet, "/api/subscription", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.as(t, "user_2", http.MethodGet, "/api/subscription", "").Code)

	// Webhooks draw from their own bucket.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader("{}"))
	assert.NotEqual(t, http.StatusTooManyRequests, f.do(t, req).Code)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader("{}"))
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, req).Code)
}

func TestRouterPanicsWithoutDependencies(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { billing.Router(billing.RouterOptions{}) })
}
