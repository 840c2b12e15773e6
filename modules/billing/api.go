package billing

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/tiergate/binder"
	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/identity"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/pkg/usage"
)

var jsonBody = binder.JSON(false)

func (m *module) currentSubscription(ctx handler.Context, _ struct{}) handler.Response {
	ent, err := m.resolver.GetSubscription(ctx, identity.UserIDFromContext(ctx))
	if err != nil {
		return errorResponse(err, "Failed to load subscription")
	}
	return handler.JSON(ent)
}

func (m *module) userSubscription(ctx handler.Context, _ struct{}) handler.Response {
	userID := chi.URLParam(ctx.Request(), "userID")
	if userID == "" {
		return handler.JSONError(http.StatusBadRequest, "User ID is required")
	}
	ent, err := m.resolver.GetSubscription(ctx, userID)
	if err != nil {
		return errorResponse(err, "Failed to load subscription")
	}
	return handler.JSON(ent)
}

type checkoutRequest struct {
	PlanID string `json:"planId"`
	Email  string `json:"email,omitempty"`
}

type checkoutResponse struct {
	SubscriptionID string `json:"subscriptionId"`
	Status         string `json:"status"`
	CheckoutURL    string `json:"checkoutUrl,omitempty"`
}

func (m *module) createCheckout(ctx handler.Context, req checkoutRequest) handler.Response {
	userID := identity.UserIDFromContext(ctx)
	if userID == "" {
		return handler.JSONError(http.StatusUnauthorized, "Unauthorized")
	}
	if req.PlanID == "" {
		return handler.JSONError(http.StatusBadRequest, "Plan ID is required")
	}

	co, err := m.checkout.CreateCheckout(ctx, subscription.CheckoutRequest{
		UserID: userID,
		PlanID: req.PlanID,
		Email:  req.Email,
	})
	if err != nil {
		m.log.ErrorContext(ctx, "checkout creation failed", logger.UserID(userID), logger.Error(err))
		return errorResponse(err, "Failed to create subscription")
	}
	return handler.JSON(checkoutResponse{SubscriptionID: co.ID, Status: co.Status, CheckoutURL: co.URL})
}

type upgradeRequired struct {
	Error        string            `json:"error"`
	Message      string            `json:"message"`
	CurrentPlan  subscription.Plan `json:"currentPlan"`
	RequiredPlan subscription.Plan `json:"requiredPlan"`
}

type analytics struct {
	Views       int `json:"views"`
	Clicks      int `json:"clicks"`
	Conversions int `json:"conversions"`
}

type proFeatureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Analytics analytics `json:"analytics"`
	} `json:"data"`
	APICalls int64 `json:"apiCalls,omitempty"`
}

// proFeature is the example feature-gated endpoint. Every granted call is
// counted in the api_calls usage metric, and a metric limit set on the
// user's row turns further calls away with 429. Usage store failures do
// not block the call.
func (m *module) proFeature(ctx handler.Context, _ struct{}) handler.Response {
	const feature = subscription.FeatureAdvancedAnalytics

	d := m.guard.RequireFeature(ctx, identity.UserIDFromContext(ctx), feature)
	switch {
	case errors.Is(d.Err, subscription.ErrAuthenticationRequired):
		return handler.JSONError(http.StatusUnauthorized, "Unauthorized")
	case errors.Is(d.Err, subscription.ErrAuthorizationDenied):
		required, _ := subscription.MinimumPlan(feature)
		return handler.JSON(upgradeRequired{
			Error:        "Upgrade required",
			Message:      "This feature requires the " + required.String() + " plan or higher",
			CurrentPlan:  d.Entitlement.Plan,
			RequiredPlan: required,
		}, handler.WithStatus(http.StatusForbidden))
	case d.Err != nil:
		return errorResponse(d.Err, "Internal server error")
	}

	allowed, err := m.usage.Allowed(ctx, d.UserID, usage.MetricAPICalls)
	switch {
	case err != nil:
		m.log.WarnContext(ctx, "usage check failed", logger.UserID(d.UserID), logger.Error(err))
	case !allowed:
		return handler.JSONError(http.StatusTooManyRequests, "Usage limit exceeded")
	}

	resp := proFeatureResponse{Success: true, Message: "Welcome to the Pro feature!"}
	resp.Data.Analytics = analytics{Views: 1234, Clicks: 567, Conversions: 89}

	metric, err := m.usage.Increment(ctx, d.UserID, usage.MetricAPICalls)
	if err != nil {
		m.log.WarnContext(ctx, "usage increment failed", logger.UserID(d.UserID), logger.Error(err))
	} else {
		resp.APICalls = metric.CurrentValue
	}
	return handler.JSON(resp)
}
