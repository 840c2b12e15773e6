package billing

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/identity"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/pkg/usage"
)

type dashboardResponse struct {
	Dashboard subscription.Plan      `json:"dashboard"`
	Plan      subscription.Plan      `json:"plan"`
	Features  []subscription.Feature `json:"features"`
	APICalls  int64                  `json:"apiCalls,omitempty"`
}

// dashboard sends signed-in users to the dashboard of their plan.
func (m *module) dashboard(ctx handler.Context, _ struct{}) handler.Response {
	d := m.guard.RequirePlan(ctx, identity.UserIDFromContext(ctx), subscription.PlanFree)
	if !d.Allowed() {
		return denied(d)
	}
	return handler.Redirect("/dashboard/" + d.Entitlement.Plan.String())
}

func (m *module) planDashboard(ctx handler.Context, _ struct{}) handler.Response {
	plan, err := subscription.ParsePlan(chi.URLParam(ctx.Request(), "plan"))
	if err != nil {
		return handler.JSONError(http.StatusNotFound, "Dashboard not found")
	}

	d := m.guard.RequirePlan(ctx, identity.UserIDFromContext(ctx), plan)
	if !d.Allowed() {
		return denied(d)
	}
	resp := dashboardResponse{
		Dashboard: plan,
		Plan:      d.Entitlement.Plan,
		Features:  subscription.Features(d.Entitlement.Plan),
	}
	// The mirrored counter is enough for display.
	if n, ok := m.usage.Cached(ctx, d.UserID, usage.MetricAPICalls); ok {
		resp.APICalls = n
	}
	return handler.JSON(resp)
}

// denied redirects for authentication and plan failures. Lookup failures
// under the fail-closed policy surface as errors instead of a pricing
// redirect.
func denied(d subscription.Decision) handler.Response {
	if errors.Is(d.Err, subscription.ErrAuthenticationRequired) || errors.Is(d.Err, subscription.ErrAuthorizationDenied) {
		return handler.Redirect(d.RedirectTo)
	}
	return errorResponse(d.Err, "Internal server error")
}
