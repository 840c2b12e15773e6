package subscription

import "context"

const (
	DefaultSignInPath  = "/sign-in"
	DefaultPricingPath = "/pricing"
)

// Decision is the outcome of a guard: either the user is allowed, or the
// caller must transfer control to RedirectTo.
type Decision struct {
	UserID      string
	Entitlement Entitlement
	RedirectTo  string
	// Err is ErrAuthenticationRequired, ErrAuthorizationDenied or, under
	// FailClosed, ErrPersistenceFailure.
	Err error
}

// Allowed reports whether the guard passed.
func (d Decision) Allowed() bool {
	return d.Err == nil
}

// Guard short-circuits protected operations.
type Guard struct {
	resolver    *Resolver
	signInPath  string
	pricingPath string
}

// GuardOption configures Guard.
type GuardOption func(*Guard)

// WithRedirects overrides the sign-in and pricing destinations.
func WithRedirects(signIn, pricing string) GuardOption {
	return func(g *Guard) {
		if signIn != "" {
			g.signInPath = signIn
		}
		if pricing != "" {
			g.pricingPath = pricing
		}
	}
}

// NewGuard panics if resolver is nil.
func NewGuard(resolver *Resolver, opts ...GuardOption) *Guard {
	if resolver == nil {
		panic("subscription: resolver is required")
	}
	g := &Guard{
		resolver:    resolver,
		signInPath:  DefaultSignInPath,
		pricingPath: DefaultPricingPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireAuth passes when userID is set.
func (g *Guard) RequireAuth(_ context.Context, userID string) Decision {
	if userID == "" {
		return Decision{RedirectTo: g.signInPath, Err: ErrAuthenticationRequired}
	}
	return Decision{UserID: userID}
}

// RequirePlan passes when the user is signed in and holds at least plan.
func (g *Guard) RequirePlan(ctx context.Context, userID string, plan Plan) Decision {
	return g.require(ctx, userID, func(e Entitlement) bool { return e.Satisfies(plan) })
}

// RequireFeature passes when the user is signed in and their plan grants f.
func (g *Guard) RequireFeature(ctx context.Context, userID string, f Feature) Decision {
	return g.require(ctx, userID, func(e Entitlement) bool { return e.HasFeature(f) })
}

func (g *Guard) require(ctx context.Context, userID string, ok func(Entitlement) bool) Decision {
	d := g.RequireAuth(ctx, userID)
	if !d.Allowed() {
		return d
	}

	ent, err := g.resolver.GetSubscription(ctx, userID)
	if err != nil {
		return Decision{UserID: userID, RedirectTo: g.pricingPath, Err: err}
	}
	d.Entitlement = ent
	if !ok(ent) {
		d.RedirectTo = g.pricingPath
		d.Err = ErrAuthorizationDenied
	}
	return d
}
