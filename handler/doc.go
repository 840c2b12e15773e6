// Package handler adapts typed request handlers to net/http.
//
// A HandlerFunc receives a Context and a request value decoded by the
// configured binders, and returns a Response that renders itself. Handlers
// never touch the ResponseWriter for the common cases, which keeps them
// easy to test.
//
// # Usage
//
// Declare the request type and the handler:
//
//	type checkoutRequest struct {
//		PlanID string `json:"planId"`
//	}
//
//	func createCheckout(ctx handler.Context, req checkoutRequest) handler.Response {
//		if req.PlanID == "" {
//			return handler.JSONError(http.StatusBadRequest, "Plan ID is required")
//		}
//		return handler.JSON(map[string]string{"planId": req.PlanID})
//	}
//
// Mount it with the binders that fill the request value:
//
//	r.Post("/api/subscriptions", handler.Wrap(createCheckout,
//		handler.WithBinders[handler.Context, checkoutRequest](binder.JSON(false)),
//	))
//
// Handlers without a body use struct{} as the request type. Context embeds
// context.Context, so it is passed straight to services:
//
//	func current(ctx handler.Context, _ struct{}) handler.Response {
//		ent, err := resolver.GetSubscription(ctx, identity.UserIDFromContext(ctx))
//		...
//	}
//
// # Responses
//
//   - JSON encodes a value, with WithStatus for codes other than 200.
//   - JSONError writes {"error": "..."}; WithDetails adds the cause.
//   - Redirect answers 303 See Other, RedirectWithCode any 3xx.
//   - Empty answers 204, EmptyWithStatus any bodyless status.
//
// # Options
//
// WithBinders, WithErrorHandler, WithDecorators and WithContextFactory
// configure Wrap. Decorators wrap the handler in the order given. A custom
// Context type needs WithContextFactory; Wrap panics at request time
// without it.
//
// # Errors
//
// Binding failures, nil responses (ErrNilResponse) and render errors go
// to the ErrorHandler. DefaultErrorHandler writes an HTTPError with its
// own status and key, binder media type errors as 415, invalid JSON as 400
// and everything else as 500. The package defines HTTPError values for
// common statuses (ErrBadRequest, ErrUnauthorized, ErrNotFound, ...) and
// NewHTTPError for custom keys. A binder returning
// binder.ErrBinderNotApplicable is skipped.
package handler
