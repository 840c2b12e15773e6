package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/identity"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/pkg/webhook"
)

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, webhook.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, identity.ErrMissingHeaders),
		errors.Is(err, subscription.ErrInvalidEvent),
		errors.Is(err, identity.ErrInvalidPayload),
		errors.Is(err, webhook.ErrInvalidPayload),
		errors.Is(err, subscription.ErrMissingPlanID):
		return http.StatusBadRequest
	case errors.Is(err, subscription.ErrSignatureInvalid),
		errors.Is(err, subscription.ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, subscription.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, subscription.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse writes {error, details}. Details carry the cause only for
// server-side failures, where the processor or operator needs it.
func errorResponse(err error, message string) handler.Response {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		return handler.JSONError(status, message, handler.WithDetails(err))
	}
	return handler.JSONError(status, message)
}
