// Package binder decodes HTTP request bodies into typed values for
// package handler.
//
// JSON is strict: the content type must be application/json, unknown
// fields are rejected, the body is capped at DefaultMaxBodySize and must
// hold a single value.
//
//	handler.Wrap(createCheckout,
//		handler.WithBinders[handler.Context, checkoutRequest](binder.JSON(false)),
//	)
//
// With optional set, a request without a body is passed over with
// ErrBinderNotApplicable and the handler sees the zero value.
//
// Errors wrap ErrMissingContentType, ErrUnsupportedMediaType or
// ErrInvalidJSON, which handler.DefaultErrorHandler maps to 415 and 400.
package binder
