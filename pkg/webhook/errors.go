package webhook

import "errors"

var (
	ErrInvalidConfiguration = errors.New("webhook: signing secret is not configured")
	ErrMissingSignature     = errors.New("webhook: signature header is missing")
	ErrSignatureMismatch    = errors.New("webhook: signature mismatch")
	ErrInvalidPayload       = errors.New("webhook: invalid payload")
	ErrPayloadTooLarge      = errors.New("webhook: payload too large")
)
