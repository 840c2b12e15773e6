// Package webhook verifies inbound webhook deliveries signed with a shared
// secret and reads request bodies with a size cap.
//
// The signature scheme is the lowercase hex HMAC-SHA256 of the raw request
// body, as sent by Razorpay in X-Razorpay-Signature. Verification must run
// over the exact bytes received, before any JSON decoding.
//
// # Usage
//
// Read the body once, then verify it:
//
//	body, err := webhook.ReadBody(r)
//	if err != nil {
//		// 413 for ErrPayloadTooLarge, 400 otherwise
//	}
//	if err := webhook.Verify(secret, body, r.Header.Get("X-Razorpay-Signature")); err != nil {
//		// 401
//	}
//
// Verify trims the header value, ignores hex case and compares in
// constant time. ReadBody accepts at most MaxBodySize (64 KiB) and rejects
// larger payloads instead of truncating them.
//
// Tests sign fixtures with Sign:
//
//	req.Header.Set("X-Razorpay-Signature", webhook.Sign(secret, payload))
//
// # Errors
//
//   - ErrInvalidConfiguration: the secret is empty.
//   - ErrMissingSignature: the header is absent or blank.
//   - ErrSignatureMismatch: the signature is not hex or does not match.
//   - ErrInvalidPayload: the body is missing or could not be read.
//   - ErrPayloadTooLarge: the body exceeds MaxBodySize.
package webhook
