package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxBodySize caps inbound webhook payloads.
const MaxBodySize int64 = 64 << 10

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a hex HMAC-SHA256 signature computed over the raw payload
// with a constant-time comparison. Hex case is ignored.
func Verify(secret string, payload []byte, signature string) error {
	if secret == "" {
		return ErrInvalidConfiguration
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrSignatureMismatch)
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	if !hmac.Equal(h.Sum(nil), got) {
		return ErrSignatureMismatch
	}
	return nil
}

// ReadBody reads at most MaxBodySize bytes of the request body. Larger
// payloads are rejected rather than truncated, since a truncated body would
// never verify anyway.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, ErrInvalidPayload
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	if int64(len(body)) > MaxBodySize {
		return nil, ErrPayloadTooLarge
	}
	return body, nil
}
