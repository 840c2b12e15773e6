package identity

import (
	"errors"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"
)

// Headers required on every identity webhook delivery.
const (
	HeaderSvixID        = "svix-id"
	HeaderSvixTimestamp = "svix-timestamp"
	HeaderSvixSignature = "svix-signature"
)

// SvixVerifier checks Svix-signed deliveries, as sent by Clerk.
type SvixVerifier struct {
	wh *svix.Webhook
}

// NewSvixVerifier accepts the "whsec_" prefixed signing secret.
func NewSvixVerifier(secret string) (*SvixVerifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, errors.Join(ErrMissingSecret, err)
	}
	return &SvixVerifier{wh: wh}, nil
}

// Verify returns ErrMissingHeaders when any of the three svix headers is
// absent and ErrVerificationFailed when the signature does not match.
func (v *SvixVerifier) Verify(payload []byte, header http.Header) error {
	if err := requireHeaders(header); err != nil {
		return err
	}
	if err := v.wh.Verify(payload, header); err != nil {
		return errors.Join(ErrVerificationFailed, err)
	}
	return nil
}

func requireHeaders(header http.Header) error {
	for _, h := range []string{HeaderSvixID, HeaderSvixTimestamp, HeaderSvixSignature} {
		if header.Get(h) == "" {
			return ErrMissingHeaders
		}
	}
	return nil
}
