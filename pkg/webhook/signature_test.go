package webhook_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/pkg/webhook"
)

func TestSignVerify(t *testing.T) {
	t.Parallel()
	payload := []byte(`{"event":"subscription.activated"}`)
	sig := webhook.Sign("secret", payload)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
		wantErr   error
	}{
		{"valid", "secret", payload, sig, nil},
		{"uppercase hex", "secret", payload, strings.ToUpper(sig), nil},
		{"missing", "secret", payload, "", webhook.ErrMissingSignature},
		{"wrong secret", "other", payload, sig, webhook.ErrSignatureMismatch},
		{"tampered body", "secret", append([]byte{' '}, payload...), sig, webhook.ErrSignatureMismatch},
		{"not hex", "secret", payload, "zz", webhook.ErrSignatureMismatch},
		{"truncated", "secret", payload, sig[:10], webhook.ErrSignatureMismatch},
		{"no secret", "", payload, sig, webhook.ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := webhook.Verify(tt.secret, tt.payload, tt.signature)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// Known vector: HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog").
func TestSignKnownVector(t *testing.T) {
	t.Parallel()
	got := webhook.Sign("key", []byte("The quick brown fox jumps over the lazy dog"))
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", got)
}

func TestReadBody(t *testing.T) {
	t.Parallel()

	t.Run("reads body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello"))
		body, err := webhook.ReadBody(req)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(body))
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		t.Parallel()
		big := bytes.Repeat([]byte("a"), int(webhook.MaxBodySize)+1)
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(big))
		_, err := webhook.ReadBody(req)
		assert.ErrorIs(t, err, webhook.ErrPayloadTooLarge)
	})

	t.Run("accepts body at limit", func(t *testing.T) {
		t.Parallel()
		exact := bytes.Repeat([]byte("a"), int(webhook.MaxBodySize))
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(exact))
		body, err := webhook.ReadBody(req)
		require.NoError(t, err)
		assert.Len(t, body, int(webhook.MaxBodySize))
	})
}
