package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/binder"
)

type checkoutRequest struct {
	PlanID string `json:"planId"`
}

func TestJSON(t *testing.T) {
	t.Parallel()

	newReq := func(body, ct string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if ct != "" {
			r.Header.Set("Content-Type", ct)
		}
		return r
	}

	tests := []struct {
		name    string
		body    string
		ct      string
		wantErr error
		want    string
	}{
		{"valid", `{"planId":"plan_1"}`, "application/json", nil, "plan_1"},
		{"charset", `{"planId":"plan_2"}`, "application/json; charset=utf-8", nil, "plan_2"},
		{"missing content type", `{"planId":"x"}`, "", binder.ErrMissingContentType, ""},
		{"wrong content type", `planId=x`, "application/x-www-form-urlencoded", binder.ErrUnsupportedMediaType, ""},
		{"unknown field", `{"plan":"x"}`, "application/json", binder.ErrInvalidJSON, ""},
		{"malformed", `{"planId":`, "application/json", binder.ErrInvalidJSON, ""},
		{"trailing data", `{"planId":"x"} {}`, "application/json", binder.ErrInvalidJSON, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got checkoutRequest
			err := binder.JSON(false)(newReq(tt.body, tt.ct), &got)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.PlanID)
		})
	}

	t.Run("optional skips empty body", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		var got checkoutRequest
		assert.ErrorIs(t, binder.JSON(true)(r, &got), binder.ErrBinderNotApplicable)
		assert.ErrorIs(t, binder.JSON(false)(r, &got), binder.ErrMissingContentType)
	})
}
