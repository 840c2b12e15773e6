package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/binder"
	"github.com/dmitrymomot/tiergate/handler"
)

type planRequest struct {
	PlanID string `json:"planId"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWrap(t *testing.T) {
	t.Parallel()

	echo := handler.HandlerFunc[handler.Context, planRequest](func(ctx handler.Context, req planRequest) handler.Response {
		return handler.JSON(map[string]string{"planId": req.PlanID}, handler.WithStatus(http.StatusCreated))
	})
	h := handler.Wrap(echo, handler.WithBinders[handler.Context, planRequest](binder.JSON(false)))

	t.Run("binds and renders", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"planId":"plan_1"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "plan_1", decode(t, rec)["planId"])
	})

	t.Run("bind error", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["error"], "invalid JSON")
	})

	t.Run("wrong media type", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`a=b`))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		h(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestWrapNilResponseAndDecorators(t *testing.T) {
	t.Parallel()

	var order []string
	trace := func(name string) handler.Decorator[handler.Context, struct{}] {
		return func(next handler.HandlerFunc[handler.Context, struct{}]) handler.HandlerFunc[handler.Context, struct{}] {
			return func(ctx handler.Context, req struct{}) handler.Response {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	nilHandler := handler.HandlerFunc[handler.Context, struct{}](func(handler.Context, struct{}) handler.Response { return nil })
	h := handler.Wrap(nilHandler, handler.WithDecorators(trace("outer"), trace("inner")))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCustomErrorHandler(t *testing.T) {
	t.Parallel()

	failing := handler.HandlerFunc[handler.Context, planRequest](func(handler.Context, planRequest) handler.Response {
		return handler.JSON("unreachable")
	})
	var got error
	h := handler.Wrap(failing,
		handler.WithBinders[handler.Context, planRequest](func(*http.Request, any) error { return handler.ErrForbidden }),
		handler.WithErrorHandler[handler.Context, planRequest](func(ctx handler.Context, err error) {
			got = err
			ctx.ResponseWriter().WriteHeader(http.StatusTeapot)
		}),
	)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, errors.Is(got, handler.ErrForbidden))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestResponses(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	rec := httptest.NewRecorder()
	require.NoError(t, handler.Redirect("/dashboard/pro").Render(rec, req))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/pro", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	require.NoError(t, handler.RedirectWithCode("/sign-in", http.StatusFound).Render(rec, req))
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = httptest.NewRecorder()
	require.NoError(t, handler.Empty().Render(rec, req))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	require.NoError(t, handler.JSONError(http.StatusInternalServerError, "Webhook processing failed",
		handler.WithDetails(errors.New("db down"))).Render(rec, req))
	body := decode(t, rec)
	assert.Equal(t, "Webhook processing failed", body["error"])
	assert.Equal(t, "db down", body["details"])
	assert.NotContains(t, body, "message")
}
