package billing

import (
	"net/http"

	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/pkg/subscription"
	"github.com/dmitrymomot/tiergate/pkg/webhook"
)

type webhookAck struct {
	Success bool   `json:"success"`
	Event   string `json:"event,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// billingWebhook answers non-2xx only when the processor should retry or
// the delivery is not authentic. Ignored and dropped events are
// acknowledged so they are not redelivered forever.
func (m *module) billingWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := m.log.With(logger.Provider(m.provider.Name()))

	body, err := webhook.ReadBody(r)
	if err != nil {
		log.WarnContext(ctx, "unreadable billing webhook", logger.Error(err))
		_ = errorResponse(err, "Invalid payload").Render(w, r)
		return
	}

	ev, err := m.provider.ParseWebhook(ctx, body, r.Header)
	if err != nil {
		log.WarnContext(ctx, "rejected billing webhook", logger.Error(err))
		msg := "Invalid payload"
		if statusFor(err) == http.StatusUnauthorized {
			msg = "Invalid signature"
		}
		_ = errorResponse(err, msg).Render(w, r)
		return
	}

	res, err := m.reconciler.Apply(ctx, ev)
	if err != nil {
		log.ErrorContext(ctx, "billing webhook processing failed",
			logger.EventKind(string(ev.Kind)), logger.EventID(ev.ID), logger.Error(err))
		_ = handler.JSONError(http.StatusInternalServerError, "Webhook processing failed",
			handler.WithDetails(err)).Render(w, r)
		return
	}

	_ = handler.JSON(webhookAck{Success: true, Event: ev.Name, Outcome: string(res.Outcome)}).Render(w, r)
}

func (m *module) identityWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := webhook.ReadBody(r)
	if err != nil {
		_ = errorResponse(err, "Invalid payload").Render(w, r)
		return
	}

	res, err := m.identity.HandleWebhook(ctx, body, r.Header)
	if err != nil {
		status := statusFor(err)
		msg := "Webhook processing failed"
		switch status {
		case http.StatusBadRequest:
			msg = "Invalid payload"
		case http.StatusUnauthorized:
			msg = "Invalid signature"
		}
		if status >= http.StatusInternalServerError {
			m.log.ErrorContext(ctx, "identity webhook processing failed", logger.Error(err))
		} else {
			m.log.WarnContext(ctx, "rejected identity webhook", logger.Error(err))
		}
		_ = errorResponse(err, msg).Render(w, r)
		return
	}

	outcome := string(subscription.OutcomeApplied)
	if !res.Handled {
		outcome = string(subscription.OutcomeIgnored)
	}
	_ = handler.JSON(webhookAck{Success: true, Event: res.Event, Outcome: outcome}).Render(w, r)
}
