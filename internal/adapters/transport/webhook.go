package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

// WebhookPayload is the JSON body posted to webhook receivers
type WebhookPayload struct {
	Kind           monitoring.NotificationKind `json:"kind"`
	EscalationStep int                         `json:"escalation_step,omitempty"`
	Subject        string                      `json:"subject"`
	Text           string                      `json:"text"`
	Alert          *monitoring.Alert           `json:"alert"`
	SentAt         time.Time                   `json:"sent_at"`
}

// WebhookTransport posts alerts as JSON to the action's URL
type WebhookTransport struct {
	poster *Poster
}

var _ monitoring.Transport = (*WebhookTransport)(nil)

func NewWebhookTransport(poster *Poster) *WebhookTransport {
	return &WebhookTransport{poster: poster}
}

func (t *WebhookTransport) Send(ctx context.Context, recipient string, alert *monitoring.Alert, action monitoring.AlertAction) (string, error) {
	if action.Webhook == nil {
		return "", fmt.Errorf("webhook action has no config")
	}

	kind, step := monitoring.DeliveryFromContext(ctx)
	msg := Render(alert, kind)

	result, err := t.poster.PostJSON(ctx, recipient, action.Webhook.Headers, WebhookPayload{
		Kind:           kind,
		EscalationStep: step,
		Subject:        msg.Subject,
		Text:           msg.Text,
		Alert:          alert,
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		return describe(result), err
	}
	return describe(result), nil
}

func describe(result *PostResult) string {
	if result == nil || result.StatusCode == 0 {
		return ""
	}
	return fmt.Sprintf("status %d after %d attempt(s)", result.StatusCode, result.Attempts)
}
