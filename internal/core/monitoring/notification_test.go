package monitoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRouter_ExecuteAction(t *testing.T) {
	store := NewMemoryStore()
	router := NewNotificationRouter(store, quietLogger())
	chat := &recordingTransport{}
	router.Register(ActionChat, chat)

	alert := &Alert{ID: "a1", Severity: SeverityHigh, Status: StatusOpen}

	t.Run("sent", func(t *testing.T) {
		n := router.ExecuteAction(context.Background(), alert, chatAction("#ops"), KindAlert, 0)
		require.NotNil(t, n)
		assert.Equal(t, NotificationSent, n.Status)
		assert.Equal(t, "ok", n.Response)
		assert.Equal(t, "#ops", n.Recipient)
		assert.Equal(t, 1, n.Attempts)
	})

	t.Run("severity filtered", func(t *testing.T) {
		n := router.ExecuteAction(context.Background(), alert, chatAction("#ops", SeverityCritical), KindAlert, 0)
		assert.Nil(t, n)
	})

	t.Run("no transport", func(t *testing.T) {
		action := AlertAction{Type: ActionSMS, SMS: &SMSAction{To: []string{"+15550100"}}}
		n := router.ExecuteAction(context.Background(), alert, action, KindAlert, 0)
		require.NotNil(t, n)
		assert.Equal(t, NotificationFailed, n.Status)
		assert.Contains(t, n.Error, "no transport")
	})

	t.Run("transport error", func(t *testing.T) {
		chat.err = errTransportDown
		defer func() { chat.err = nil }()

		n := router.ExecuteAction(context.Background(), alert, chatAction("#ops"), KindEscalation, 2)
		require.NotNil(t, n)
		assert.Equal(t, NotificationFailed, n.Status)
		assert.Equal(t, 2, n.EscalationStep)
	})

	assert.Len(t, store.Notifications("a1"), 3)
}

func TestNotificationRouter_ExecuteActions(t *testing.T) {
	router := NewNotificationRouter(nil, quietLogger())
	chat := &recordingTransport{}
	router.Register(ActionChat, chat)

	alert := &Alert{ID: "a1", Severity: SeverityLow}
	notes := router.ExecuteActions(context.Background(), alert, []AlertAction{
		chatAction("#all"),
		chatAction("#critical", SeverityCritical),
		chatAction("#low", SeverityLow),
	}, KindAlert, 0)

	assert.Len(t, notes, 2)
	assert.Equal(t, []string{"#all", "#low"}, chat.recipients())
}

func TestNotificationRouter_PassesDeliveryKind(t *testing.T) {
	router := NewNotificationRouter(nil, quietLogger())
	chat := &recordingTransport{}
	router.Register(ActionChat, chat)

	alert := &Alert{ID: "a1", Severity: SeverityHigh}
	router.ExecuteAction(context.Background(), alert, chatAction("#ops"), KindEscalation, 3)
	router.ExecuteAction(context.Background(), alert, chatAction("#ops"), KindResolution, 0)

	assert.Equal(t, []NotificationKind{KindEscalation, KindResolution}, chat.kinds())
	assert.Equal(t, 3, chat.sent[0].step)

	kind, step := DeliveryFromContext(context.Background())
	assert.Equal(t, KindAlert, kind)
	assert.Zero(t, step)
}

func TestNotificationRouter_RedactsSecretRecipients(t *testing.T) {
	store := NewMemoryStore()
	router := NewNotificationRouter(store, quietLogger())
	pager := &recordingTransport{}
	webhook := &recordingTransport{}
	router.Register(ActionPager, pager)
	router.Register(ActionWebhook, webhook)

	alert := &Alert{ID: "a1", Severity: SeverityCritical, Status: StatusOpen}
	ctx := context.Background()

	n := router.ExecuteAction(ctx, alert, AlertAction{Type: ActionPager, Pager: &PagerAction{RoutingKey: "R0UTINGKEY1234abcd"}}, KindAlert, 0)
	require.NotNil(t, n)
	assert.Equal(t, "pagerduty:...abcd", n.Recipient)
	assert.Equal(t, []string{"R0UTINGKEY1234abcd"}, pager.recipients(), "transport still gets the real key")

	hook := AlertAction{Type: ActionWebhook, Webhook: &WebhookAction{URL: "https://user:pw@hooks.example.com/services/T1?token=s3cret"}}
	n = router.ExecuteAction(ctx, alert, hook, KindAlert, 0)
	require.NotNil(t, n)
	assert.Equal(t, "https://...@hooks.example.com/services/T1?...", n.Recipient)
	assert.Equal(t, []string{hook.Webhook.URL}, webhook.recipients())

	for _, stored := range store.Notifications("a1") {
		assert.NotContains(t, stored.Recipient, "R0UTINGKEY")
		assert.NotContains(t, stored.Recipient, "s3cret")
	}
}

func TestAlertAction_RedactedRecipient(t *testing.T) {
	assert.Equal(t, "#ops", chatAction("#ops").RedactedRecipient())
	assert.Equal(t, "pagerduty:***", AlertAction{Type: ActionPager, Pager: &PagerAction{RoutingKey: "abc"}}.RedactedRecipient())
	assert.Equal(t, "https://hooks.example.com/x", AlertAction{Type: ActionWebhook, Webhook: &WebhookAction{URL: "https://hooks.example.com/x"}}.RedactedRecipient())
	assert.Equal(t, "[invalid url]", AlertAction{Type: ActionWebhook, Webhook: &WebhookAction{URL: "not a url"}}.RedactedRecipient())
}
