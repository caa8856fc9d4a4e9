package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/alert-engine/internal/config"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testAlert() *monitoring.Alert {
	value, threshold := 97.5, 90.0
	return &monitoring.Alert{
		ID:           "fp-123",
		Title:        "High CPU on web",
		Message:      "cpu.usage=97.5 gt 90",
		Severity:     monitoring.SeverityHigh,
		Source:       monitoring.SourceThreshold,
		Component:    "web",
		Metric:       "cpu.usage",
		CurrentValue: &value,
		Threshold:    &threshold,
		Status:       monitoring.StatusOpen,
		CreatedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func fastWebhookConfig() config.WebhookConfig {
	return config.WebhookConfig{
		Enabled:          true,
		Timeout:          time.Second,
		MaxAttempts:      3,
		InitialBackoff:   time.Millisecond,
		BreakerFailures:  5,
		BreakerResetTime: time.Minute,
	}
}

// send routes through a NotificationRouter so the delivery kind reaches the transport
func send(t *testing.T, tr monitoring.Transport, actionType monitoring.ActionType, alert *monitoring.Alert, action monitoring.AlertAction, kind monitoring.NotificationKind, step int) *monitoring.AlertNotification {
	t.Helper()
	router := monitoring.NewNotificationRouter(nil, quietLogger())
	router.Register(actionType, tr)
	n := router.ExecuteAction(context.Background(), alert, action, kind, step)
	require.NotNil(t, n)
	return n
}

func TestRender(t *testing.T) {
	alert := testAlert()

	msg := Render(alert, monitoring.KindAlert)
	assert.Equal(t, "[HIGH] High CPU on web", msg.Subject)
	assert.Contains(t, msg.Text, "Component: web")
	assert.Contains(t, msg.Text, "Value: 97.5")
	assert.Contains(t, msg.Text, "Threshold: 90")
	assert.Contains(t, msg.Text, "Alert ID: fp-123")

	assert.Equal(t, "[ESCALATED][HIGH] High CPU on web", Render(alert, monitoring.KindEscalation).Subject)

	alert.Status = monitoring.StatusResolved
	alert.ResolvedBy = "alice"
	alert.Resolution = "scaled out"
	resolved := Render(alert, monitoring.KindResolution)
	assert.True(t, strings.HasPrefix(resolved.Subject, "[RESOLVED]"))
	assert.Contains(t, resolved.Text, "Resolved by: alice")
	assert.Contains(t, resolved.Text, "Resolution: scaled out")
}

func TestMessageShort(t *testing.T) {
	msg := Render(testAlert(), monitoring.KindAlert)

	short := msg.Short(160)
	assert.Equal(t, "[HIGH] High CPU on web - cpu.usage=97.5 gt 90", short)

	capped := msg.Short(10)
	assert.Len(t, []rune(capped), 10)
	assert.True(t, strings.HasSuffix(capped, "..."))
}

func TestWebhookTransport_RetriesServerErrors(t *testing.T) {
	var hits int32
	var payload WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := NewWebhookTransport(NewPoster("webhook", fastWebhookConfig(), quietLogger()))
	action := monitoring.AlertAction{
		Type:    monitoring.ActionWebhook,
		Webhook: &monitoring.WebhookAction{URL: server.URL, Headers: map[string]string{"X-Token": "secret"}},
	}

	n := send(t, tr, monitoring.ActionWebhook, testAlert(), action, monitoring.KindEscalation, 2)
	assert.Equal(t, monitoring.NotificationSent, n.Status)
	assert.Equal(t, "status 200 after 3 attempt(s)", n.Response)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	assert.Equal(t, monitoring.KindEscalation, payload.Kind)
	assert.Equal(t, 2, payload.EscalationStep)
	require.NotNil(t, payload.Alert)
	assert.Equal(t, "fp-123", payload.Alert.ID)
}

func TestWebhookTransport_ClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	tr := NewWebhookTransport(NewPoster("webhook", fastWebhookConfig(), quietLogger()))
	action := monitoring.AlertAction{Type: monitoring.ActionWebhook, Webhook: &monitoring.WebhookAction{URL: server.URL}}

	n := send(t, tr, monitoring.ActionWebhook, testAlert(), action, monitoring.KindAlert, 0)
	assert.Equal(t, monitoring.NotificationFailed, n.Status)
	assert.Contains(t, n.Error, "status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPoster_CircuitBreakerOpens(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastWebhookConfig()
	cfg.MaxAttempts = 1
	cfg.BreakerFailures = 2
	poster := NewPoster("webhook", cfg, quietLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := poster.PostJSON(ctx, server.URL, nil, map[string]string{"n": "1"})
		require.Error(t, err)
	}

	_, err := poster.PostJSON(ctx, server.URL, nil, map[string]string{"n": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Circuit breaker is open")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPoster_RejectsInvalidURL(t *testing.T) {
	poster := NewPoster("webhook", fastWebhookConfig(), quietLogger())
	_, err := poster.PostJSON(context.Background(), "not a url", nil, nil)
	assert.Error(t, err)
}

func TestPagerTransport(t *testing.T) {
	var (
		mu     sync.Mutex
		events []pagerEvent
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event pagerEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"success","message":"Event processed","dedup_key":"` + event.DedupKey + `"}`))
	}))
	defer server.Close()

	tr := NewPagerTransport(config.PagerDutyConfig{EventsURL: server.URL}, NewPoster("pagerduty", fastWebhookConfig(), quietLogger()))
	action := monitoring.AlertAction{Type: monitoring.ActionPager, Pager: &monitoring.PagerAction{RoutingKey: "R0UT1NG"}}
	alert := testAlert()

	n := send(t, tr, monitoring.ActionPager, alert, action, monitoring.KindAlert, 0)
	assert.Equal(t, monitoring.NotificationSent, n.Status)
	assert.Equal(t, "success: fp-123", n.Response)

	alert.Status = monitoring.StatusResolved
	send(t, tr, monitoring.ActionPager, alert, action, monitoring.KindResolution, 0)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)

	assert.Equal(t, "trigger", events[0].EventAction)
	assert.Equal(t, "R0UT1NG", events[0].RoutingKey)
	assert.Equal(t, "fp-123", events[0].DedupKey)
	require.NotNil(t, events[0].Payload)
	assert.Equal(t, "error", events[0].Payload.Severity)
	assert.Equal(t, "web", events[0].Payload.Source)
	assert.Equal(t, "97.5", events[0].Payload.CustomDetails["value"])

	assert.Equal(t, "resolve", events[1].EventAction)
	assert.Nil(t, events[1].Payload)
}

func TestSMSTransport(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []smsRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		var req smsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		if req.To == "+15550199" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := NewSMSTransport(config.SMSConfig{GatewayURL: server.URL, APIKey: "key-1", From: "+15550000"},
		NewPoster("sms", fastWebhookConfig(), quietLogger()))

	ok := monitoring.AlertAction{Type: monitoring.ActionSMS, SMS: &monitoring.SMSAction{To: []string{"+15550100"}}}
	n := send(t, tr, monitoring.ActionSMS, testAlert(), ok, monitoring.KindAlert, 0)
	assert.Equal(t, monitoring.NotificationSent, n.Status)
	assert.Equal(t, "sent to 1 of 1", n.Response)

	partial := monitoring.AlertAction{Type: monitoring.ActionSMS, SMS: &monitoring.SMSAction{To: []string{"+15550100", "+15550199"}}}
	n = send(t, tr, monitoring.ActionSMS, testAlert(), partial, monitoring.KindAlert, 0)
	assert.Equal(t, monitoring.NotificationFailed, n.Status)
	assert.Equal(t, "sent to 1 of 2", n.Response)
	assert.Contains(t, n.Error, "+15550199")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 3)
	assert.Equal(t, "+15550000", requests[0].From)
	assert.LessOrEqual(t, len([]rune(requests[0].Message)), smsMaxLength)
}

func TestChatTransport(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"channel":     r.FormValue("channel"),
			"text":        r.FormValue("text"),
			"attachments": r.FormValue("attachments"),
		}
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("channel") == "#missing" {
			_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer server.Close()

	tr := NewChatTransport(config.SlackConfig{Token: "xoxb-test", APIURL: server.URL}, quietLogger())
	action := monitoring.AlertAction{Type: monitoring.ActionChat, Chat: &monitoring.ChatAction{Channel: "#ops"}}

	n := send(t, tr, monitoring.ActionChat, testAlert(), action, monitoring.KindAlert, 0)
	assert.Equal(t, monitoring.NotificationSent, n.Status, n.Error)
	assert.Equal(t, "C123/1700000000.000100", n.Response)
	assert.Equal(t, "#ops", form["channel"])
	assert.Contains(t, form["text"], "[HIGH] High CPU on web")
	assert.Contains(t, form["attachments"], severityColor[monitoring.SeverityHigh])

	missing := monitoring.AlertAction{Type: monitoring.ActionChat, Chat: &monitoring.ChatAction{Channel: "#missing"}}
	n = send(t, tr, monitoring.ActionChat, testAlert(), missing, monitoring.KindAlert, 0)
	assert.Equal(t, monitoring.NotificationFailed, n.Status)
	assert.Contains(t, n.Error, "channel_not_found")
}

func TestEmailTransport(t *testing.T) {
	tr := NewEmailTransport(config.SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "alerts@example.com"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	tr.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.NotNil(t, a)
		assert.Equal(t, "alerts@example.com", from)
		return nil
	}

	action := monitoring.AlertAction{
		Type:  monitoring.ActionEmail,
		Email: &monitoring.EmailAction{To: []string{"ops@example.com", "sre@example.com"}, Subject: "prod"},
	}
	n := send(t, tr, monitoring.ActionEmail, testAlert(), action, monitoring.KindAlert, 0)

	assert.Equal(t, monitoring.NotificationSent, n.Status)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"ops@example.com", "sre@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: prod: [HIGH] High CPU on web\r\n")
	assert.Contains(t, gotMsg, "To: ops@example.com, sre@example.com\r\n")
	assert.Contains(t, gotMsg, "Component: web\r\n")
}

func TestRegisterEnabled(t *testing.T) {
	router := monitoring.NewNotificationRouter(nil, quietLogger())
	registered := RegisterEnabled(router, config.TransportsConfig{
		Slack:   config.SlackConfig{Enabled: true, Token: "x"},
		Webhook: config.WebhookConfig{Enabled: true},
	}, quietLogger())

	assert.ElementsMatch(t, []monitoring.ActionType{monitoring.ActionChat, monitoring.ActionWebhook}, registered)
}
