package websocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
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

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub(config.WebSocketConfig{
		PingInterval: time.Minute,
		WriteTimeout: time.Second,
		BufferSize:   16,
	}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleWebSocket(hub, w, r)
	}))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()

	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	welcome := readMessage(t, conn)
	require.Equal(t, MessageTypeConnection, welcome.Type)
	return conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func testAlert(tenant string) *monitoring.Alert {
	return &monitoring.Alert{
		ID:        "abc123",
		Title:     "CPU high",
		Severity:  monitoring.SeverityHigh,
		Component: "api",
		TenantID:  tenant,
		Status:    monitoring.StatusOpen,
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHub_PublishReachesClient(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	hub.Publish(monitoring.Event{
		Type:      monitoring.EventAlertFired,
		Timestamp: time.Now(),
		Alert:     testAlert("acme"),
	})

	msg := readMessage(t, conn)
	assert.Equal(t, monitoring.EventAlertFired, msg.Type)
	assert.Equal(t, "acme", msg.TenantID)

	alert, ok := msg.Data["alert"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abc123", alert["id"])

	assert.Equal(t, 1, hub.GetClientCount())
	stats := hub.GetStats()
	assert.EqualValues(t, 1, stats.TotalConnections)
}

func TestHub_SubscriptionFilters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "subscribe",
		"data": map[string]interface{}{
			"events":    []string{"incident."},
			"tenant_id": "acme",
		},
	}))
	ack := readMessage(t, conn)
	require.Equal(t, MessageTypeSubscribed, ack.Type)
	assert.Equal(t, "acme", ack.Data["tenant_id"])

	hub.Publish(monitoring.Event{Type: monitoring.EventAlertFired, Timestamp: time.Now(), Alert: testAlert("acme")})
	hub.Publish(monitoring.Event{
		Type:      monitoring.EventIncidentOpened,
		Timestamp: time.Now(),
		Incident:  &monitoring.IncidentCorrelation{ID: "inc-other", TenantID: "globex"},
	})
	hub.Publish(monitoring.Event{
		Type:      monitoring.EventIncidentOpened,
		Timestamp: time.Now(),
		Incident:  &monitoring.IncidentCorrelation{ID: "inc-1", TenantID: "acme"},
	})

	msg := readMessage(t, conn)
	assert.Equal(t, monitoring.EventIncidentOpened, msg.Type)
	incident, ok := msg.Data["incident"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "inc-1", incident["id"])
}

func TestHub_QuerySubscription(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"?events=alert.resolved")

	hub.Publish(monitoring.Event{Type: monitoring.EventAlertFired, Timestamp: time.Now(), Alert: testAlert("")})
	hub.Publish(monitoring.Event{Type: monitoring.EventAlertResolved, Timestamp: time.Now(), Alert: testAlert("")})

	msg := readMessage(t, conn)
	assert.Equal(t, monitoring.EventAlertResolved, msg.Type)
}

func TestHub_PingAndUnknownMessages(t *testing.T) {
	_, url := startHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, MessageTypePong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "unknown message type", msg.Data["error"])
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	// Run is not started so the queue never drains
	hub := NewHub(config.WebSocketConfig{BufferSize: 1}, quietLogger())

	hub.Publish(monitoring.Event{Type: monitoring.EventAlertFired, Alert: testAlert("")})
	hub.Publish(monitoring.Event{Type: monitoring.EventAlertFired, Alert: testAlert("")})

	assert.EqualValues(t, 1, hub.GetStats().MessagesDropped)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Equal(t, 1, hub.GetClientCount())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFromEvent(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := FromEvent(monitoring.Event{
		Type:      monitoring.EventAlertEscalated,
		Timestamp: ts,
		Alert:     testAlert("acme"),
		Step:      2,
	})

	assert.Equal(t, monitoring.EventAlertEscalated, msg.Type)
	assert.Equal(t, "acme", msg.TenantID)
	assert.Equal(t, 2, msg.Data["step"])
	assert.Equal(t, ts, msg.Timestamp)

	msg = FromEvent(monitoring.Event{Type: monitoring.EventIncidentResolved, Incident: &monitoring.IncidentCorrelation{TenantID: "t1"}})
	assert.Equal(t, "t1", msg.TenantID)
	assert.NotContains(t, msg.Data, "step")
}
