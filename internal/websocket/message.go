package websocket

import (
	"encoding/json"
	"time"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

// Message types for WebSocket communication. Alert and incident events use
// their event type (alert.fired, incident.opened, ...) as the message type.
const (
	MessageTypeConnection = "connection"
	MessageTypeHeartbeat  = "heartbeat"
	MessageTypeSubscribe  = "subscribe"
	MessageTypeSubscribed = "subscribed"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
	MessageTypeError      = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	TenantID  string                 `json:"tenant_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes, stamping it if unset
func (m Message) ToJSON() []byte {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	data, _ := json.Marshal(m)
	return data
}

// FromEvent converts a lifecycle event into the message pushed to clients
func FromEvent(event monitoring.Event) Message {
	msg := Message{
		Type:      event.Type,
		Data:      map[string]interface{}{},
		Timestamp: event.Timestamp.UTC(),
	}

	if event.Alert != nil {
		msg.Data["alert"] = event.Alert
		msg.TenantID = event.Alert.TenantID
	}
	if event.Incident != nil {
		msg.Data["incident"] = event.Incident
		if msg.TenantID == "" {
			msg.TenantID = event.Incident.TenantID
		}
	}
	if event.Type == monitoring.EventAlertEscalated {
		msg.Data["step"] = event.Step
	}
	return msg
}

// subscribeRequest is the body of a client "subscribe" message
type subscribeRequest struct {
	Events   []string `json:"events"`
	TenantID string   `json:"tenant_id"`
}

func errorMessage(reason string) Message {
	return Message{
		Type: MessageTypeError,
		Data: map[string]interface{}{"error": reason},
	}
}
