package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/frostdev-ops/alert-engine/internal/config"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

// PagerDuty Events API v2 body
type pagerEvent struct {
	RoutingKey  string        `json:"routing_key"`
	EventAction string        `json:"event_action"`
	DedupKey    string        `json:"dedup_key"`
	Payload     *pagerPayload `json:"payload,omitempty"`
}

type pagerPayload struct {
	Summary       string            `json:"summary"`
	Source        string            `json:"source"`
	Severity      string            `json:"severity"`
	Timestamp     string            `json:"timestamp,omitempty"`
	Component     string            `json:"component,omitempty"`
	Class         string            `json:"class,omitempty"`
	CustomDetails map[string]string `json:"custom_details,omitempty"`
}

type pagerResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	DedupKey string `json:"dedup_key"`
}

var pagerSeverity = map[monitoring.AlertSeverity]string{
	monitoring.SeverityCritical: "critical",
	monitoring.SeverityHigh:     "error",
	monitoring.SeverityMedium:   "warning",
	monitoring.SeverityLow:      "info",
}

// PagerTransport raises, acknowledges and resolves PagerDuty incidents
// keyed by the alert fingerprint
type PagerTransport struct {
	poster    *Poster
	eventsURL string
}

var _ monitoring.Transport = (*PagerTransport)(nil)

func NewPagerTransport(cfg config.PagerDutyConfig, poster *Poster) *PagerTransport {
	eventsURL := cfg.EventsURL
	if eventsURL == "" {
		eventsURL = "https://events.pagerduty.com/v2/enqueue"
	}
	return &PagerTransport{poster: poster, eventsURL: eventsURL}
}

func (t *PagerTransport) Send(ctx context.Context, _ string, alert *monitoring.Alert, action monitoring.AlertAction) (string, error) {
	if action.Pager == nil || action.Pager.RoutingKey == "" {
		return "", fmt.Errorf("pager action has no routing key")
	}

	kind, _ := monitoring.DeliveryFromContext(ctx)
	event := pagerEvent{
		RoutingKey:  action.Pager.RoutingKey,
		EventAction: "trigger",
		DedupKey:    alert.ID,
	}

	switch kind {
	case monitoring.KindAcknowledgement:
		event.EventAction = "acknowledge"
	case monitoring.KindResolution:
		event.EventAction = "resolve"
	default:
		details := map[string]string{
			"alert_id": alert.ID,
			"status":   string(alert.Status),
		}
		if alert.Message != "" {
			details["message"] = alert.Message
		}
		if alert.CurrentValue != nil {
			details["value"] = formatFloat(*alert.CurrentValue)
		}
		if alert.Threshold != nil {
			details["threshold"] = formatFloat(*alert.Threshold)
		}
		if alert.TenantID != "" {
			details["tenant_id"] = alert.TenantID
		}

		severity, ok := pagerSeverity[alert.Severity]
		if !ok {
			severity = "warning"
		}
		event.Payload = &pagerPayload{
			Summary:       Render(alert, kind).Subject,
			Source:        alert.Component,
			Severity:      severity,
			Timestamp:     alert.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Component:     alert.Component,
			Class:         alert.Metric,
			CustomDetails: details,
		}
	}

	result, err := t.poster.PostJSON(ctx, t.eventsURL, nil, event)
	if err != nil {
		return describe(result), err
	}

	var resp pagerResponse
	if err := json.Unmarshal([]byte(result.Body), &resp); err == nil && resp.DedupKey != "" {
		return fmt.Sprintf("%s: %s", resp.Status, resp.DedupKey), nil
	}
	return describe(result), nil
}
