package transport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

// Message is an alert rendered for a human reader
type Message struct {
	Subject string
	Text    string
}

var kindPrefix = map[monitoring.NotificationKind]string{
	monitoring.KindEscalation:      "ESCALATED",
	monitoring.KindAcknowledgement: "ACKNOWLEDGED",
	monitoring.KindResolution:      "RESOLVED",
}

// Render formats alert for the given lifecycle step
func Render(alert *monitoring.Alert, kind monitoring.NotificationKind) Message {
	severity := strings.ToUpper(string(alert.Severity))

	subject := fmt.Sprintf("[%s] %s", severity, alert.Title)
	if prefix, ok := kindPrefix[kind]; ok {
		subject = fmt.Sprintf("[%s][%s] %s", prefix, severity, alert.Title)
	}

	var b strings.Builder
	b.WriteString(subject)
	b.WriteString("\n")
	if alert.Message != "" {
		b.WriteString(alert.Message)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Component: %s\n", alert.Component)
	if alert.Metric != "" {
		fmt.Fprintf(&b, "Metric: %s\n", alert.Metric)
	}
	if alert.CurrentValue != nil {
		fmt.Fprintf(&b, "Value: %s\n", formatFloat(*alert.CurrentValue))
	}
	if alert.Threshold != nil {
		fmt.Fprintf(&b, "Threshold: %s\n", formatFloat(*alert.Threshold))
	}
	fmt.Fprintf(&b, "Status: %s\n", alert.Status)

	switch kind {
	case monitoring.KindAcknowledgement:
		if alert.AcknowledgedBy != "" {
			fmt.Fprintf(&b, "Acknowledged by: %s\n", alert.AcknowledgedBy)
		}
	case monitoring.KindResolution:
		if alert.ResolvedBy != "" {
			fmt.Fprintf(&b, "Resolved by: %s\n", alert.ResolvedBy)
		}
		if alert.Resolution != "" {
			fmt.Fprintf(&b, "Resolution: %s\n", alert.Resolution)
		}
	}

	if alert.TenantID != "" {
		fmt.Fprintf(&b, "Tenant: %s\n", alert.TenantID)
	}
	fmt.Fprintf(&b, "Alert ID: %s\n", alert.ID)
	fmt.Fprintf(&b, "Started: %s", alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	return Message{Subject: subject, Text: b.String()}
}

// Short returns a single-line rendering capped at limit runes
func (m Message) Short(limit int) string {
	first := m.Text
	if i := strings.Index(first, "\n\n"); i >= 0 {
		first = first[:i]
	}
	first = strings.ReplaceAll(first, "\n", " - ")

	runes := []rune(first)
	if limit > 3 && len(runes) > limit {
		return string(runes[:limit-3]) + "..."
	}
	return first
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
