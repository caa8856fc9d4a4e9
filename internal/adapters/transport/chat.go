package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/frostdev-ops/alert-engine/internal/config"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

var severityColor = map[monitoring.AlertSeverity]string{
	monitoring.SeverityCritical: "#d00000",
	monitoring.SeverityHigh:     "#f2711c",
	monitoring.SeverityMedium:   "#fbbd08",
	monitoring.SeverityLow:      "#2185d0",
}

const resolvedColor = "#21ba45"

// ChatTransport posts alerts to Slack channels
type ChatTransport struct {
	client *slack.Client
	logger *logrus.Logger
}

var _ monitoring.Transport = (*ChatTransport)(nil)

// NewChatTransport creates a Slack transport from config. APIURL overrides
// the Slack endpoint, mainly for tests.
func NewChatTransport(cfg config.SlackConfig, logger *logrus.Logger) *ChatTransport {
	var options []slack.Option
	options = append(options, slack.OptionDebug(false))
	if cfg.APIURL != "" {
		apiURL := cfg.APIURL
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		options = append(options, slack.OptionAPIURL(apiURL))
	}

	return &ChatTransport{
		client: slack.New(cfg.Token, options...),
		logger: logger,
	}
}

func (t *ChatTransport) Send(ctx context.Context, channel string, alert *monitoring.Alert, _ monitoring.AlertAction) (string, error) {
	if channel == "" {
		return "", fmt.Errorf("chat action has no channel")
	}

	kind, step := monitoring.DeliveryFromContext(ctx)
	msg := Render(alert, kind)

	color := severityColor[alert.Severity]
	if kind == monitoring.KindResolution {
		color = resolvedColor
	}

	fields := []slack.AttachmentField{
		{Title: "Severity", Value: string(alert.Severity), Short: true},
		{Title: "Component", Value: alert.Component, Short: true},
		{Title: "Status", Value: string(alert.Status), Short: true},
	}
	if alert.Metric != "" {
		fields = append(fields, slack.AttachmentField{Title: "Metric", Value: alert.Metric, Short: true})
	}
	if alert.CurrentValue != nil {
		fields = append(fields, slack.AttachmentField{Title: "Value", Value: formatFloat(*alert.CurrentValue), Short: true})
	}
	if step > 0 {
		fields = append(fields, slack.AttachmentField{Title: "Escalation step", Value: fmt.Sprintf("%d", step), Short: true})
	}

	attachment := slack.Attachment{
		Color:    color,
		Title:    alert.Title,
		Text:     alert.Message,
		Fields:   fields,
		Footer:   "alert " + alert.ID,
		Fallback: msg.Subject,
	}

	channelID, timestamp, err := t.client.PostMessageContext(ctx, channel,
		slack.MsgOptionText("*"+msg.Subject+"*", false),
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		return "", fmt.Errorf("failed to post to %s: %w", channel, err)
	}

	if t.logger != nil {
		t.logger.WithFields(logrus.Fields{
			"channel":  channelID,
			"ts":       timestamp,
			"alert_id": alert.ID,
		}).Debug("Posted alert to Slack")
	}
	return fmt.Sprintf("%s/%s", channelID, timestamp), nil
}
