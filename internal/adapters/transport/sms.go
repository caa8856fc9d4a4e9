package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/frostdev-ops/alert-engine/internal/config"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

const smsMaxLength = 160

type smsRequest struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// SMSTransport sends a one-line rendering through an HTTP SMS gateway,
// one request per number
type SMSTransport struct {
	poster *Poster
	cfg    config.SMSConfig
}

var _ monitoring.Transport = (*SMSTransport)(nil)

func NewSMSTransport(cfg config.SMSConfig, poster *Poster) *SMSTransport {
	return &SMSTransport{poster: poster, cfg: cfg}
}

func (t *SMSTransport) Send(ctx context.Context, _ string, alert *monitoring.Alert, action monitoring.AlertAction) (string, error) {
	if action.SMS == nil || len(action.SMS.To) == 0 {
		return "", fmt.Errorf("sms action has no recipients")
	}

	kind, _ := monitoring.DeliveryFromContext(ctx)
	text := Render(alert, kind).Short(smsMaxLength)

	headers := map[string]string{}
	if t.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + t.cfg.APIKey
	}

	var (
		sent   []string
		failed []string
	)
	for _, number := range action.SMS.To {
		_, err := t.poster.PostJSON(ctx, t.cfg.GatewayURL, headers, smsRequest{
			From:    t.cfg.From,
			To:      number,
			Message: text,
		})
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", number, err))
			continue
		}
		sent = append(sent, number)
	}

	response := fmt.Sprintf("sent to %d of %d", len(sent), len(action.SMS.To))
	if len(failed) > 0 {
		return response, fmt.Errorf("sms delivery failed: %s", strings.Join(failed, "; "))
	}
	return response, nil
}
