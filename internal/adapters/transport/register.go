package transport

import (
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/alert-engine/internal/config"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

// RegisterEnabled binds every enabled transport to router and returns the
// action types it registered
func RegisterEnabled(router *monitoring.NotificationRouter, cfg config.TransportsConfig, logger *logrus.Logger) []monitoring.ActionType {
	var registered []monitoring.ActionType
	register := func(actionType monitoring.ActionType, t monitoring.Transport) {
		router.Register(actionType, t)
		registered = append(registered, actionType)
	}

	if cfg.Slack.Enabled {
		register(monitoring.ActionChat, NewChatTransport(cfg.Slack, logger))
	}
	if cfg.SMTP.Enabled {
		register(monitoring.ActionEmail, NewEmailTransport(cfg.SMTP))
	}
	if cfg.Webhook.Enabled {
		register(monitoring.ActionWebhook, NewWebhookTransport(NewPoster("webhook", cfg.Webhook, logger)))
	}
	if cfg.SMS.Enabled {
		register(monitoring.ActionSMS, NewSMSTransport(cfg.SMS, NewPoster("sms", cfg.Webhook, logger)))
	}
	if cfg.PagerDuty.Enabled {
		register(monitoring.ActionPager, NewPagerTransport(cfg.PagerDuty, NewPoster("pagerduty", cfg.Webhook, logger)))
	}

	if logger != nil {
		logger.WithField("transports", registered).Info("Notification transports registered")
	}
	return registered
}
