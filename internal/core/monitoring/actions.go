package monitoring

import (
	"fmt"
	"net/url"
	"strings"
)

// ActionType is the closed set of notification channels
type ActionType string

const (
	ActionEmail   ActionType = "email"
	ActionChat    ActionType = "chat"
	ActionSMS     ActionType = "sms"
	ActionWebhook ActionType = "webhook"
	ActionPager   ActionType = "pager"
)

// AlertAction is a tagged union: Type selects which of the typed configs is
// populated. Validate enforces that exactly that one is set.
type AlertAction struct {
	Type       ActionType       `json:"type" yaml:"type"`
	Conditions ActionConditions `json:"conditions,omitempty" yaml:"conditions"`

	Email   *EmailAction   `json:"email,omitempty" yaml:"email"`
	Chat    *ChatAction    `json:"chat,omitempty" yaml:"chat"`
	SMS     *SMSAction     `json:"sms,omitempty" yaml:"sms"`
	Webhook *WebhookAction `json:"webhook,omitempty" yaml:"webhook"`
	Pager   *PagerAction   `json:"pager,omitempty" yaml:"pager"`
}

// ActionConditions restricts when an action runs
type ActionConditions struct {
	// Severities lists the alert severities this action fires for; empty means all.
	Severities []AlertSeverity `json:"severities,omitempty" yaml:"severities"`
}

type EmailAction struct {
	To      []string `json:"to" yaml:"to"`
	Subject string   `json:"subject,omitempty" yaml:"subject"`
}

type ChatAction struct {
	Channel string `json:"channel" yaml:"channel"`
}

type SMSAction struct {
	To []string `json:"to" yaml:"to"`
}

type WebhookAction struct {
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`
}

type PagerAction struct {
	RoutingKey string `json:"routing_key" yaml:"routing_key"`
}

// Validate checks that the populated config matches Type
func (a AlertAction) Validate() error {
	set := 0
	for _, present := range []bool{a.Email != nil, a.Chat != nil, a.SMS != nil, a.Webhook != nil, a.Pager != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: action %q must carry exactly one config, found %d", ErrInvalidRule, a.Type, set)
	}

	switch a.Type {
	case ActionEmail:
		if a.Email == nil || len(a.Email.To) == 0 {
			return fmt.Errorf("%w: email action requires recipients", ErrInvalidRule)
		}
	case ActionChat:
		if a.Chat == nil || a.Chat.Channel == "" {
			return fmt.Errorf("%w: chat action requires a channel", ErrInvalidRule)
		}
	case ActionSMS:
		if a.SMS == nil || len(a.SMS.To) == 0 {
			return fmt.Errorf("%w: sms action requires recipients", ErrInvalidRule)
		}
	case ActionWebhook:
		if a.Webhook == nil || a.Webhook.URL == "" {
			return fmt.Errorf("%w: webhook action requires a url", ErrInvalidRule)
		}
	case ActionPager:
		if a.Pager == nil || a.Pager.RoutingKey == "" {
			return fmt.Errorf("%w: pager action requires a routing key", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidRule, a.Type)
	}

	for _, s := range a.Conditions.Severities {
		if !s.Valid() {
			return fmt.Errorf("%w: unknown severity %q in action conditions", ErrInvalidRule, s)
		}
	}
	return nil
}

// Matches reports whether the action should run for an alert of severity s
func (a AlertAction) Matches(s AlertSeverity) bool {
	if len(a.Conditions.Severities) == 0 {
		return true
	}
	for _, allowed := range a.Conditions.Severities {
		if allowed == s {
			return true
		}
	}
	return false
}

// Recipient renders the delivery target handed to the transport. It may
// carry secrets; use RedactedRecipient for logs and records.
func (a AlertAction) Recipient() string {
	switch a.Type {
	case ActionEmail:
		if a.Email != nil {
			return strings.Join(a.Email.To, ",")
		}
	case ActionChat:
		if a.Chat != nil {
			return a.Chat.Channel
		}
	case ActionSMS:
		if a.SMS != nil {
			return strings.Join(a.SMS.To, ",")
		}
	case ActionWebhook:
		if a.Webhook != nil {
			return a.Webhook.URL
		}
	case ActionPager:
		if a.Pager != nil {
			return a.Pager.RoutingKey
		}
	}
	return ""
}

// RedactedRecipient renders the delivery target with secrets masked: pager
// routing keys keep their last four characters and webhook URLs drop
// credentials and query strings.
func (a AlertAction) RedactedRecipient() string {
	switch a.Type {
	case ActionPager:
		if a.Pager != nil {
			return "pagerduty:" + lastChars(a.Pager.RoutingKey, 4)
		}
		return ""
	case ActionWebhook:
		if a.Webhook != nil {
			return redactURL(a.Webhook.URL)
		}
		return ""
	}
	return a.Recipient()
}

func lastChars(s string, n int) string {
	if len(s) <= n {
		return strings.Repeat("*", len(s))
	}
	return "..." + s[len(s)-n:]
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[invalid url]"
	}
	redacted := u.Scheme + "://" + u.Host + u.Path
	if u.RawQuery != "" {
		redacted += "?..."
	}
	if u.User != nil {
		redacted = u.Scheme + "://...@" + strings.TrimPrefix(redacted, u.Scheme+"://")
	}
	return redacted
}
