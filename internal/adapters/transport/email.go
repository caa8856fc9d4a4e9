package transport

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/frostdev-ops/alert-engine/internal/config"
	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailTransport delivers plain-text alert mail over SMTP
type EmailTransport struct {
	cfg      config.SMTPConfig
	sendMail sendMailFunc
}

var _ monitoring.Transport = (*EmailTransport)(nil)

func NewEmailTransport(cfg config.SMTPConfig) *EmailTransport {
	return &EmailTransport{cfg: cfg, sendMail: smtp.SendMail}
}

func (t *EmailTransport) Send(ctx context.Context, _ string, alert *monitoring.Alert, action monitoring.AlertAction) (string, error) {
	if action.Email == nil || len(action.Email.To) == 0 {
		return "", fmt.Errorf("email action has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	kind, _ := monitoring.DeliveryFromContext(ctx)
	msg := Render(alert, kind)
	subject := msg.Subject
	if action.Email.Subject != "" {
		subject = fmt.Sprintf("%s: %s", action.Email.Subject, msg.Subject)
	}

	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}

	body := buildMail(t.cfg.From, action.Email.To, subject, msg.Text, time.Now())
	if err := t.sendMail(addr, auth, t.cfg.From, action.Email.To, body); err != nil {
		return "", fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}
	return fmt.Sprintf("queued for %d recipient(s)", len(action.Email.To)), nil
}

func buildMail(from string, to []string, subject, text string, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(text, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
