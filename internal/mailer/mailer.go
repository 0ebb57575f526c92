// Package mailer delivers transactional email.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"strings"
	"time"

	"sprout/internal/middleware"

	"gopkg.in/mail.v2"
)

// Message is one outgoing email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Mailer sends email. Implementations must not retain msg.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// dialSender is the part of *mail.Dialer used by SMTPMailer.
type dialSender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	from   string
	dialer dialSender
}

// SMTPConfig holds relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// InsecureSkipVerify disables certificate checks for local relays.
	InsecureSkipVerify bool
}

// NewSMTPMailer creates an SMTPMailer for cfg. Port 465 uses implicit TLS.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 20 * time.Second
	d.SSL = cfg.Port == 465
	if cfg.InsecureSkipVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local relays only
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{from: from, dialer: d}
}

func (m *SMTPMailer) build(msg Message) *mail.Message {
	out := mail.NewMessage()
	out.SetHeader("From", m.from)
	out.SetHeader("To", msg.To)
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/html", msg.HTMLBody)
	return out
}

// Send delivers msg. The SMTP exchange itself is not cancellable, so ctx is
// only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("send email: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(m.build(msg)); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to send email", "to", msg.To, "subject", msg.Subject, "error", err)
		return fmt.Errorf("send email: %w", err)
	}
	middleware.Logger.InfoContext(ctx, "email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when
// no SMTP host is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	middleware.Logger.InfoContext(ctx, "email not sent (no SMTP host configured)",
		"to", msg.To, "subject", msg.Subject, "body", msg.HTMLBody)
	return nil
}

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html lang="en">
<body style="font-family: sans-serif; color: #2f3e2f;">
	<h2>Reset your password</h2>
	<p>Hi {{.Name}},</p>
	<p>We received a request to reset the password of your Gardening Tips account.
	If it was not you, ignore this email.</p>
	<p><a href="{{.Link}}">Reset password</a></p>
	<p>Or paste this token into the app: <code>{{.Token}}</code></p>
	<p>The link expires in {{.Expiry}}.</p>
</body>
</html>`))

// PasswordResetMessage renders the email carrying a reset token.
func PasswordResetMessage(to, name, frontendURL, token string, expiry time.Duration) (Message, error) {
	var body strings.Builder
	err := resetTemplate.Execute(&body, map[string]string{
		"Name":   name,
		"Link":   strings.TrimRight(frontendURL, "/") + "/reset-password?token=" + token,
		"Token":  token,
		"Expiry": expiry.String(),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render reset email: %w", err)
	}
	return Message{To: to, Subject: "Reset your password - Gardening Tips", HTMLBody: body.String()}, nil
}
