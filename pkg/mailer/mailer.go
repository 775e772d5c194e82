package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/campushub/campushub-api/pkg/config"
)

// Sender delivers a single outbound mail synchronously.
type Sender interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// SMTPMailer sends transactional mail through a plain SMTP relay.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	baseURL string
}

// NewSMTP builds an SMTP-backed mailer from configuration.
func NewSMTP(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		baseURL: cfg.BaseURL,
	}
}

// SendVerification mails a signed email-verification link.
func (m *SMTPMailer) SendVerification(_ context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.baseURL, token)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nWelcome to Campushub. Please confirm your email address within 24 hours:\r\n\r\n%s\r\n\r\nIf you did not create this account you can ignore this message.\r\n",
		name, link,
	)
	return m.send(to, "Confirm your email address", body)
}

// SendPasswordReset mails a one-time password reset token. The raw token is
// only ever present in this mail; the server keeps a hash.
func (m *SMTPMailer) SendPasswordReset(_ context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.baseURL, token)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nA password reset was requested for your account. The link below is valid for 10 minutes:\r\n\r\n%s\r\n\r\nIf you did not request this, no action is needed.\r\n",
		name, link,
	)
	return m.send(to, "Reset your password", body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
