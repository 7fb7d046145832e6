package config

import (
	"context"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer delivers HTML email. Notifications mirror to email through it; the
// in-app document is always the source of truth.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

// NewMailer picks a mailer from the settings.
func NewMailer(s *Settings, logger *zap.Logger) (Mailer, error) {
	switch s.MailDriver {
	case "resend":
		if s.ResendAPIKey == "" {
			return nil, errors.New("mail.driver=resend requires resend.api_key")
		}
		return &ResendMailer{client: resend.NewClient(s.ResendAPIKey), from: s.MailFrom, logger: logger}, nil
	case "smtp":
		if s.SMTPHost == "" {
			return nil, errors.New("mail.driver=smtp requires smtp.host")
		}
		return &SMTPMailer{
			dialer: gomail.NewDialer(s.SMTPHost, s.SMTPPort, s.SMTPUser, s.SMTPPassword),
			from:   s.MailFrom,
		}, nil
	case "", "log":
		return &LogMailer{logger: logger}, nil
	}
	return nil, errors.Errorf("unknown mail.driver %q", s.MailDriver)
}

// ResendMailer sends mail through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

// Send sends one HTML message.
func (m *ResendMailer) Send(ctx context.Context, to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      to,
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return errors.Wrap(err, "resend: send email")
	}
	m.logger.Debug("email sent", zap.String("id", sent.Id), zap.Int("recipients", len(to)))
	return nil
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// Send sends one HTML message.
func (m *SMTPMailer) Send(_ context.Context, to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)
	return errors.Wrap(m.dialer.DialAndSend(msg), "smtp: send email")
}

// LogMailer only logs; used in development and tests.
type LogMailer struct {
	logger *zap.Logger
}

// Send logs the message instead of sending it.
func (m *LogMailer) Send(_ context.Context, to []string, subject, _ string) error {
	m.logger.Info("email (not sent)", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}
