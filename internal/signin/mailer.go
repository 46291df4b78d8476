package signin

import (
	"context"
	"fmt"

	"github.com/tazhibayda/identity-service/internal/helper"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Mailer interface {
	SendMagicLink(ctx context.Context, to, link string) error
}

// Sender is the part of gomail.Dialer the mailer needs.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	from   string
	sender Sender
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{from: from, sender: gomail.NewDialer(host, port, user, password)}
}

// NewMailerWithSender is used by tests to capture outgoing mail.
func NewMailerWithSender(from string, s Sender) *SMTPMailer {
	return &SMTPMailer{from: from, sender: s}
}

func (m *SMTPMailer) SendMagicLink(ctx context.Context, to, link string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your sign-in link")
	msg.SetBody("text/plain", fmt.Sprintf("Use the link below to sign in. It can be used once.\n\n%s\n", link))
	msg.AddAlternative("text/html", fmt.Sprintf(`<p>Use the link below to sign in. It can be used once.</p><p><a href="%s">Sign in</a></p>`, link))
	return m.sender.DialAndSend(msg)
}

// LogMailer stands in when SMTP is not configured. The link is only logged
// at debug level.
type LogMailer struct {
	Log *zap.Logger
}

func (m LogMailer) SendMagicLink(_ context.Context, to, link string) error {
	m.Log.Info("magic link issued (smtp disabled)", zap.String("email_hash", helper.Hash8(to)))
	m.Log.Debug("magic link", zap.String("link", link))
	return nil
}
