// Package mail renders and delivers the verification email over SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/iliyamo/authflow/internal/config"
	"github.com/iliyamo/authflow/internal/queue"
)

// Sender abstracts the SMTP transport so rendering can be tested without a
// server.  *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer implements queue.Mailer on top of gomail.
type Mailer struct {
	sender Sender
	from   string
}

func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

// NewMailerWithSender is used when the transport is supplied by the caller.
func NewMailerWithSender(s Sender, from string) *Mailer {
	return &Mailer{sender: s, from: from}
}

var verifyTemplate = template.Must(template.New("verify").Parse(`
<h2>Hello {{.Name}},</h2>
<p>Please click the link below to verify your email address.</p>
<p><a href="{{.URL}}">Verify Email Address</a></p>
<p>This link expires at {{.ExpiresAt.Format "2006-01-02 15:04 MST"}}.</p>
<p>If you did not create an account, no further action is required.</p>
`))

// BuildVerificationMessage renders the message without sending it.
func (m *Mailer) BuildVerificationMessage(ev queue.VerificationRequested) (*gomail.Message, error) {
	var body bytes.Buffer
	if err := verifyTemplate.Execute(&body, ev); err != nil {
		return nil, fmt.Errorf("render verification email: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetAddressHeader("To", ev.Email, ev.Name)
	msg.SetHeader("Subject", "Verify Email Address")
	msg.SetBody("text/plain", "Verify your email address: "+ev.URL)
	msg.AddAlternative("text/html", body.String())
	return msg, nil
}

// SendVerification renders and delivers the verification email.
func (m *Mailer) SendVerification(ctx context.Context, ev queue.VerificationRequested) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.BuildVerificationMessage(ev)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}
