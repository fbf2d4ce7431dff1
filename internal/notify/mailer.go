package notify

import (
	"context"

	mail "github.com/wneessen/go-mail"

	"ecocal/internal/config"
	"ecocal/internal/metrics"
	"ecocal/internal/model"
)

// Mailer submits reminder messages over SMTP with mandatory TLS and
// username/password auth. Server address and credentials are external
// configuration; credentials never live in the config file.
type Mailer struct {
	host     string
	port     int
	from     string
	username string
	password string
}

func NewMailer(cfg config.SMTPConfig, username, password string) *Mailer {
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		from:     cfg.From,
		username: username,
		password: password,
	}
}

func (m *Mailer) Name() string { return "smtp" }

// Notify sends one plain-text message for the event to all recipients.
// Any failure is wrapped in *NotifyError and counted; it is not retried.
func (m *Mailer) Notify(ctx context.Context, ev model.Event, recipients []string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return m.fail(err)
	}
	if err := msg.To(recipients...); err != nil {
		return m.fail(err)
	}
	msg.Subject(Subject(ev))
	msg.SetBodyString(mail.TypeTextPlain, Body(ev))

	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.username),
		mail.WithPassword(m.password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return m.fail(err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return m.fail(err)
	}
	return nil
}

func (m *Mailer) fail(err error) error {
	metrics.NotifyFailures.Inc()
	return &NotifyError{Cause: err}
}
