package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunSettings configures the Mailgun API mailer. APIBase is optional and
// selects a regional endpoint such as https://api.eu.mailgun.net/v3.
type MailgunSettings struct {
	Domain  string
	APIKey  string
	APIBase string
	From    string
	Timeout time.Duration
}

type mailgunMailer struct {
	cfg     MailgunSettings
	client  *mailgun.MailgunImpl
	deliver func(ctx context.Context, message *mailgun.Message) (string, error)
}

// NewMailgunMailer returns a Mailer delivering through the Mailgun API.
func NewMailgunMailer(cfg MailgunSettings) (Mailer, error) {
	if cfg.Domain == "" || cfg.APIKey == "" || cfg.From == "" {
		return nil, errors.New("mailgun: domain, api key and from address are required")
	}
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}
	m := &mailgunMailer{cfg: cfg, client: mg}
	m.deliver = func(ctx context.Context, message *mailgun.Message) (string, error) {
		_, id, err := mg.Send(ctx, message)
		return id, err
	}
	return m, nil
}

func (m *mailgunMailer) Send(ctx context.Context, msg Message) error {
	from, recipients, err := prepare(msg, m.cfg.From)
	if err != nil {
		return err
	}

	message := m.client.NewMessage(from, msg.Subject, msg.Text, recipients...)
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}

	ctx, cancel := withTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	if _, err := m.deliver(ctx, message); err != nil {
		return fmt.Errorf("mailgun: send: %w", err)
	}
	return nil
}
