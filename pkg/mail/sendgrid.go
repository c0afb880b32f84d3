package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSettings configures the SendGrid v3 API mailer.
type SendGridSettings struct {
	APIKey   string
	From     string
	FromName string
	Timeout  time.Duration
}

type sendGridDeliverFunc func(ctx context.Context, message *sgmail.SGMailV3) (int, error)

type sendGridMailer struct {
	cfg     SendGridSettings
	deliver sendGridDeliverFunc
}

// NewSendGridMailer returns a Mailer delivering through the SendGrid API.
func NewSendGridMailer(cfg SendGridSettings) (Mailer, error) {
	if cfg.APIKey == "" || cfg.From == "" {
		return nil, errors.New("sendgrid: api key and from address are required")
	}
	client := sendgrid.NewSendClient(cfg.APIKey)
	return &sendGridMailer{
		cfg: cfg,
		deliver: func(ctx context.Context, message *sgmail.SGMailV3) (int, error) {
			resp, err := client.SendWithContext(ctx, message)
			if err != nil {
				return 0, err
			}
			return resp.StatusCode, nil
		},
	}, nil
}

func (m *sendGridMailer) Send(ctx context.Context, msg Message) error {
	from, recipients, err := prepare(msg, m.cfg.From)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	status, err := m.deliver(ctx, buildSendGridMessage(from, m.cfg.FromName, recipients, msg))
	if err != nil {
		return fmt.Errorf("sendgrid: send: %w", err)
	}
	if status != http.StatusAccepted && status != http.StatusOK {
		return fmt.Errorf("sendgrid: unexpected status code %d", status)
	}
	return nil
}

func buildSendGridMessage(from, fromName string, recipients []string, msg Message) *sgmail.SGMailV3 {
	message := sgmail.NewV3Mail()
	message.SetFrom(sgmail.NewEmail(fromName, from))
	message.Subject = msg.Subject

	personalization := sgmail.NewPersonalization()
	for _, rcpt := range recipients {
		personalization.AddTos(sgmail.NewEmail("", rcpt))
	}
	message.AddPersonalizations(personalization)

	message.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		message.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return message
}
