package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Supported delivery providers.
const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderMailgun  = "mailgun"
	ProviderLog      = "log"
)

// ErrNoRecipients is returned when a message has no usable recipient.
var ErrNoRecipients = errors.New("mail: at least one recipient is required")

// Message represents an outbound email. HTML is optional.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Settings selects and configures a delivery provider.
type Settings struct {
	Provider string
	From     string
	SMTP     SMTPSettings
	SendGrid SendGridSettings
	Mailgun  MailgunSettings
}

// New builds the Mailer for the configured provider.
func New(settings Settings) (Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(settings.Provider)) {
	case "", ProviderLog:
		return NewLogMailer(settings.From), nil
	case ProviderSMTP:
		smtpSettings := settings.SMTP
		if smtpSettings.From == "" {
			smtpSettings.From = settings.From
		}
		return NewSMTPMailer(smtpSettings)
	case ProviderSendGrid:
		sg := settings.SendGrid
		if sg.From == "" {
			sg.From = settings.From
		}
		return NewSendGridMailer(sg)
	case ProviderMailgun:
		mg := settings.Mailgun
		if mg.From == "" {
			mg.From = settings.From
		}
		return NewMailgunMailer(mg)
	default:
		return nil, fmt.Errorf("mail: unsupported provider %q", settings.Provider)
	}
}

// prepare resolves the sender and validates every address on the message.
func prepare(msg Message, defaultFrom string) (string, []string, error) {
	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return "", nil, ErrNoRecipients
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = defaultFrom
	}
	if from == "" {
		return "", nil, errors.New("mail: sender address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return "", nil, fmt.Errorf("mail: invalid from address: %w", err)
	}

	for _, rcpt := range recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return "", nil, fmt.Errorf("mail: invalid recipient address %q: %w", rcpt, err)
		}
	}
	return from, recipients, nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
