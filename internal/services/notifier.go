package services

import (
	"context"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/tenantcrm/pkg/logger"
	"github.com/charlesng35/tenantcrm/pkg/mail"
)

// ResetEmail is the data a reset email needs.
type ResetEmail struct {
	Name      string
	Link      string
	ExpiresIn time.Duration
}

// ResetNotifier delivers password reset links. It only reports whether
// delivery succeeded; callers never inspect the message.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, to string, data ResetEmail) bool
}

// MailNotifier renders reset emails and hands them to a mail.Mailer.
type MailNotifier struct {
	mailer  mail.Mailer
	appName string
	log     *zap.Logger
}

// NewMailNotifier builds a notifier. appName appears in subjects and bodies.
func NewMailNotifier(mailer mail.Mailer, appName string) *MailNotifier {
	if appName == "" {
		appName = "TenantCRM"
	}
	return &MailNotifier{mailer: mailer, appName: appName, log: logger.WithModule("notifier")}
}

// SendPasswordReset implements ResetNotifier.
func (n *MailNotifier) SendPasswordReset(ctx context.Context, to string, data ResetEmail) bool {
	if n.mailer == nil {
		return false
	}

	greeting := "Hello,"
	if data.Name != "" {
		greeting = fmt.Sprintf("Hello %s,", data.Name)
	}
	minutes := int(data.ExpiresIn.Minutes())

	msg := mail.Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Reset your %s password", n.appName),
		Text: fmt.Sprintf("%s\n\nWe received a request to reset your password. Use the link below within %d minutes:\n%s\n\nIf you did not ask for this, you can ignore this email.\n",
			greeting, minutes, data.Link),
		HTML: fmt.Sprintf(`<p>%s</p><p>We received a request to reset your password. The link below is valid for %d minutes.</p><p><a href="%s">Reset password</a></p><p>If you did not ask for this, you can ignore this email.</p>`,
			html.EscapeString(greeting), minutes, html.EscapeString(data.Link)),
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		n.log.Warn("password reset email failed", zap.Error(err))
		return false
	}
	return true
}
