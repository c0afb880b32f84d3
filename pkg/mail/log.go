package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/tenantcrm/pkg/logger"
)

type logMailer struct {
	from string
	log  *zap.Logger
}

// NewLogMailer returns a Mailer that records message metadata in the log and
// delivers nothing. It is the development default.
func NewLogMailer(from string) Mailer {
	return &logMailer{from: from, log: logger.WithModule("mail")}
}

func (m *logMailer) Send(_ context.Context, msg Message) error {
	from := m.from
	if from == "" {
		from = "noreply@localhost"
	}
	_, recipients, err := prepare(msg, from)
	if err != nil {
		return err
	}
	m.log.Info("email suppressed by log provider",
		zap.Strings("to", recipients),
		zap.String("subject", msg.Subject),
	)
	return nil
}
