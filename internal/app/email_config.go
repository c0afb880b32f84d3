package app

import "github.com/charlesng35/tenantcrm/pkg/mail"

// MailSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) MailSettings() mail.Settings {
	return mail.Settings{
		Provider: c.Provider,
		From:     c.From,
		SMTP: mail.SMTPSettings{
			Enabled:  c.Provider == mail.ProviderSMTP,
			Host:     c.SMTP.Host,
			Port:     c.SMTP.Port,
			Username: c.SMTP.Username,
			Password: c.SMTP.Password,
			From:     c.From,
			UseTLS:   c.SMTP.UseTLS,
			Timeout:  c.SMTP.Timeout,
		},
		SendGrid: mail.SendGridSettings{
			APIKey:   c.SendGrid.APIKey,
			From:     c.From,
			FromName: c.SendGrid.FromName,
			Timeout:  c.SendGrid.Timeout,
		},
		Mailgun: mail.MailgunSettings{
			Domain:  c.Mailgun.Domain,
			APIKey:  c.Mailgun.APIKey,
			APIBase: c.Mailgun.APIBase,
			From:    c.From,
			Timeout: c.Mailgun.Timeout,
		},
	}
}
