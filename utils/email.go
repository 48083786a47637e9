package utils

import (
	"crypto/tls"
	"errors"
	"net/smtp"

	"ShareDrop/config"

	"github.com/jordan-wright/email"
)

// SendMail delivers one message to the given recipients through the
// configured SMTP relay.
func SendMail(cfg *config.SMTPConfig, to []string, subject, body string) error {
	if cfg.Host == "" || cfg.From == "" {
		return errors.New("smtp config missing")
	}
	if len(to) == 0 {
		return errors.New("no recipient")
	}

	e := email.NewEmail()
	e.From = cfg.From
	e.To = to
	e.Subject = subject
	e.Text = []byte(body)

	addr := cfg.Host + ":" + cfg.Port
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	tlsConfig := &tls.Config{ServerName: cfg.Host}

	if cfg.TLS || cfg.Port == "465" {
		return e.SendWithTLS(addr, auth, tlsConfig)
	}
	if cfg.StartTLS {
		return e.SendWithStartTLS(addr, auth, tlsConfig)
	}
	return e.Send(addr, auth)
}
