package notification

import (
	"context"
	"fmt"
	"net/smtp"

	"user-hub/internal/config"
)

// SMTPBackend sends rendered mail straight to an SMTP relay.
type SMTPBackend struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPBackend(cfg config.SMTPConfig) (*SMTPBackend, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP_HOST is required")
	}
	return &SMTPBackend{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		fromName: cfg.FromName,
		send:     smtp.SendMail,
	}, nil
}

func (b *SMTPBackend) Name() string {
	return "smtp"
}

func (b *SMTPBackend) Deliver(_ context.Context, evt Event) error {
	subject, body, err := Render(evt)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", b.host, b.port)
	var auth smtp.Auth
	if b.username != "" {
		auth = smtp.PlainAuth("", b.username, b.password, b.host)
	}

	msg := []byte(fmt.Sprintf("From: %s <%s>\r\n", b.fromName, b.from) +
		fmt.Sprintf("To: %s\r\n", evt.Email) +
		fmt.Sprintf("Subject: %s\r\n", subject) +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body + "\r\n")

	if err := b.send(addr, auth, b.from, []string{evt.Email}, msg); err != nil {
		return fmt.Errorf("send email via smtp: %w", err)
	}
	return nil
}
