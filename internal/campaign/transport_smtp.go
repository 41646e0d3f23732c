package campaign

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"github.com/ignite/mailtrack/internal/config"
	"github.com/ignite/mailtrack/internal/pkg/logger"
)

// SMTPTransport sends emails through a plain SMTP relay (Gmail with an
// app password in the common case).
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
}

// NewSMTPTransport creates an SMTP transport from config.
func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Name identifies the transport in logs and reports.
func (t *SMTPTransport) Name() string { return "smtp" }

// Send delivers a single email via smtp.SendMail. The context is not
// honored mid-transaction; net/smtp has no deadline hooks, so
// cancellation takes effect between messages in the dispatcher.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	from := fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)
	body := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n",
		from, msg.To, msg.Subject, msg.HTML))

	var auth smtp.Auth
	if t.username != "" {
		auth = smtp.PlainAuth("", t.username, t.password, t.host)
	}

	if err := smtp.SendMail(addr, auth, msg.FromEmail, []string{msg.To}, body); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	log.Printf("[SMTP] Sent to %s", logger.RedactEmail(msg.To))
	return nil
}
