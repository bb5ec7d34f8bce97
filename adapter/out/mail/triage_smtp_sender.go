// Package mail delivers plain-text notification email over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"

	"gopkg.in/gomail.v2"

	"complaint_triage/core/port/out"
	"complaint_triage/pkg/resilience"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Enabled reports whether enough is set to attempt delivery.
func (c Config) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender implements out.MailSender with gomail.
type SMTPSender struct {
	dialer dialer
	from   string
	name   string
}

var _ out.MailSender = (*SMTPSender)(nil)

// NewSMTPSender creates a sender. Each Send opens its own connection.
func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		name:   cfg.FromName,
	}
}

// Send implements out.MailSender. gomail has no context support, so the
// dial runs in a goroutine and ctx only bounds how long we wait for it.
func (s *SMTPSender) Send(ctx context.Context, msg *out.MailMessage) error {
	if len(msg.To) == 0 {
		return &resilience.Permanent{Err: errors.New("mail has no recipient")}
	}

	m := s.build(msg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return classify(fmt.Errorf("smtp send to %v: %w", msg.To, err))
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %v: %w", msg.To, ctx.Err())
	}
}

func (s *SMTPSender) build(msg *out.MailMessage) *gomail.Message {
	m := gomail.NewMessage()
	if s.name != "" {
		m.SetAddressHeader("From", s.from, s.name)
	} else {
		m.SetHeader("From", s.from)
	}
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}

// classify marks 5xx SMTP replies as permanent; retrying a rejected
// mailbox or failed auth only repeats the rejection.
func classify(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return &resilience.Permanent{Err: err}
	}
	return err
}
