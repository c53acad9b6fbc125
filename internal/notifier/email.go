package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/Aprilius996/ofac-monitor/internal/config"
	"github.com/Aprilius996/ofac-monitor/internal/model"
)

// Email sends notifications over SMTP with mandatory STARTTLS.
type Email struct {
	cfg     config.SMTPConfig
	timeout time.Duration
	send    func(ctx context.Context, msg *mail.Msg) error
	log     *slog.Logger
}

// NewEmail creates an SMTP notifier.
func NewEmail(cfg config.SMTPConfig, timeout time.Duration, log *slog.Logger) *Email {
	e := &Email{cfg: cfg, timeout: timeout, log: log}
	e.send = e.dialAndSend
	return e
}

// Notify builds and sends the message. Any failure is logged and reported
// as false.
func (e *Email) Notify(ctx context.Context, subject, body string) bool {
	msg, err := e.message(subject, body)
	if err != nil {
		e.log.Error("build email", "error", err)
		return false
	}
	if err := e.send(ctx, msg); err != nil {
		e.log.Error("send email", "host", e.cfg.Host, "error", fmt.Errorf("%w: %w", model.ErrDelivery, err))
		return false
	}
	e.log.Info("email sent", "to", e.cfg.To, "subject", subject)
	return true
}

func (e *Email) message(subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(e.cfg.From); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(e.cfg.To...); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (e *Email) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(e.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(e.timeout),
	}
	if e.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.cfg.User),
			mail.WithPassword(e.cfg.Password),
		)
	}
	client, err := mail.NewClient(e.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return client.DialAndSendWithContext(ctx, msg)
}
