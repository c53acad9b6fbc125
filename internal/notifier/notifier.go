// Package notifier delivers relevance alerts to the operator.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aprilius996/ofac-monitor/internal/config"
)

// Notifier delivers one message. It reports success and never returns
// transport errors; failures are logged by the implementation.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) bool
}

// New builds the notifier for the configured channel.
func New(cfg *config.Config, log *slog.Logger) (Notifier, error) {
	switch cfg.NotifyChannel {
	case config.ChannelEmail:
		return NewEmail(cfg.SMTP, cfg.HTTPTimeout, log), nil
	case config.ChannelTelegram:
		return NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
	case config.ChannelLog:
		return NewLog(log), nil
	default:
		return nil, fmt.Errorf("unsupported notification channel %q", cfg.NotifyChannel)
	}
}

// Log writes notifications to the logger. It is used for dry runs.
type Log struct {
	log *slog.Logger
}

// NewLog creates a log-only notifier.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

// Notify logs the message and reports success.
func (l *Log) Notify(_ context.Context, subject, body string) bool {
	l.log.Info("notification", "subject", subject, "body", body)
	return true
}
