package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"partsmarket/config"
)

var ErrSend = errors.New("email provider rejected message")

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends one message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

func New(cfg *config.Config, logger *slog.Logger) (Mailer, error) {
	switch cfg.MailDriver {
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("MAIL_DRIVER=resend requires RESEND_API_KEY")
		}
		return NewResend(cfg.ResendAPIKey, cfg.ResendURL, cfg.MailFrom, cfg.HTTPTimeout), nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("MAIL_DRIVER=smtp requires SMTP_HOST")
		}
		return &SMTP{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}, nil
	case "log", "":
		return &Log{Logger: logger}, nil
	}
	return nil, fmt.Errorf("unsupported MAIL_DRIVER %q", cfg.MailDriver)
}

// Log writes messages to the logger instead of sending them. Used in development.
type Log struct {
	Logger *slog.Logger
}

func (l *Log) Send(ctx context.Context, msg Message) (string, error) {
	id := "log-" + uuid.NewString()
	l.Logger.InfoContext(ctx, "email not sent (log driver)",
		"message_id", id,
		"to", msg.To,
		"subject", msg.Subject,
		"bytes", len(msg.HTML),
	)
	return id, nil
}
