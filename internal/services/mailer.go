package services

import (
	"context"
	"log/slog"
)

// Mailer delivers transactional e-mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes messages to the log instead of sending them. It is the
// default until an outbound mail provider is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, to, subject, body string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "outbound email", "to", to, "subject", subject, "body", body)
	return nil
}
