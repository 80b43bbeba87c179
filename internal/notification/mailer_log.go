package notification

import (
	"context"

	"facility-uptime-monitor/internal/logger"

	"go.uber.org/zap"
)

// LogMailer writes messages to the log instead of sending them. Used in development.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	logger.Info("Email (log driver)",
		zap.String("from", msg.From),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
