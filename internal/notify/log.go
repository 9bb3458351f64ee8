package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/imemory/server/internal/logging"
)

// LogDispatcher writes messages to the log instead of delivering them. It is
// wired in dev mode so codes can be read from the console.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.Named("notify")}
}

func (d *LogDispatcher) SendEmail(_ context.Context, to, subject, body string) error {
	d.log.Info("dev email", logging.Email(to), zap.String("subject", subject), zap.String("body", body))
	return nil
}

func (d *LogDispatcher) SendSMS(_ context.Context, phone, body string) error {
	d.log.Info("dev sms", logging.Phone(phone), zap.String("body", body))
	return nil
}
