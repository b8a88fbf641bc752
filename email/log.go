package email

import (
	"context"

	"github.com/velmie/unlocknotify"
)

// LogSender only logs messages. It stands in for a provider during local development.
type LogSender struct {
	logger unlocknotify.Logger
}

var _ unlocknotify.Notifier = LogSender{}

// NewLogSender returns a sender that writes one Info entry per message.
func NewLogSender(logger unlocknotify.Logger) LogSender {
	if logger == nil {
		logger = unlocknotify.NopLogger{}
	}

	return LogSender{logger: logger}
}

// Send implements unlocknotify.Notifier.
func (s LogSender) Send(ctx context.Context, to string, msg unlocknotify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		return ErrRecipientRequired
	}
	s.logger.Info("mock email", "to", to, "subject", msg.Subject)

	return nil
}
