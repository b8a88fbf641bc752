package email

import "errors"

var (
	// ErrFromRequired is returned when no sender address is configured.
	ErrFromRequired = errors.New("email: from address is required")
	// ErrClientRequired is returned when the SES client is nil.
	ErrClientRequired = errors.New("email: ses client is required")
	// ErrNotifierRequired is returned when Limited wraps a nil notifier.
	ErrNotifierRequired = errors.New("email: notifier is required")
	// ErrRecipientRequired is returned when Send is called without a destination.
	ErrRecipientRequired = errors.New("email: recipient is required")
)
