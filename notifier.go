package unlocknotify

import "context"

// Message is a rendered notification.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Notifier attempts exactly one delivery of a message to an address.
type Notifier interface {
	// Send delivers msg to the address and returns an error on failure.
	Send(ctx context.Context, to string, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, to string, msg Message) error

// Send implements Notifier.
func (fn NotifierFunc) Send(ctx context.Context, to string, msg Message) error {
	return fn(ctx, to, msg)
}
