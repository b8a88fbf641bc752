package email

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/velmie/unlocknotify"
)

// Limited bounds a Notifier with a token bucket and a per-send timeout.
//
// The wait for a token uses the caller's context. Only the delivery itself runs under the timeout.
type Limited struct {
	next    unlocknotify.Notifier
	limiter *rate.Limiter
	timeout time.Duration
}

var _ unlocknotify.Notifier = (*Limited)(nil)

// LimitOption configures Limited.
type LimitOption func(*Limited)

// WithRate allows perSecond sends with the given burst. A non-positive rate disables limiting.
func WithRate(perSecond float64, burst int) LimitOption {
	return func(l *Limited) {
		if perSecond <= 0 {
			l.limiter = nil

			return
		}
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTimeout bounds a single Send. Zero disables the timeout.
func WithTimeout(timeout time.Duration) LimitOption {
	return func(l *Limited) {
		l.timeout = timeout
	}
}

// NewLimited wraps next.
func NewLimited(next unlocknotify.Notifier, opts ...LimitOption) (*Limited, error) {
	if next == nil {
		return nil, ErrNotifierRequired
	}
	l := &Limited{next: next}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Send implements unlocknotify.Notifier.
func (l *Limited) Send(ctx context.Context, to string, msg unlocknotify.Message) error {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("email: rate limit wait: %w", err)
		}
	}

	sendCtx := ctx
	cancel := func() {}
	if l.timeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, l.timeout)
	}
	defer cancel()

	return l.next.Send(sendCtx, to, msg)
}
