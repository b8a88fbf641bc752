package unlocknotify

import (
	"math"
	"time"
)

// Backoff maps the attempt count before a claim to the delay before the next retry.
type Backoff interface {
	Delay(attempts int) time.Duration
}

// BackoffFunc adapts a function to Backoff.
type BackoffFunc func(attempts int) time.Duration

// Delay implements Backoff.
func (fn BackoffFunc) Delay(attempts int) time.Duration {
	return fn(attempts)
}

// ExponentialBackoff doubles Base per attempt and caps the result at Max.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff yields 1h, 2h, 4h, 8h, 16h and then 24h.
var DefaultBackoff = ExponentialBackoff{Base: time.Hour, Max: 24 * time.Hour}

// Delay returns min(Max, Base * 2^attempts). A non-positive Max means uncapped.
func (b ExponentialBackoff) Delay(attempts int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	limit := b.Max
	if limit <= 0 {
		limit = math.MaxInt64
	}
	if attempts < 0 {
		attempts = 0
	}

	d := b.Base
	for i := 0; i < attempts; i++ {
		if d > limit/2 {
			return limit
		}
		d *= 2
	}
	if d > limit {
		return limit
	}

	return d
}
