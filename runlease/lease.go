// Package runlease provides a Redis-backed lease that lets overlapping dispatch triggers skip early.
//
// The lease is an optimization only. Correctness of delivery still rests on the task store's atomic
// claim, so an expired or lost lease can at worst let two runs overlap.
package runlease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKey is the Redis key holding the current lease token.
	DefaultKey = "unlocknotify:dispatch:lease"
	// DefaultTTL bounds how long a crashed holder blocks other runs.
	DefaultTTL = 5 * time.Minute
)

var (
	// ErrClientRequired is returned when New is called with a nil client.
	ErrClientRequired = errors.New("runlease: redis client is required")
	// ErrInvalidTTL is returned for a non-positive TTL.
	ErrInvalidTTL = errors.New("runlease: ttl must be positive")
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a single-holder lease on one Redis key.
type Lease struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// Option configures a Lease.
type Option func(*Lease)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(l *Lease) {
		l.key = key
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(l *Lease) {
		l.ttl = ttl
	}
}

// New builds a lease on client.
func New(client redis.Cmdable, opts ...Option) (*Lease, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	l := &Lease{client: client, key: DefaultKey, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(l)
	}
	if l.ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	return l, nil
}

// Acquire takes the lease. ok is false when another holder has it. The returned release func gives
// the lease back if it is still ours.
func (l *Lease) Acquire(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("runlease: setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("runlease: release: %w", err)
		}

		return nil
	}

	return release, true, nil
}
