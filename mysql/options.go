package mysql

import "github.com/velmie/unlocknotify"

const (
	defaultOutboxTable       = "notification_outbox"
	defaultSubscriptionTable = "notification_subscriptions"
)

// Config defines MySQL store behavior.
type Config struct {
	OutboxTable       string
	SubscriptionTable string
	Clock             unlocknotify.Clock
	Logger            unlocknotify.Logger
}

func (c Config) withDefaults() Config {
	if c.OutboxTable == "" {
		c.OutboxTable = defaultOutboxTable
	}
	if c.SubscriptionTable == "" {
		c.SubscriptionTable = defaultSubscriptionTable
	}
	if c.Clock == nil {
		c.Clock = unlocknotify.SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = unlocknotify.NopLogger{}
	}

	return c
}

// Option configures the MySQL store.
type Option func(*Config)

// WithOutboxTable sets the task table name.
func WithOutboxTable(name string) Option {
	return func(c *Config) {
		c.OutboxTable = name
	}
}

// WithSubscriptionTable sets the subscription table name.
func WithSubscriptionTable(name string) Option {
	return func(c *Config) {
		c.SubscriptionTable = name
	}
}

// WithClock sets the time source for created_at and updated_at.
func WithClock(clock unlocknotify.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithLogger sets the logger for rows the store finalizes on its own.
func WithLogger(logger unlocknotify.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
