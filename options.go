package unlocknotify

const (
	// DefaultMaxAttempts is the delivery attempt budget of a task.
	DefaultMaxAttempts = 5
	// DefaultBatchSize bounds the number of tasks a single drain pass selects.
	DefaultBatchSize = 500
)

// DispatcherConfig defines how the Dispatcher discovers and drains tasks.
type DispatcherConfig struct {
	MaxAttempts  int
	BatchSize    int
	Clock        Clock
	Logger       Logger
	Metrics      Metrics
	Backoff      Backoff
	Renderer     Renderer
	ErrorHandler FailureHandler
}

func (c DispatcherConfig) withDefaults() (DispatcherConfig, error) {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	if c.Backoff == nil {
		c.Backoff = DefaultBackoff
	}
	if c.Renderer == nil {
		renderer, err := NewTemplateRenderer("")
		if err != nil {
			return c, err
		}
		c.Renderer = renderer
	}

	return c, nil
}

// Option configures Dispatcher behavior.
type Option func(*DispatcherConfig)

// WithMaxAttempts sets the attempt budget after which a task becomes terminally failed.
func WithMaxAttempts(n int) Option {
	return func(c *DispatcherConfig) {
		c.MaxAttempts = n
	}
}

// WithBatchSize sets the maximum number of tasks selected by one drain pass.
func WithBatchSize(size int) Option {
	return func(c *DispatcherConfig) {
		c.BatchSize = size
	}
}

// WithClock sets the clock a run reads "now" from.
func WithClock(clock Clock) Option {
	return func(c *DispatcherConfig) {
		c.Clock = clock
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger Logger) Option {
	return func(c *DispatcherConfig) {
		c.Logger = logger
	}
}

// WithMetrics sets the dispatcher metrics recorder.
func WithMetrics(metrics Metrics) Option {
	return func(c *DispatcherConfig) {
		c.Metrics = metrics
	}
}

// WithBackoff sets the retry delay policy.
func WithBackoff(backoff Backoff) Option {
	return func(c *DispatcherConfig) {
		c.Backoff = backoff
	}
}

// WithRenderer sets the message renderer.
func WithRenderer(renderer Renderer) Option {
	return func(c *DispatcherConfig) {
		c.Renderer = renderer
	}
}

// WithErrorHandler registers a callback for delivery failures.
func WithErrorHandler(handler FailureHandler) Option {
	return func(c *DispatcherConfig) {
		c.ErrorHandler = handler
	}
}
