package unlocknotify

// Logger is a leveled, key/value structured logger.
//
// Args alternate keys and values: logger.Warn("delivery failed", "task", id, "err", err).
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// With returns a logger that prepends args to every entry.
	With(args ...any) Logger
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// With implements Logger.
func (l NopLogger) With(...any) Logger { return l }
