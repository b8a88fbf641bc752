// Package zaplog adapts zap to the unlocknotify.Logger interface.
package zaplog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/velmie/unlocknotify"
)

var _ unlocknotify.Logger = (*Logger)(nil)

// Logger forwards key/value entries to a zap sugared logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a JSON production logger writing to stderr. Verbose enables debug entries.
func New(verbose bool) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return Wrap(logger), nil
}

// Wrap adapts an existing zap logger. A nil logger discards everything.
func Wrap(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Logger{sugar: logger.Sugar()}
}

// Debug implements unlocknotify.Logger.
func (l *Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }

// Info implements unlocknotify.Logger.
func (l *Logger) Info(msg string, args ...any) { l.sugar.Infow(msg, args...) }

// Warn implements unlocknotify.Logger.
func (l *Logger) Warn(msg string, args ...any) { l.sugar.Warnw(msg, args...) }

// Error implements unlocknotify.Logger.
func (l *Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// With implements unlocknotify.Logger.
func (l *Logger) With(args ...any) unlocknotify.Logger {
	return &Logger{sugar: l.sugar.With(args...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
