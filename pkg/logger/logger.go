// Package logger holds the process-wide zap logger. Packages obtain child
// loggers through WithModule so that every entry names its origin.
package logger

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// Option adjusts the zap configuration used by Init.
type Option func(*zap.Config)

// WithEncoding selects "json" or "console" output. Console output uses the
// development encoder with coloured levels.
func WithEncoding(encoding string) Option {
	return func(cfg *zap.Config) {
		switch encoding {
		case "console":
			cfg.Encoding = encoding
			cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		case "json":
			cfg.Encoding = encoding
		}
	}
}

// Init builds a production logger at level and installs it globally.
// Unknown levels fall back to info.
func Init(level string, opts ...Option) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	for _, opt := range opts {
		opt(&cfg)
	}

	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("logger: build: %w", err)
	}
	Replace(built)
	return nil
}

// Replace installs l as the global logger; nil installs a no-op logger.
func Replace(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

func Logger() *zap.Logger {
	return current.Load()
}

// Sync flushes buffered entries.
func Sync() error {
	return Logger().Sync()
}

func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}
