package database

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/charlesng35/fratpos/pkg/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// queryLogger forwards gorm diagnostics to zap. Failed statements and
// statements slower than slow are logged at warn, everything else at debug.
// Missing rows are an expected outcome and are not treated as failures.
type queryLogger struct {
	log  *zap.Logger
	slow time.Duration
}

func newQueryLogger(slow time.Duration) gormlogger.Interface {
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	return &queryLogger{log: logger.WithModule("database").WithOptions(zap.AddCallerSkip(3)), slow: slow}
}

func (l *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *queryLogger) Info(_ context.Context, msg string, args ...any) {
	l.log.Sugar().Infof(msg, args...)
}

func (l *queryLogger) Warn(_ context.Context, msg string, args ...any) {
	l.log.Sugar().Warnf(msg, args...)
}

func (l *queryLogger) Error(_ context.Context, msg string, args ...any) {
	l.log.Sugar().Errorf(msg, args...)
}

func (l *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := elapsed >= l.slow

	level := zapcore.DebugLevel
	if failed || slow {
		level = zapcore.WarnLevel
	}
	if !l.log.Core().Enabled(level) {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed)}
	switch {
	case failed:
		l.log.Warn("query failed", append(fields, zap.Error(err))...)
	case slow:
		l.log.Warn("slow query", fields...)
	default:
		l.log.Debug("query", fields...)
	}
}
