package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

// queryLogger routes GORM's trace output into the service logger. Only slow
// statements and unexpected errors are reported; record-not-found is normal
// control flow for repositories.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		logg = logger.Nop()
	}
	return &queryLogger{logg: logg, slow: slow}
}

func (l *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *queryLogger) Info(ctx context.Context, msg string, _ ...any) {
	l.logg.Debug(ctx, "gorm: "+msg)
}

func (l *queryLogger) Warn(ctx context.Context, msg string, _ ...any) {
	l.logg.Warn(ctx, "gorm: "+msg)
}

func (l *queryLogger) Error(ctx context.Context, msg string, _ ...any) {
	l.logg.Error(ctx, "gorm: "+msg, errors.New(msg))
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	isSlow := l.slow > 0 && elapsed >= l.slow
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	if !isSlow && !failed {
		return
	}

	sql, rows := fc()
	ctx = l.logg.WithFields(ctx, map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
	if failed {
		l.logg.Error(ctx, "query failed", err)
		return
	}
	l.logg.Warn(ctx, "slow query")
}
