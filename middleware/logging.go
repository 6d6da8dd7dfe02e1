package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/novaops/steptrack"
)

// Logging returns middleware that logs step start and completion. Every
// record carries the envelope context fields present at call time, so one
// workflow execution can be correlated across steps without a separate
// tracing system.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, env *steptrack.Envelope, next Handler) error {
		attrs := env.Context.LogAttrs()
		logger.LogAttrs(ctx, slog.LevelInfo, "task_start", attrs...)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		endAttrs := append(attrs, slog.Int64("duration_ms", elapsed.Milliseconds()))
		if err != nil {
			endAttrs = append(endAttrs, slog.String("error", err.Error()))
			logger.LogAttrs(ctx, slog.LevelError, "task_failed", endAttrs...)
		} else {
			logger.LogAttrs(ctx, slog.LevelInfo, "task_end", endAttrs...)
		}

		return err
	}
}
