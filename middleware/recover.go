package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/novaops/steptrack"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace;
// the stack never reaches the persisted record or the fingerprint.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, env *steptrack.Envelope, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("step handler panicked",
					slog.String("state_name", env.Context.StateName),
					slog.String("correlation_id", env.Context.CorrelationID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in step %s: %v", env.Context.StateName, r)
			}
		}()
		return next(ctx)
	}
}
