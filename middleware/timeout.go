package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/novaops/steptrack"
)

// Timeout returns middleware that enforces a per-step execution deadline.
// When d is positive, a context.WithTimeout wraps the handler call; on
// deadline the context is cancelled and the handler should return
// context.DeadlineExceeded, which the runner records as TIMED_OUT.
func Timeout(logger *slog.Logger, d time.Duration) Middleware {
	return func(ctx context.Context, env *steptrack.Envelope, next Handler) error {
		if d > 0 {
			logger.Debug("step timeout set",
				slog.String("state_name", env.Context.StateName),
				slog.Duration("timeout", d),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
