package steptrack

import (
	"log/slog"
	"time"

	"github.com/novaops/steptrack/store"
)

// Option configures a Runtime.
type Option func(*Runtime) error

// WithStore sets the store backend. Required before any record operation.
func WithStore(s store.Store) Option {
	return func(rt *Runtime) error {
		if s == nil {
			return ErrNoStore
		}
		rt.store = s
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(rt *Runtime) error {
		rt.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) error {
		rt.logger = logger
		return nil
	}
}

// WithClock sets the time source. Defaults to time.Now. Tests inject
// fixed clocks for deterministic identity timestamps and durations.
func WithClock(clock Clock) Option {
	return func(rt *Runtime) error {
		rt.clock = clock
		return nil
	}
}

// WithLockTTL overrides the default idempotency-lock lifetime.
func WithLockTTL(ttl time.Duration) Option {
	return func(rt *Runtime) error {
		rt.config.LockTTL = ttl
		return nil
	}
}
