package steptrack

import (
	"context"
	"log/slog"
	"time"

	"github.com/novaops/steptrack/store"
)

// Runtime is the shared handle for runtime components: store backend,
// logger, clock, and configuration. It deliberately holds no other state —
// step invocations are stateless and all coordination goes through the
// store's conditional writes.
//
// Create one with New() and functional options, then build trackers and a
// runner on top of it (see the runner package).
type Runtime struct {
	config Config
	logger *slog.Logger
	store  store.Store
	clock  Clock
}

// New creates a new Runtime with the given options.
func New(opts ...Option) (*Runtime, error) {
	rt := &Runtime{
		config: DefaultConfig(),
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return nil, err
		}
	}
	if rt.store == nil {
		return nil, ErrNoStore
	}
	return rt, nil
}

// Config returns the runtime configuration.
func (rt *Runtime) Config() Config { return rt.config }

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Store returns the configured store backend.
func (rt *Runtime) Store() store.Store { return rt.store }

// Clock returns the runtime's time source.
func (rt *Runtime) Clock() Clock { return rt.clock }

// Migrate prepares the store backend schema.
func (rt *Runtime) Migrate(ctx context.Context) error { return rt.store.Migrate(ctx) }

// Ping checks store connectivity.
func (rt *Runtime) Ping(ctx context.Context) error { return rt.store.Ping(ctx) }

// Close releases the store backend.
func (rt *Runtime) Close() error { return rt.store.Close() }
