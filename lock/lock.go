// Package lock implements short-lived idempotency locks over the store's
// conditional writes. A lock prevents duplicate concurrent execution of
// the same logical unit of work; it is first-writer-wins, never renewed,
// and valid only until its TTL or explicit release. The guarantee is "at
// most one concurrent holder assuming the store enforces the condition
// and TTL", not strict mutual exclusion across clock skew.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/novaops/steptrack"
	"github.com/novaops/steptrack/store"
)

// lockSort is the fixed sort key for lock items; the partition key alone
// carries the caller-supplied lock key.
const lockSort = "LOCK"

func lockKey(key string) store.Key {
	return store.Key{Partition: "LOCK#" + key, Sort: lockSort}
}

// Locker acquires and releases idempotency locks.
type Locker struct {
	store  store.Store
	clock  steptrack.Clock
	logger *slog.Logger
}

// Option configures a Locker.
type Option func(*Locker)

// WithClock sets the time source.
func WithClock(clock steptrack.Clock) Option {
	return func(l *Locker) { l.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locker) { l.logger = logger }
}

// New creates a Locker over the given store.
func New(s store.Store, opts ...Option) *Locker {
	l := &Locker{store: s, clock: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire attempts to take the lock for key, returning true on success and
// false when the lock is already held. Any other store error propagates
// unmodified for the caller to classify. The lock item carries
// expires_at = now + ttl (epoch seconds) for store-side TTL sweeping; this
// runtime does not sweep expired locks itself.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := l.clock().UTC()
	attrs := store.Attributes{
		"entity_type":      "LOCK",
		"lock_key":         key,
		"created_at":       steptrack.Timestamp(now),
		store.TTLAttribute: now.Unix() + int64(ttl.Seconds()),
	}

	err := l.store.Insert(ctx, lockKey(key), attrs)
	if errors.Is(err, store.ErrConditionFailed) {
		l.logger.Debug("lock already held", slog.String("lock_key", key))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", key, err)
	}

	l.logger.Debug("lock acquired",
		slog.String("lock_key", key),
		slog.Int64("ttl_seconds", int64(ttl.Seconds())),
	)
	return true, nil
}

// Release deletes the lock for key. Releasing an absent lock is not an
// error; the delete is unconditional and idempotent.
func (l *Locker) Release(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, lockKey(key)); err != nil {
		return fmt.Errorf("release lock %q: %w", key, err)
	}
	l.logger.Debug("lock released", slog.String("lock_key", key))
	return nil
}
