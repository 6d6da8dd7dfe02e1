// Package redis implements store.Store using Redis. Items are stored as
// JSON strings under "steptrack:item:<partition>#<sort>"; conditional
// inserts use SET NX with a native expiry for TTL-bearing items, and
// guarded updates run as a cjson Lua script so the check-and-merge is
// atomic.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/novaops/steptrack/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// keyPrefix namespaces all runtime items in the keyspace.
const keyPrefix = "steptrack:item:"

// updateScript atomically merges an attribute document into an existing
// item, optionally requiring a named field to be absent. Returns 1 on
// success, 0 when the guard fails or the item does not exist.
var updateScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local obj = cjson.decode(v)
if ARGV[2] ~= '' and obj[ARGV[2]] ~= nil then return 0 end
for k, val in pairs(cjson.decode(ARGV[1])) do obj[k] = val end
redis.call('SET', KEYS[1], cjson.encode(obj), 'KEEPTTL')
return 1
`)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the time source used to derive native expiries from
// expires_at attributes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store implements store.Store backed by Redis. The caller owns the
// client lifecycle; Close never closes it.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Redis-backed store.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func itemKey(key store.Key) string { return keyPrefix + key.String() }

// Migrate is a no-op for the Redis store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrapErr(err)
	}
	return nil
}

// Close is a no-op; the caller owns the client.
func (s *Store) Close() error { return nil }

// Insert writes the item with SET NX. Items carrying an expires_at epoch
// get a matching native expiry, so Redis itself sweeps stale locks and
// the NX condition sees them as absent.
func (s *Store) Insert(ctx context.Context, key store.Key, attrs store.Attributes) error {
	doc, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("redis: marshal item %s: %w", key, err)
	}

	args := redis.SetArgs{Mode: "NX"}
	if v, ok := attrs[store.TTLAttribute]; ok {
		if epoch, ok := epochSeconds(v); ok {
			args.ExpireAt = time.Unix(epoch, 0)
		}
	}

	err = s.client.SetArgs(ctx, itemKey(key), doc, args).Err()
	if errors.Is(err, redis.Nil) {
		// SET NX reports an unset key as a nil reply.
		return fmt.Errorf("redis: %w", store.ErrConditionFailed)
	}
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

// Update merges set into the item under the guard via the Lua script.
func (s *Store) Update(ctx context.Context, key store.Key, set store.Attributes, guard store.Guard) error {
	doc, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("redis: marshal update %s: %w", key, err)
	}

	guardField := ""
	if guard.Kind == store.GuardFieldAbsent {
		guardField = guard.Field
	}

	n, err := updateScript.Run(ctx, s.client, []string{itemKey(key)}, doc, guardField).Int()
	if err != nil {
		return wrapErr(err)
	}
	if n == 0 {
		return fmt.Errorf("redis: %w", store.ErrConditionFailed)
	}
	return nil
}

// Delete removes the item. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, key store.Key) error {
	if err := s.client.Del(ctx, itemKey(key)).Err(); err != nil {
		return wrapErr(err)
	}
	return nil
}

// epochSeconds coerces an attribute value into epoch seconds.
func epochSeconds(v any) (int64, bool) {
	switch ts := v.(type) {
	case int64:
		return ts, true
	case int:
		return int64(ts), true
	case float64:
		return int64(ts), true
	default:
		return 0, false
	}
}

// wrapErr normalizes client failures into *store.Error. Redis reports no
// structured error codes, so only the wrapped error carries detail.
func wrapErr(err error) error {
	return &store.Error{Err: fmt.Errorf("redis: %w", err)}
}
