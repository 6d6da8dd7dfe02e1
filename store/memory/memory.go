// Package memory provides a fully in-memory store.Store. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/novaops/steptrack/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store. TTL semantics
// mirror a store-managed sweeper lazily: an item whose expires_at lies in
// the past is treated as absent by Insert.
type Store struct {
	mu    sync.RWMutex
	items map[store.Key]store.Attributes

	// now is the time source used for TTL checks.
	now func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock sets the time source used for TTL expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		items: make(map[store.Key]store.Attributes),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// expired reports whether attrs carries an expires_at in the past.
func (m *Store) expired(attrs store.Attributes) bool {
	v, ok := attrs[store.TTLAttribute]
	if !ok {
		return false
	}
	switch ts := v.(type) {
	case int64:
		return ts < m.now().Unix()
	case float64:
		return int64(ts) < m.now().Unix()
	default:
		return false
	}
}

// Insert writes a new item, rejecting with store.ErrConditionFailed when
// a live (non-expired) item already holds the key.
func (m *Store) Insert(_ context.Context, key store.Key, attrs store.Attributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.items[key]; ok && !m.expired(existing) {
		return store.ErrConditionFailed
	}
	m.items[key] = maps.Clone(attrs)
	return nil
}

// Update merges set into the item at key under the guard.
func (m *Store) Update(_ context.Context, key store.Key, set store.Attributes, guard store.Guard) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.items[key]
	if !ok {
		return store.ErrConditionFailed
	}
	if guard.Kind == store.GuardFieldAbsent {
		if _, present := existing[guard.Field]; present {
			return store.ErrConditionFailed
		}
	}
	merged := maps.Clone(existing)
	maps.Copy(merged, set)
	m.items[key] = merged
	return nil
}

// Delete removes the item at key. Absent keys are not an error.
func (m *Store) Delete(_ context.Context, key store.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Item returns a copy of the item at key for test assertions.
func (m *Store) Item(key store.Key) (store.Attributes, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	attrs, ok := m.items[key]
	if !ok {
		return nil, false
	}
	return maps.Clone(attrs), true
}

// Len returns the number of stored items.
func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
