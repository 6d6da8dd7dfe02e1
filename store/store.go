// Package store defines the conditional key-value contract the runtime
// persists through. Every record lives under a composite (partition, sort)
// key with arbitrary typed attributes; conditional writes are the only
// synchronization primitive the runtime uses. Backends: DynamoDB,
// Postgres, Redis, MongoDB, SQLite, and Memory.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrConditionFailed is returned when a conditional write is rejected by
// the store: the key already exists on Insert, or the Guard does not hold
// on Update. Callers map it onto their own conflict semantics.
var ErrConditionFailed = errors.New("store: condition failed")

// Key is the composite identity of one item.
type Key struct {
	Partition string
	Sort      string
}

func (k Key) String() string { return k.Partition + "#" + k.Sort }

// Attributes is the open attribute map persisted with an item. Identity
// and control fields that the runtime inspects are strongly typed by the
// callers; extras pass through opaquely. Values must be JSON-serializable.
type Attributes map[string]any

// GuardKind selects the condition applied to an Update.
type GuardKind int

const (
	// GuardExists requires the item to already exist.
	GuardExists GuardKind = iota
	// GuardFieldAbsent requires the item to exist and the named field to
	// be unset. This is the single-terminal-transition guard.
	GuardFieldAbsent
)

// Guard is the optimistic-concurrency condition for an Update.
type Guard struct {
	Kind  GuardKind
	Field string
}

// IfExists returns a Guard requiring the item to exist.
func IfExists() Guard { return Guard{Kind: GuardExists} }

// IfFieldAbsent returns a Guard requiring the item to exist with the named
// field unset.
func IfFieldAbsent(field string) Guard {
	return Guard{Kind: GuardFieldAbsent, Field: field}
}

// TTLAttribute is the attribute name backends treat as an expiry hint:
// an epoch-seconds value after which the item may be dropped by
// store-side sweeping. Expiry is advisory — the runtime never assumes an
// expired item has actually been removed, only that an Insert over an
// expired item must succeed.
const TTLAttribute = "expires_at"

// Store is the persistence contract for all runtime records. The runtime
// needs no range queries, scans, or secondary indexes for correctness;
// those belong to out-of-scope collaborators reading the same table.
type Store interface {
	// Insert writes a new item, failing with ErrConditionFailed when the
	// key already exists (first writer wins).
	Insert(ctx context.Context, key Key, attrs Attributes) error

	// Update merges set into an existing item under the given guard,
	// failing with ErrConditionFailed when the guard does not hold.
	Update(ctx context.Context, key Key, set Attributes, guard Guard) error

	// Delete removes an item unconditionally. Deleting an absent key is
	// not an error.
	Delete(ctx context.Context, key Key) error

	// Migrate prepares backend schema. No-op where not applicable.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Error normalizes a backend failure that is not a condition rejection.
// Code carries the backend's error code (AWS error code, Postgres
// SQLSTATE, ...) and Status the transport status when one exists. The
// classify package keys its retryable/terminal decision off these fields.
type Error struct {
	Code   string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("store: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the backend error code, matching the aws/smithy-go
// APIError shape so AWS errors can be inspected uniformly.
func (e *Error) ErrorCode() string { return e.Code }
