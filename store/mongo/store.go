// Package mongo implements store.Store on MongoDB. Items live in one
// collection keyed by a "<partition>#<sort>" _id; unique-index rejection
// provides the conditional insert and filtered UpdateOne the guarded
// update.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/novaops/steptrack/store"
)

// colItems is the collection holding all runtime records.
const colItems = "steptrack_items"

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by a MongoDB database. The caller
// owns the client lifecycle; Close never disconnects it.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the time source used for TTL expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a MongoDB-backed store over the given database.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) items() *mongod.Collection { return s.db.Collection(colItems) }

func docID(key store.Key) string { return key.String() }

// Migrate is a no-op: _id carries the composite key and MongoDB indexes
// it natively.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return wrapErr(err)
	}
	return nil
}

// Close is a no-op; the caller owns the client.
func (s *Store) Close() error { return nil }

// Insert writes the item, rejecting when a live document already holds
// the key. A document whose attrs.expires_at epoch lies in the past
// counts as absent and is replaced, mirroring store-side TTL sweeping.
func (s *Store) Insert(ctx context.Context, key store.Key, attrs store.Attributes) error {
	doc := bson.M{
		"_id":           docID(key),
		"partition_key": key.Partition,
		"sort_key":      key.Sort,
		"attrs":         bson.M(attrs),
	}

	_, err := s.items().InsertOne(ctx, doc)
	if err == nil {
		return nil
	}
	if !mongod.IsDuplicateKeyError(err) {
		return wrapErr(err)
	}

	// Key taken: the write may still win if the holder has expired.
	res, replErr := s.items().ReplaceOne(ctx, bson.M{
		"_id":              docID(key),
		"attrs.expires_at": bson.M{"$lt": s.now().Unix()},
	}, doc)
	if replErr != nil {
		return wrapErr(replErr)
	}
	if res.ModifiedCount == 0 {
		return fmt.Errorf("mongo: %w", store.ErrConditionFailed)
	}
	return nil
}

// Update merges set into the item's attrs under the guard.
func (s *Store) Update(ctx context.Context, key store.Key, set store.Attributes, guard store.Guard) error {
	filter := bson.M{"_id": docID(key)}
	if guard.Kind == store.GuardFieldAbsent {
		filter["attrs."+guard.Field] = bson.M{"$exists": false}
	}

	setDoc := bson.M{}
	for k, v := range set {
		setDoc["attrs."+k] = v
	}

	res, err := s.items().UpdateOne(ctx, filter, bson.M{"$set": setDoc})
	if err != nil {
		return wrapErr(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongo: %w", store.ErrConditionFailed)
	}
	return nil
}

// Delete removes the item. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, key store.Key) error {
	if _, err := s.items().DeleteOne(ctx, bson.M{"_id": docID(key)}); err != nil {
		return wrapErr(err)
	}
	return nil
}

// wrapErr normalizes driver failures into *store.Error carrying the
// server error name for classification.
func wrapErr(err error) error {
	serr := &store.Error{Err: fmt.Errorf("mongo: %w", err)}
	var cmdErr mongod.CommandError
	if errors.As(err, &cmdErr) {
		serr.Code = cmdErr.Name
	}
	return serr
}
