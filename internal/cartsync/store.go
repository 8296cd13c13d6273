// Package cartsync keeps per-owner cart snapshots in MongoDB. It is the
// remote side of cart.Accessor.SyncCart.
package cartsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Skotchmaster/storefront/internal/cart"
)

const ColCartSnapshots = "cart_snapshots"

// ErrStale is returned by Push when the stored snapshot has a higher version.
var ErrStale = errors.New("cartsync: stored snapshot is newer")

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	ttl    time.Duration
}

// NewStore connects and pings. Snapshots not written for ttl are expired by
// MongoDB; zero keeps them forever.
func NewStore(ctx context.Context, uri, dbName string, ttl time.Duration) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cartsync: connect failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("cartsync: ping failed: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName), ttl: ttl}
	if err := s.ensureIndexes(ctx); err != nil {
		slog.Warn("cartsync_ensure_indexes_failed", "error", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) col() *mongo.Collection {
	return s.db.Collection(ColCartSnapshots)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "captured_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(s.ttl.Seconds())),
	}
	if _, err := s.col().Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("create index on %s: %w", ColCartSnapshots, err)
	}
	return nil
}

// Pull returns (nil, nil) when the owner has no snapshot.
func (s *Store) Pull(ctx context.Context, ownerKey string) (*cart.Snapshot, error) {
	var snap cart.Snapshot
	err := s.col().FindOne(ctx, bson.D{{Key: "_id", Value: ownerKey}}).Decode(&snap)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapError(err)
	}
	return &snap, nil
}

// Push stores snap unless a newer version is already there.
func (s *Store) Push(ctx context.Context, snap cart.Snapshot) error {
	filter := bson.D{
		{Key: "_id", Value: snap.OwnerKey},
		{Key: "version", Value: bson.D{{Key: "$lte", Value: snap.Version}}},
	}
	_, err := s.col().ReplaceOne(ctx, filter, snap, options.Replace().SetUpsert(true))
	if err != nil {
		// The filter missed an existing document, so the upsert collided on _id.
		if mongo.IsDuplicateKeyError(err) {
			return ErrStale
		}
		return wrapError(err)
	}
	return nil
}

// Delete drops the owner's snapshot. Missing snapshots are not an error.
func (s *Store) Delete(ctx context.Context, ownerKey string) error {
	_, err := s.col().DeleteOne(ctx, bson.D{{Key: "_id", Value: ownerKey}})
	return wrapError(err)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("cartsync: %w", err)
}
