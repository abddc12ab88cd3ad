// Package mongo implements replica.Replica on MongoDB, one document per
// ledger record in a single collection indexed by owner.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mmynk/physioledger/internal/replica"
	"github.com/mmynk/physioledger/internal/storage"
)

// DefaultCollection holds the replicated records.
const DefaultCollection = "ledger_records"

// compile-time interface check
var _ replica.Replica = (*Store)(nil)

// Store implements replica.Replica using the official MongoDB driver.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens a client for uri, verifies connectivity and ensures the
// indexes of the records collection in database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("replica/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("replica/mongo: ping: %w", err)
	}

	s := New(client, client.Database(database).Collection(DefaultCollection))
	if err := s.Migrate(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// New wraps an existing collection. client may be nil when the caller
// manages the connection.
func New(client *mongo.Client, coll *mongo.Collection) *Store {
	return &Store{client: client, coll: coll}
}

// Migrate creates the indexes used by ListByOwner.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "collection", Value: 1}, {Key: "entity_id", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("replica/mongo: migrate indexes: %w", err)
	}
	return nil
}

// Close disconnects the client opened by Connect.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Put upserts doc unless the stored version is newer. The filter only
// matches versions not newer than doc; when a newer one exists the upsert
// collides on _id and the write is reported stale.
func (s *Store) Put(ctx context.Context, doc replica.Document) error {
	m := toModel(doc)
	filter := bson.M{"_id": m.ID, "updated_at": bson.M{"$lte": m.UpdatedAt}}

	_, err := s.coll.ReplaceOne(ctx, filter, m, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return replica.ErrStale
		}
		return fmt.Errorf("replica/mongo: put %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, owner string, c storage.Collection, id string) (replica.Document, error) {
	var m recordModel
	err := s.coll.FindOne(ctx, bson.M{"_id": replica.DocumentKey(owner, c, id)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return replica.Document{}, replica.ErrNotFound
		}
		return replica.Document{}, fmt.Errorf("replica/mongo: get: %w", err)
	}
	return fromModel(m), nil
}

func (s *Store) Delete(ctx context.Context, owner string, c storage.Collection, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": replica.DocumentKey(owner, c, id)})
	if err != nil {
		return fmt.Errorf("replica/mongo: delete: %w", err)
	}
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, owner string) ([]replica.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "collection", Value: 1}, {Key: "entity_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("replica/mongo: list: %w", err)
	}

	var models []recordModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("replica/mongo: list: %w", err)
	}

	out := make([]replica.Document, len(models))
	for i, m := range models {
		out[i] = fromModel(m)
	}
	return out, nil
}

type recordModel struct {
	ID         string    `bson:"_id"`
	Owner      string    `bson:"owner"`
	Collection string    `bson:"collection"`
	EntityID   string    `bson:"entity_id"`
	Data       []byte    `bson:"data"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toModel(d replica.Document) recordModel {
	return recordModel{
		ID:         d.Key(),
		Owner:      d.Owner,
		Collection: string(d.Collection),
		EntityID:   d.ID,
		Data:       d.Data,
		// BSON dates carry milliseconds.
		UpdatedAt: d.UpdatedAt.UTC().Truncate(time.Millisecond),
	}
}

func fromModel(m recordModel) replica.Document {
	return replica.Document{
		Owner:      m.Owner,
		Collection: storage.Collection(m.Collection),
		ID:         m.EntityID,
		Data:       m.Data,
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
