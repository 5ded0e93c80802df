package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/oidc/entity"
)

// MongoRepo keeps one record type in a collection, keyed by its identifier.
type MongoRepo[T entity.Expiring] struct {
	coll *mongo.Collection
}

func NewMongoRepo[T entity.Expiring](db *mongo.Database, collection string) *MongoRepo[T] {
	return &MongoRepo[T]{coll: db.Collection(collection)}
}

// EnsureIndexes creates the expiry index used by ListExpired.
func (r *MongoRepo[T]) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create expires_at index on %s: %w", r.coll.Name(), err)
	}
	return nil
}

// Save inserts or replaces the record.
func (r *MongoRepo[T]) Save(ctx context.Context, rec T) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": rec.Identifier()}, rec, options.Replace().SetUpsert(true))
	return err
}

func (r *MongoRepo[T]) ListExpired(ctx context.Context, cutoff time.Time) ([]T, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"expires_at": bson.M{"$lte": cutoff}},
		options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepo[T]) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
