package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository is the metadata-store boundary for media records.
type Repository interface {
	Upsert(ctx context.Context, rec *MediaRecord) error
	FindByName(ctx context.Context, name string) (*MediaRecord, error)
	ListNames(ctx context.Context) ([]string, error)
	List(ctx context.Context) ([]MediaRecord, error)
}

const mediaCollection = "media"

// MongoRepository persists media records in a MongoDB collection, keyed by
// canonical name.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{col: db.Collection(mediaCollection)}
}

// Upsert writes rec keyed by name: inserts when absent, overwrites when
// present (last write wins, no merge). A zero modified count means the
// document already matched and is not an error. The write is confirmed by a
// re-fetch; a missing document afterwards is surfaced as a warning only.
func (r *MongoRepository) Upsert(ctx context.Context, rec *MediaRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid media record %s: %w", rec.Name, err)
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"name": rec.Name},
		bson.M{"$set": rec},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", rec.Name, err)
	}

	switch {
	case res.UpsertedCount > 0:
		log.Info().Str("name", rec.Name).Msg("Inserted media record")
	case res.ModifiedCount > 0:
		log.Info().Str("name", rec.Name).Msg("Updated media record")
	default:
		log.Info().Str("name", rec.Name).Msg("Media record unchanged")
	}

	stored, err := r.FindByName(ctx, rec.Name)
	if err != nil || stored == nil {
		log.Warn().Err(err).Str("name", rec.Name).Msg("Post-write confirmation fetch returned nothing")
		return nil
	}
	log.Debug().Str("name", stored.Name).Time("dateTime", stored.DateTime).Msg("Confirmed persisted record")
	return nil
}

// FindByName returns the record with the given name, or ErrRecordNotFound.
func (r *MongoRepository) FindByName(ctx context.Context, name string) (*MediaRecord, error) {
	var rec MediaRecord
	err := r.col.FindOne(ctx, bson.M{"name": name}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	return &rec, nil
}

// ListNames returns every canonical name in the store.
func (r *MongoRepository) ListNames(ctx context.Context) ([]string, error) {
	raw, err := r.col.Distinct(ctx, "name", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list record names: %w", err)
	}

	names := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

// List returns all records, newest first.
func (r *MongoRepository) List(ctx context.Context) ([]MediaRecord, error) {
	cur, err := r.col.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "dateTime", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer cur.Close(ctx)

	var records []MediaRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}
