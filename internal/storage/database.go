package storage

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cityhound/cityhound/internal/config"
	"github.com/cityhound/cityhound/internal/types"
)

// MongoStorage upserts events keyed by their deterministic ID, so harvesting
// the same venue twice updates listings in place instead of duplicating them.
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

func NewMongoStorage(cfg config.StorageConfig, logger *slog.Logger) (*MongoStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: err}
	}

	s := &MongoStorage{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger.With("component", "storage", "backend", "mongodb"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureIndexes backs the two queries the event API serves: upcoming events
// per city, and per-venue listings.
func (s *MongoStorage) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "venue.city", Value: 1}, {Key: "start_date", Value: 1}}},
		{Keys: bson.D{{Key: "venue.name", Value: 1}, {Key: "start_date", Value: 1}}},
	})
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: err}
	}
	return nil
}

func (s *MongoStorage) Save(ctx context.Context, events []types.NormalizedEvent) error {
	if len(events) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(events))
	for _, e := range events {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": e.ID}).
			SetReplacement(e).
			SetUpsert(true))
	}

	result, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: err}
	}

	s.logger.Debug("upserted events",
		"count", len(events),
		"inserted", result.UpsertedCount,
		"updated", result.ModifiedCount,
	)
	return nil
}

func (s *MongoStorage) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: err}
	}
	return nil
}
