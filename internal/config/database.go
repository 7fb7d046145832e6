package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// MongoDBClient wraps the connected client and database.
type MongoDBClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDBClient connects to MongoDB and disconnects on shutdown.
func NewMongoDBClient(lc fx.Lifecycle, s *Settings, logger *zap.Logger) (*MongoDBClient, *mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(s.MongoURI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, errors.Wrap(err, "ping MongoDB")
	}
	logger.Info("connected to MongoDB", zap.String("database", s.MongoDatabase))

	db := client.Database(s.MongoDatabase)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return EnsureIndexes(ctx, db, logger)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing MongoDB connection")
			return client.Disconnect(ctx)
		},
	})
	return &MongoDBClient{Client: client, Database: db}, db, nil
}

// indexSpecs lists the indexes the repositories rely on. The unique ones
// allow one attendance record per class occurrence, one document per routine
// version and one account per email.
var indexSpecs = map[string][]mongo.IndexModel{
	"attendance": {
		{
			Keys:    bson.D{{Key: "faculty_id", Value: 1}, {Key: "date", Value: 1}, {Key: "class_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "date", Value: -1}}},
	},
	"routines": {
		{
			Keys:    bson.D{{Key: "faculty_id", Value: 1}, {Key: "version", Value: -1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "faculty_id", Value: 1}, {Key: "is_latest", Value: 1}}},
	},
	"handovers": {
		{Keys: bson.D{{Key: "substitute_id", Value: 1}, {Key: "date_of_class", Value: 1}}},
		{Keys: bson.D{{Key: "faculty_id", Value: 1}, {Key: "date_of_class", Value: 1}}},
	},
	"notifications": {
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "send_at", Value: 1}}},
	},
	"faculty": {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
}

// EnsureIndexes creates the indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	for coll, models := range indexSpecs {
		names, err := db.Collection(coll).Indexes().CreateMany(ctx, models)
		if err != nil {
			return errors.Wrapf(err, "create indexes on %s", coll)
		}
		logger.Debug("indexes ready", zap.String("collection", coll), zap.Strings("indexes", names))
	}
	return nil
}
