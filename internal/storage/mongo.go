package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/factory-monitor/monitor-server/internal/models"
)

// Collections names the fixed collections used by the store. Per-group log
// collections are addressed by name through InsertLog.
type Collections struct {
	Devices    string
	AllLogs    string
	Statistics string
}

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	colls  Collections
}

// NewMongoStore connects to MongoDB and prepares the aggregate log indexes.
// Every operation inherits the client-level timeout; no per-call deadline
// is set elsewhere.
func NewMongoStore(ctx context.Context, uri, database string, colls Collections, timeout time.Duration) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri).SetTimeout(timeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	s := &MongoStore{
		client: client,
		db:     client.Database(database),
		colls:  colls,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "device_id", Value: 1},
				{Key: "timestamp", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "log_code", Value: 1},
				{Key: "timestamp", Value: 1},
			},
		},
	}
	_, err := s.db.Collection(s.colls.AllLogs).Indexes().CreateMany(ctx, indexModels)
	return err
}

// GetDevice looks up a device by id in the registry collection.
func (s *MongoStore) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	err := s.db.Collection(s.colls.Devices).FindOne(ctx, bson.M{"_id": deviceID}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &device, nil
}

// ListDevices returns a page of registered devices and the total count.
func (s *MongoStore) ListDevices(ctx context.Context, limit, offset int) ([]*models.Device, int64, error) {
	coll := s.db.Collection(s.colls.Devices)

	total, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var devices []*models.Device
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, 0, err
	}

	return devices, total, nil
}

// Ping checks connectivity to the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
