package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/factory-monitor/monitor-server/internal/models"
)

// defaultQueryLimit bounds log queries that do not set a limit.
const defaultQueryLimit = 100

// InsertLog writes the record into the named collection. The ingest
// pipeline calls this once per destination; a failure on one destination
// does not affect the other.
func (s *MongoStore) InsertLog(ctx context.Context, collection string, record *models.LogRecord) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, record)
	return err
}

// QueryLogs runs a conjunctive filter over the aggregate log collection,
// newest first, bounded by the filter limit (default 100).
func (s *MongoStore) QueryLogs(ctx context.Context, filters LogFilters) ([]models.LogEntry, error) {
	filter := bson.M{}
	if filters.DeviceID != "" {
		filter["device_id"] = filters.DeviceID
	}
	if filters.LogLevel != "" {
		filter["log_level"] = filters.LogLevel
	}
	if filters.LogCode != "" {
		filter["log_code"] = filters.LogCode
	}
	if filters.Severity != "" {
		filter["severity"] = filters.Severity
	}
	if filters.TimeRange != nil {
		filter["timestamp"] = bson.M{
			"$gte": filters.TimeRange.Start,
			"$lte": filters.TimeRange.End,
		}
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.D{
			{Key: "_id", Value: 1},
			{Key: "device_id", Value: 1},
			{Key: "device_name", Value: 1},
			{Key: "log_level", Value: 1},
			{Key: "log_code", Value: 1},
			{Key: "severity", Value: 1},
			{Key: "message", Value: 1},
			{Key: "location", Value: 1},
			{Key: "timestamp", Value: 1},
		})

	cursor, err := s.db.Collection(s.colls.AllLogs).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []models.LogEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}
