package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/factory-monitor/monitor-server/internal/models"
)

// integerMessage matches messages that are non-negative integer readings.
const integerMessage = "^[0-9]+$"

// speedFilter selects qualifying speed readings: SPD log code, integer-like
// message, timestamp inside the inclusive window, optionally one device.
func speedFilter(deviceID string, window models.TimeRange) bson.M {
	filter := bson.M{
		"log_code": models.LogCodeSpeed,
		"message":  bson.Regex{Pattern: integerMessage},
		"timestamp": bson.M{
			"$gte": window.Start,
			"$lte": window.End,
		},
	}
	if deviceID != "" {
		filter["device_id"] = deviceID
	}
	return filter
}

// SpeedReadingDevices returns the distinct device ids with at least one
// qualifying speed reading inside the window.
func (s *MongoStore) SpeedReadingDevices(ctx context.Context, window models.TimeRange) ([]string, error) {
	res := s.db.Collection(s.colls.AllLogs).Distinct(ctx, "device_id", speedFilter("", window))
	if err := res.Err(); err != nil {
		return nil, err
	}

	var ids []string
	if err := res.Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// AverageSpeed computes the arithmetic mean of the device's qualifying
// readings. A device with no qualifying readings yields count 0.
func (s *MongoStore) AverageSpeed(ctx context.Context, deviceID string, window models.TimeRange) (float64, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: speedFilter(deviceID, window)}},
		{{Key: "$addFields", Value: bson.M{
			"speed_value": bson.M{"$toDouble": "$message"},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$speed_value"},
			"count":   bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.db.Collection(s.colls.AllLogs).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Average float64 `bson:"average"`
		Count   int64   `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, 0, err
	}
	if len(results) == 0 {
		return 0, 0, nil
	}

	return results[0].Average, results[0].Count, nil
}

// LatestSpeedReading returns the raw message of the most recent qualifying
// reading, or ErrNotFound if the device has none inside the window.
func (s *MongoStore) LatestSpeedReading(ctx context.Context, deviceID string, window models.TimeRange) (string, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	var doc struct {
		Message string `bson:"message"`
	}
	err := s.db.Collection(s.colls.AllLogs).FindOne(ctx, speedFilter(deviceID, window), opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrNotFound
		}
		return "", err
	}

	return doc.Message, nil
}

// SaveStatisticsSnapshot persists one computation batch.
func (s *MongoStore) SaveStatisticsSnapshot(ctx context.Context, snapshot *models.StatisticsSnapshot) error {
	_, err := s.db.Collection(s.colls.Statistics).InsertOne(ctx, snapshot)
	return err
}

// LatestStatisticsSnapshot returns the most recently created snapshot for
// the device, or ErrNotFound.
func (s *MongoStore) LatestStatisticsSnapshot(ctx context.Context, deviceID string) (*models.StatisticsSnapshot, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var snapshot models.StatisticsSnapshot
	err := s.db.Collection(s.colls.Statistics).FindOne(ctx, bson.M{"device_id": deviceID}, opts).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &snapshot, nil
}
