package storage

import (
	"context"
	"errors"

	"github.com/factory-monitor/monitor-server/internal/models"
)

// Common errors
var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidData = errors.New("invalid data")
)

// LogFilters narrows QueryLogs. Zero-valued fields are not applied; the
// time range is inclusive on both bounds.
type LogFilters struct {
	DeviceID  string
	LogLevel  string
	LogCode   string
	Severity  string
	TimeRange *models.TimeRange
	Limit     int
}

// Store defines the storage interface.
type Store interface {
	// Device registry (externally owned, read-only here)
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	ListDevices(ctx context.Context, limit, offset int) ([]*models.Device, int64, error)

	// Log methods
	InsertLog(ctx context.Context, collection string, record *models.LogRecord) error
	QueryLogs(ctx context.Context, filters LogFilters) ([]models.LogEntry, error)

	// Speed statistics methods
	SpeedReadingDevices(ctx context.Context, window models.TimeRange) ([]string, error)
	AverageSpeed(ctx context.Context, deviceID string, window models.TimeRange) (avg float64, count int64, err error)
	LatestSpeedReading(ctx context.Context, deviceID string, window models.TimeRange) (string, error)

	// Statistics snapshot methods
	SaveStatisticsSnapshot(ctx context.Context, snapshot *models.StatisticsSnapshot) error
	LatestStatisticsSnapshot(ctx context.Context, deviceID string) (*models.StatisticsSnapshot, error)

	// Ping checks connectivity
	Ping(ctx context.Context) error

	// Close the store
	Close(ctx context.Context) error
}
