// Package ingest composes canonical log documents and routes them to the
// per-group and aggregate log collections.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/factory-monitor/monitor-server/internal/models"
	"github.com/factory-monitor/monitor-server/internal/severity"
	"github.com/factory-monitor/monitor-server/internal/storage"
	"github.com/factory-monitor/monitor-server/internal/ulid"
)

// sentinel fills device display attributes missing from the registry.
const sentinel = "N/A"

// defaultLogGroup is recorded for devices without a group assignment. Such
// devices get no per-group collection write.
const defaultLogGroup = "unknown_group"

// Builder writes log records through the store.
type Builder struct {
	store   storage.Store
	allLogs string
}

// NewBuilder creates a builder targeting the aggregate collection name.
func NewBuilder(store storage.Store, allLogsCollection string) *Builder {
	return &Builder{store: store, allLogs: allLogsCollection}
}

// BuildAndStore composes the immutable log record and writes it to the
// device's group collection and the aggregate collection. The two writes
// are independent: a failure on either is logged and the other is still
// attempted. Nothing is propagated to the caller.
func (b *Builder) BuildAndStore(ctx context.Context, deviceID, logLevel string, payload models.LogEventPayload, topic string, device *models.Device) {
	now := time.Now()
	ingestionTime := now.UnixMilli()

	logCode := payload.LogCode
	if logCode == "" {
		logCode = "UNKNOWN"
	}

	deviceCode := device.Code
	if deviceCode == "" {
		deviceCode = "NA"
	}

	timestamp := payload.Timestamp
	if timestamp == 0 {
		timestamp = ingestionTime
	}

	logGroup := device.LogGroup
	if logGroup == "" {
		logGroup = defaultLogGroup
	}

	record := &models.LogRecord{
		ID:            deviceCode + "-" + logCode + "-" + ulid.Generate(),
		LogGroup:      logGroup,
		LogStream:     deviceID + "/" + now.UTC().Format("2006/01/02") + "/" + logLevel,
		DeviceID:      deviceID,
		DeviceName:    orSentinel(device.Name),
		DeviceType:    orSentinel(device.Type),
		Location:      orSentinel(device.Location),
		LogCode:       logCode,
		Severity:      string(severity.Evaluate(logCode, payload.Metadata, device.Thresholds)),
		LogLevel:      logLevel,
		Message:       payload.Message,
		Metadata:      payload.Metadata,
		Timestamp:     timestamp,
		IngestionTime: ingestionTime,
		Topic:         topic,
	}

	log.Debug().
		Str("id", record.ID).
		Str("device_id", deviceID).
		Str("log_code", logCode).
		Str("severity", record.Severity).
		Str("log_stream", record.LogStream).
		Msg("Saving log document")

	if device.LogGroup != "" {
		collection := GroupCollection(device.LogGroup)
		if err := b.store.InsertLog(ctx, collection, record); err != nil {
			log.Error().Err(err).Str("collection", collection).Str("id", record.ID).
				Msg("Failed to save log to group collection")
		}
	}

	if err := b.store.InsertLog(ctx, b.allLogs, record); err != nil {
		log.Error().Err(err).Str("collection", b.allLogs).Str("id", record.ID).
			Msg("Failed to save log to aggregate collection")
	}
}

// GroupCollection derives the per-group collection name: path separators
// and hyphens normalize to underscores, with no leading underscore.
func GroupCollection(logGroup string) string {
	group := strings.ReplaceAll(logGroup, "/", "_")
	group = strings.ReplaceAll(group, "-", "_")
	group = strings.TrimPrefix(group, "_")
	return "logs_" + group
}

func orSentinel(s string) string {
	if s == "" {
		return sentinel
	}
	return s
}
