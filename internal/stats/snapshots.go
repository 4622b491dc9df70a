package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/factory-monitor/monitor-server/internal/models"
	"github.com/factory-monitor/monitor-server/internal/storage"
	"github.com/factory-monitor/monitor-server/internal/ulid"
)

// snapshotResponse is published for get_snapshot requests.
type snapshotResponse struct {
	DeviceID  string                     `json:"device_id"`
	Status    string                     `json:"status"`
	RequestID string                     `json:"request_id,omitempty"`
	Snapshot  *models.StatisticsSnapshot `json:"snapshot,omitempty"`
	Message   string                     `json:"message,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// handleSaveSnapshot persists a caller-supplied statistics payload. Field
// extraction is permissive: anything missing or malformed defaults to zero
// so a partial payload never fails the whole save.
func (e *Engine) handleSaveSnapshot(ctx context.Context, req models.StatisticsRequest) {
	if req.DeviceID == "" {
		log.Warn().Msg("Snapshot save request without device_id")
		return
	}

	snapshot := &models.StatisticsSnapshot{
		ID:       ulid.Generate(),
		DeviceID: req.DeviceID,
		LogCode:  req.LogCode,
		Statistics: models.StatisticsPayload{
			Total:       asInt64(req.Statistics["total"]),
			Pass:        asInt64(req.Statistics["pass"]),
			Fail:        asInt64(req.Statistics["fail"]),
			FailureRate: asFloat64(req.Statistics["failure_rate"]),
		},
		TimeRange: e.resolveWindow(req.TimeRange),
		CreatedAt: e.now().UnixMilli(),
	}

	if err := e.store.SaveStatisticsSnapshot(ctx, snapshot); err != nil {
		log.Error().Err(err).Str("device_id", req.DeviceID).Msg("Failed to save statistics snapshot")
		return
	}

	log.Info().Str("device_id", req.DeviceID).Str("id", snapshot.ID).Msg("Statistics snapshot saved")
}

// handleGetSnapshot publishes the latest snapshot for the device to the
// requested response channel. Absence is an explicit not-found result, not
// an error.
func (e *Engine) handleGetSnapshot(ctx context.Context, req models.StatisticsRequest) {
	if req.DeviceID == "" {
		log.Warn().Msg("Snapshot get request without device_id")
		return
	}

	topic := req.ResponseTopic
	if topic == "" {
		topic = fmt.Sprintf(e.resultPattern, req.DeviceID)
	}

	snapshot, err := e.store.LatestStatisticsSnapshot(ctx, req.DeviceID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		e.publishTo(topic, snapshotResponse{
			DeviceID:  req.DeviceID,
			Status:    "not_found",
			RequestID: req.RequestID,
			Message:   fmt.Sprintf("No statistics found for device %s", req.DeviceID),
		})
	case err != nil:
		log.Error().Err(err).Str("device_id", req.DeviceID).Msg("Failed to load statistics snapshot")
		e.publishTo(topic, snapshotResponse{
			DeviceID:  req.DeviceID,
			Status:    "error",
			RequestID: req.RequestID,
			Error:     err.Error(),
		})
	default:
		e.publishTo(topic, snapshotResponse{
			DeviceID:  req.DeviceID,
			Status:    "success",
			RequestID: req.RequestID,
			Snapshot:  snapshot,
		})
	}
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

func asFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
