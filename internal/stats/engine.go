// Package stats computes rolling speed statistics per device and manages
// persisted statistics snapshots.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/factory-monitor/monitor-server/internal/models"
	"github.com/factory-monitor/monitor-server/internal/storage"
)

// Publisher publishes a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Engine handles statistics requests. Results are published per device on
// the topic derived from the device id, never on the originating channel.
type Engine struct {
	store         storage.Store
	pub           Publisher
	window        time.Duration
	resultPattern string

	// Single-slot request dedup: only the most recent request id is
	// retained, so an id is forgotten as soon as a different one arrives.
	mu            sync.Mutex
	lastRequestID string

	now func() time.Time
}

// NewEngine creates a statistics engine. resultPattern must contain one %s
// verb for the device id.
func NewEngine(store storage.Store, pub Publisher, window time.Duration, resultPattern string) *Engine {
	return &Engine{
		store:         store,
		pub:           pub,
		window:        window,
		resultPattern: resultPattern,
		now:           time.Now,
	}
}

// HandleRequest processes one statistics request.
func (e *Engine) HandleRequest(ctx context.Context, payload []byte) {
	var req models.StatisticsRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Warn().Err(err).Msg("Dropping malformed statistics request")
		return
	}

	switch req.Action {
	case "", models.StatsActionCompute:
		e.handleCompute(ctx, req)
	case models.StatsActionSaveSnapshot:
		e.handleSaveSnapshot(ctx, req)
	case models.StatsActionGetSnapshot:
		e.handleGetSnapshot(ctx, req)
	default:
		log.Warn().Str("action", req.Action).Msg("Unknown statistics action")
	}
}

func (e *Engine) handleCompute(ctx context.Context, req models.StatisticsRequest) {
	if e.isDuplicate(req.RequestID) {
		log.Debug().Str("request_id", req.RequestID).Msg("Dropping duplicate statistics request")
		return
	}

	if req.DeviceID == "" {
		log.Warn().Msg("Statistics request without device_id")
		return
	}

	window := e.resolveWindow(req.TimeRange)

	if req.DeviceID == models.AllDevices {
		devices, err := e.store.SpeedReadingDevices(ctx, window)
		if err != nil {
			log.Error().Err(err).Msg("Failed to enumerate devices with speed readings")
			return
		}
		log.Info().Int("devices", len(devices)).Msg("Computing statistics for all devices")
		for _, deviceID := range devices {
			if err := e.computeAndPublish(ctx, deviceID, window, req.RequestID); err != nil {
				log.Error().Err(err).Str("device_id", deviceID).Msg("Statistics computation failed")
			}
		}
		return
	}

	if err := e.computeAndPublish(ctx, req.DeviceID, window, req.RequestID); err != nil {
		log.Error().Err(err).Str("device_id", req.DeviceID).Msg("Statistics computation failed")
		e.publishResult(models.StatisticsResult{
			DeviceID:  req.DeviceID,
			RequestID: req.RequestID,
			Error:     err.Error(),
		})
	}
}

// isDuplicate checks the request id against the single dedup slot and
// records it as the most recently seen.
func (e *Engine) isDuplicate(requestID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if requestID != "" && requestID == e.lastRequestID {
		return true
	}
	e.lastRequestID = requestID
	return false
}

// resolveWindow returns the explicit range or the trailing default window.
func (e *Engine) resolveWindow(tr *models.TimeRange) models.TimeRange {
	if tr != nil {
		return *tr
	}
	now := e.now()
	return models.TimeRange{
		Start: now.Add(-e.window).UnixMilli(),
		End:   now.UnixMilli(),
	}
}

func (e *Engine) computeAndPublish(ctx context.Context, deviceID string, window models.TimeRange, requestID string) error {
	avg, count, err := e.store.AverageSpeed(ctx, deviceID, window)
	if err != nil {
		return fmt.Errorf("average speed: %w", err)
	}

	average := int64(avg)
	if count == 0 {
		average = 0
	}

	var current int64
	reading, err := e.store.LatestSpeedReading(ctx, deviceID, window)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		current = 0
	case err != nil:
		return fmt.Errorf("latest speed reading: %w", err)
	default:
		// The store filter already restricts readings to integer-like
		// messages; anything unparseable still degrades to 0.
		if v, parseErr := strconv.ParseInt(reading, 10, 64); parseErr == nil {
			current = v
		}
	}

	e.publishResult(models.StatisticsResult{
		DeviceID:     deviceID,
		Average:      average,
		CurrentSpeed: current,
		RequestID:    requestID,
	})

	log.Info().Str("device_id", deviceID).Int64("average", average).Int64("current", current).
		Msg("Statistics computed")
	return nil
}

func (e *Engine) publishResult(result models.StatisticsResult) {
	e.publishTo(fmt.Sprintf(e.resultPattern, result.DeviceID), result)
}

func (e *Engine) publishTo(topic string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal statistics message")
		return
	}
	if err := e.pub.Publish(topic, data); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to publish statistics message")
	}
}
