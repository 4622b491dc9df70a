// Package server dispatches inbound MQTT messages to the ingestion
// pipeline and the query and statistics engines.
package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/factory-monitor/monitor-server/internal/ingest"
	"github.com/factory-monitor/monitor-server/internal/lifecycle"
	"github.com/factory-monitor/monitor-server/internal/models"
	"github.com/factory-monitor/monitor-server/internal/query"
	"github.com/factory-monitor/monitor-server/internal/stats"
	"github.com/factory-monitor/monitor-server/internal/storage"
)

// Handler processes every inbound message, one at a time, in arrival
// order. No failure here is fatal: events that cannot be processed are
// dropped with a diagnostic and the loop continues.
type Handler struct {
	classifier *Classifier
	store      storage.Store
	gate       *lifecycle.Gate
	builder    *ingest.Builder
	query      *query.Engine
	stats      *stats.Engine
}

// NewHandler wires the dispatcher.
func NewHandler(classifier *Classifier, store storage.Store, gate *lifecycle.Gate, builder *ingest.Builder, queryEngine *query.Engine, statsEngine *stats.Engine) *Handler {
	return &Handler{
		classifier: classifier,
		store:      store,
		gate:       gate,
		builder:    builder,
		query:      queryEngine,
		stats:      statsEngine,
	}
}

// OnConnected is invoked after every successful broker (re)connect.
func (h *Handler) OnConnected() {
	log.Info().Msg("MQTT connected, waiting for messages")
}

// OnConnectionLost is invoked when the broker connection drops. Reconnect
// and resubscription are handled by the transport.
func (h *Handler) OnConnectionLost(err error) {}

// OnMessage classifies and dispatches one inbound message.
func (h *Handler) OnMessage(topic string, payload []byte) {
	ctx := context.Background()

	cls := h.classifier.Classify(topic)
	switch cls.Kind {
	case KindQuery:
		h.query.HandleRequest(ctx, payload)
	case KindStatistics:
		h.stats.HandleRequest(ctx, payload)
	case KindDevice, KindLog:
		h.handleDeviceEvent(ctx, cls, topic, payload)
	default:
		// Not ours; other consumers share the broker.
	}
}

func (h *Handler) handleDeviceEvent(ctx context.Context, cls Classification, topic string, payload []byte) {
	var event models.LogEventPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Debug().Err(err).Str("topic", topic).Msg("Dropping malformed event payload")
		return
	}

	// Control codes are evaluated before the shutdown gate so a device
	// can resurrect itself with a start signal.
	switch event.LogCode {
	case models.LogCodeShutdown:
		// Only the device itself may request its shutdown.
		if event.Message == cls.DeviceID {
			h.gate.Shutdown(cls.DeviceID)
		} else {
			log.Debug().Str("device_id", cls.DeviceID).Str("message", event.Message).
				Msg("Ignoring shutdown event without self-attestation")
		}
		return
	case models.LogCodeStart:
		h.gate.Activate(cls.DeviceID)
		// Start events continue through the pipeline and get stored.
	}

	if h.gate.IsShutdown(cls.DeviceID) {
		return
	}

	if cls.Kind != KindLog {
		return
	}

	device, err := h.store.GetDevice(ctx, cls.DeviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn().Str("device_id", cls.DeviceID).Msg("Device not found in registry, skipping event")
		} else {
			log.Error().Err(err).Str("device_id", cls.DeviceID).Msg("Device lookup failed, skipping event")
		}
		return
	}

	h.builder.BuildAndStore(ctx, cls.DeviceID, cls.LogLevel, event, topic, device)
}
