// Package query answers ad-hoc log queries received over the request topic.
package query

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/factory-monitor/monitor-server/internal/models"
	"github.com/factory-monitor/monitor-server/internal/storage"
)

// Publisher publishes a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// queryTypeLogs is the only supported query type.
const queryTypeLogs = "logs"

// Engine translates query requests into bounded, sorted reads against the
// aggregate log collection.
type Engine struct {
	store         storage.Store
	pub           Publisher
	responseTopic string
}

// NewEngine creates a query engine publishing to the given response topic.
func NewEngine(store storage.Store, pub Publisher, responseTopic string) *Engine {
	return &Engine{store: store, pub: pub, responseTopic: responseTopic}
}

// HandleRequest processes one query request. Validation and storage
// failures become structured error responses carrying the request id; an
// unparseable body is dropped with a diagnostic only.
func (e *Engine) HandleRequest(ctx context.Context, payload []byte) {
	var req models.QueryRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Warn().Err(err).Msg("Dropping malformed query request")
		return
	}

	if req.QueryType != queryTypeLogs {
		log.Warn().Str("query_id", req.QueryID).Str("query_type", req.QueryType).
			Msg("Unsupported query type")
		e.respondError(req.QueryID, "Unsupported query type")
		return
	}

	filters := storage.LogFilters{}
	if req.Filters != nil {
		filters = storage.LogFilters{
			DeviceID:  req.Filters.DeviceID,
			LogLevel:  req.Filters.LogLevel,
			LogCode:   req.Filters.LogCode,
			Severity:  req.Filters.Severity,
			TimeRange: req.Filters.TimeRange,
			Limit:     req.Filters.Limit,
		}
	}

	entries, err := e.store.QueryLogs(ctx, filters)
	if err != nil {
		log.Error().Err(err).Str("query_id", req.QueryID).Msg("Query execution failed")
		e.respondError(req.QueryID, err.Error())
		return
	}

	e.respond(models.QueryResponse{
		QueryID: req.QueryID,
		Status:  "success",
		Count:   len(entries),
		Data:    entries,
	})

	log.Info().Str("query_id", req.QueryID).Int("count", len(entries)).Msg("Query processed")
}

func (e *Engine) respondError(queryID, message string) {
	e.respond(models.QueryError{
		QueryID: queryID,
		Status:  "error",
		Error:   message,
	})
}

func (e *Engine) respond(response interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal query response")
		return
	}
	if err := e.pub.Publish(e.responseTopic, data); err != nil {
		log.Error().Err(err).Str("topic", e.responseTopic).Msg("Failed to publish query response")
	}
}
