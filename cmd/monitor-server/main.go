package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/factory-monitor/monitor-server/internal/api"
	"github.com/factory-monitor/monitor-server/internal/config"
	"github.com/factory-monitor/monitor-server/internal/ingest"
	"github.com/factory-monitor/monitor-server/internal/lifecycle"
	"github.com/factory-monitor/monitor-server/internal/query"
	"github.com/factory-monitor/monitor-server/internal/server"
	"github.com/factory-monitor/monitor-server/internal/stats"
	"github.com/factory-monitor/monitor-server/internal/storage"
	"github.com/factory-monitor/monitor-server/internal/transport"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/monitor-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the document store
	store, err := storage.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, storage.Collections{
		Devices:    cfg.Mongo.DevicesCollection,
		AllLogs:    cfg.Mongo.AllLogsCollection,
		Statistics: cfg.Mongo.StatisticsCollection,
	}, cfg.Mongo.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer store.Close(context.Background())

	log.Info().Str("database", cfg.Mongo.Database).Msg("Connected to MongoDB")

	// Load durable device lifecycle state
	gate, err := lifecycle.NewGate(cfg.State.File)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.State.File).Msg("Failed to load device states")
	}

	// Wire the pipeline: the MQTT client is both the message source and the
	// publisher the engines respond through.
	var mqttClient *transport.Client
	handler := server.NewHandler(
		server.NewClassifier(cfg.MQTT.Topics.QueryRequest, cfg.MQTT.Topics.StatisticsRequest, cfg.MQTT.Topics.Root),
		store,
		gate,
		ingest.NewBuilder(store, cfg.Mongo.AllLogsCollection),
		query.NewEngine(store, publisherFunc(func(topic string, payload []byte) error {
			return mqttClient.Publish(topic, payload)
		}), cfg.MQTT.Topics.QueryResponse),
		stats.NewEngine(store, publisherFunc(func(topic string, payload []byte) error {
			return mqttClient.Publish(topic, payload)
		}), cfg.Statistics.Window, cfg.MQTT.Topics.StatisticsResultPattern),
	)

	mqttClient = transport.NewClient(cfg.MQTT, handler)
	if err := mqttClient.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MQTT broker")
	}
	defer mqttClient.Disconnect()

	// Start the ops REST API
	apiServer := api.NewRESTServer(cfg, store)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Ops API server failed")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	cancel()

	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown ops API server gracefully")
	}

	wg.Wait()

	log.Info().Msg("Monitor server stopped")
}

// publisherFunc lets the engines publish through the MQTT client without a
// wiring cycle between handler construction and client construction.
type publisherFunc func(topic string, payload []byte) error

func (f publisherFunc) Publish(topic string, payload []byte) error { return f(topic, payload) }
