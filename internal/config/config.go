package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	API        APIConfig        `yaml:"api"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Mongo      MongoConfig      `yaml:"mongo"`
	State      StateConfig      `yaml:"state"`
	Statistics StatisticsConfig `yaml:"statistics"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig represents server identity
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents the ops REST API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TopicsConfig represents the consumed and published MQTT topics
type TopicsConfig struct {
	Root                    string `yaml:"root"`
	QueryRequest            string `yaml:"query_request"`
	QueryResponse           string `yaml:"query_response"`
	StatisticsRequest       string `yaml:"statistics_request"`
	StatisticsResultPattern string `yaml:"statistics_result_pattern"`
}

// MQTTConfig represents broker connection configuration
type MQTTConfig struct {
	BrokerURL            string        `yaml:"broker_url"`
	ClientIDPrefix       string        `yaml:"client_id_prefix"`
	QoS                  byte          `yaml:"qos"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	KeepAlive            time.Duration `yaml:"keep_alive"`
	ReconnectMinInterval time.Duration `yaml:"reconnect_min_interval"`
	ReconnectMaxInterval time.Duration `yaml:"reconnect_max_interval"`
	Topics               TopicsConfig  `yaml:"topics"`
}

// MongoConfig represents document store configuration
type MongoConfig struct {
	URI                  string        `yaml:"uri"`
	Database             string        `yaml:"database"`
	DevicesCollection    string        `yaml:"devices_collection"`
	AllLogsCollection    string        `yaml:"all_logs_collection"`
	StatisticsCollection string        `yaml:"statistics_collection"`
	Timeout              time.Duration `yaml:"timeout"`
}

// StateConfig represents the durable device-lifecycle state
type StateConfig struct {
	File string `yaml:"file"`
}

// StatisticsConfig represents statistics computation defaults
type StatisticsConfig struct {
	Window time.Duration `yaml:"window"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration file and applies environment overrides and
// defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if broker := os.Getenv("MQTT_BROKER_URL"); broker != "" {
		c.MQTT.BrokerURL = broker
	}

	if uri := os.Getenv("MONGO_URI"); uri != "" {
		c.Mongo.URI = uri
	}

	if db := os.Getenv("MONGO_DB_NAME"); db != "" {
		c.Mongo.Database = db
	}

	if stateFile := os.Getenv("DEVICE_STATE_FILE"); stateFile != "" {
		c.State.File = stateFile
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}
}

// setDefaults fills unset fields
func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "monitor-server"
	}

	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}

	if c.MQTT.BrokerURL == "" {
		c.MQTT.BrokerURL = "tcp://localhost:1883"
	}
	if c.MQTT.ClientIDPrefix == "" {
		c.MQTT.ClientIDPrefix = "factory-monitor"
	}
	if c.MQTT.QoS == 0 {
		c.MQTT.QoS = 1
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = 10 * time.Second
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = 30 * time.Second
	}
	if c.MQTT.ReconnectMinInterval == 0 {
		c.MQTT.ReconnectMinInterval = 2 * time.Second
	}
	if c.MQTT.ReconnectMaxInterval == 0 {
		c.MQTT.ReconnectMaxInterval = 30 * time.Second
	}

	if c.MQTT.Topics.Root == "" {
		c.MQTT.Topics.Root = "factory/#"
	}
	if c.MQTT.Topics.QueryRequest == "" {
		c.MQTT.Topics.QueryRequest = "factory/query/logs/request"
	}
	if c.MQTT.Topics.QueryResponse == "" {
		c.MQTT.Topics.QueryResponse = "factory/query/logs/response"
	}
	if c.MQTT.Topics.StatisticsRequest == "" {
		c.MQTT.Topics.StatisticsRequest = "factory/statistics"
	}
	if c.MQTT.Topics.StatisticsResultPattern == "" {
		c.MQTT.Topics.StatisticsResultPattern = "factory/%s/msg/statistics"
	}

	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "factory_monitoring"
	}
	if c.Mongo.DevicesCollection == "" {
		c.Mongo.DevicesCollection = "devices"
	}
	if c.Mongo.AllLogsCollection == "" {
		c.Mongo.AllLogsCollection = "logs_all"
	}
	if c.Mongo.StatisticsCollection == "" {
		c.Mongo.StatisticsCollection = "statistics"
	}
	if c.Mongo.Timeout == 0 {
		c.Mongo.Timeout = 10 * time.Second
	}

	if c.State.File == "" {
		c.State.File = "device_states.txt"
	}

	if c.Statistics.Window == 0 {
		c.Statistics.Window = 24 * time.Hour
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
