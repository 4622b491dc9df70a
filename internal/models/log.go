package models

// LogRecord is the canonical log document written to the store. It is built
// once by the ingest pipeline and never mutated afterwards.
type LogRecord struct {
	ID            string                 `bson:"_id" json:"_id"`
	LogGroup      string                 `bson:"log_group" json:"log_group"`
	LogStream     string                 `bson:"log_stream" json:"log_stream"`
	DeviceID      string                 `bson:"device_id" json:"device_id"`
	DeviceName    string                 `bson:"device_name" json:"device_name"`
	DeviceType    string                 `bson:"device_type" json:"device_type"`
	Location      string                 `bson:"location" json:"location"`
	LogCode       string                 `bson:"log_code" json:"log_code"`
	Severity      string                 `bson:"severity" json:"severity"`
	LogLevel      string                 `bson:"log_level" json:"log_level"`
	Message       string                 `bson:"message" json:"message"`
	Metadata      map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Timestamp     int64                  `bson:"timestamp" json:"timestamp"`
	IngestionTime int64                  `bson:"ingestion_time" json:"ingestion_time"`
	Topic         string                 `bson:"topic" json:"topic"`
}

// LogEntry is the projected field subset returned by log queries.
type LogEntry struct {
	ID         string `bson:"_id" json:"_id,omitempty"`
	DeviceID   string `bson:"device_id" json:"device_id,omitempty"`
	DeviceName string `bson:"device_name" json:"device_name,omitempty"`
	LogLevel   string `bson:"log_level" json:"log_level,omitempty"`
	LogCode    string `bson:"log_code" json:"log_code,omitempty"`
	Severity   string `bson:"severity" json:"severity,omitempty"`
	Message    string `bson:"message" json:"message,omitempty"`
	Location   string `bson:"location" json:"location,omitempty"`
	Timestamp  int64  `bson:"timestamp" json:"timestamp"`
}
