package models

// Log codes with pipeline-level meaning.
const (
	LogCodeShutdown = "SHD"
	LogCodeStart    = "STR"
	LogCodeSpeed    = "SPD"
	LogCodeTemp     = "TMP"
)

// AllDevices is the statistics request sentinel for "every device".
const AllDevices = "All"

// LogEventPayload is the JSON body of a log or control event.
type LogEventPayload struct {
	LogCode   string                 `json:"log_code"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp int64                  `json:"timestamp,omitempty"`
}

// TimeRange is an inclusive epoch-millisecond interval.
type TimeRange struct {
	Start int64 `bson:"start" json:"start"`
	End   int64 `bson:"end" json:"end"`
}

// QueryFilters narrows a log query. Zero-valued fields are ignored.
type QueryFilters struct {
	DeviceID  string     `json:"device_id,omitempty"`
	LogLevel  string     `json:"log_level,omitempty"`
	LogCode   string     `json:"log_code,omitempty"`
	Severity  string     `json:"severity,omitempty"`
	TimeRange *TimeRange `json:"time_range,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// QueryRequest is a log query received on the query request topic.
type QueryRequest struct {
	QueryID   string        `json:"query_id"`
	QueryType string        `json:"query_type"`
	Filters   *QueryFilters `json:"filters,omitempty"`
}

// QueryResponse is a successful query result.
type QueryResponse struct {
	QueryID string     `json:"query_id"`
	Status  string     `json:"status"`
	Count   int        `json:"count"`
	Data    []LogEntry `json:"data"`
}

// QueryError is a structured error response carrying the original query id.
type QueryError struct {
	QueryID string `json:"query_id"`
	Status  string `json:"status"`
	Error   string `json:"error"`
}

// Statistics request actions. An empty action computes speed statistics.
const (
	StatsActionCompute      = "compute"
	StatsActionSaveSnapshot = "save_snapshot"
	StatsActionGetSnapshot  = "get_snapshot"
)

// StatisticsRequest is received on the statistics request topic.
type StatisticsRequest struct {
	DeviceID      string                 `json:"device_id"`
	RequestID     string                 `json:"request_id,omitempty"`
	TimeRange     *TimeRange             `json:"time_range,omitempty"`
	Action        string                 `json:"action,omitempty"`
	LogCode       string                 `json:"log_code,omitempty"`
	Statistics    map[string]interface{} `json:"statistics,omitempty"`
	ResponseTopic string                 `json:"response_topic,omitempty"`
}

// StatisticsResult is published per device on its statistics topic.
type StatisticsResult struct {
	DeviceID     string `json:"device_id"`
	Average      int64  `json:"average"`
	CurrentSpeed int64  `json:"current_speed"`
	RequestID    string `json:"request_id,omitempty"`
	Error        string `json:"error,omitempty"`
}
