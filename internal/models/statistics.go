package models

// StatisticsPayload is the caller-supplied pass/fail summary stored with a
// snapshot. Missing fields default to zero on save.
type StatisticsPayload struct {
	Total       int64   `bson:"total" json:"total"`
	Pass        int64   `bson:"pass" json:"pass"`
	Fail        int64   `bson:"fail" json:"fail"`
	FailureRate float64 `bson:"failure_rate" json:"failure_rate"`
}

// StatisticsSnapshot is one persisted computation batch for a device.
type StatisticsSnapshot struct {
	ID         string            `bson:"_id" json:"_id"`
	DeviceID   string            `bson:"device_id" json:"device_id"`
	LogCode    string            `bson:"log_code" json:"log_code"`
	Statistics StatisticsPayload `bson:"statistics" json:"statistics"`
	TimeRange  TimeRange         `bson:"time_range" json:"time_range"`
	CreatedAt  int64             `bson:"created_at" json:"created_at"`
}
