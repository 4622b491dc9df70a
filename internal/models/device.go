package models

// Thresholds holds the tier bounds for a single metric.
type Thresholds struct {
	Medium   float64 `bson:"medium" json:"medium"`
	High     float64 `bson:"high" json:"high"`
	Critical float64 `bson:"critical" json:"critical"`
}

// Device represents a registered factory-floor device. The registry is
// externally owned; this service only reads it.
type Device struct {
	ID         string                `bson:"_id" json:"device_id"`
	Code       string                `bson:"device_code" json:"device_code"`
	Name       string                `bson:"device_name" json:"device_name"`
	Type       string                `bson:"device_type" json:"device_type"`
	Location   string                `bson:"location" json:"location"`
	LogGroup   string                `bson:"log_group" json:"log_group"`
	Thresholds map[string]Thresholds `bson:"thresholds,omitempty" json:"thresholds,omitempty"`
}
