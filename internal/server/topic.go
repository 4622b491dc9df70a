package server

import "strings"

// MessageKind is the classified kind of an inbound message.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindQuery
	KindStatistics
	KindDevice // device-scoped topic, carries control codes
	KindLog    // log-event topic {root}/{device_id}/log/{log_level}
)

// Classification is the parsed identity of an inbound topic.
type Classification struct {
	Kind     MessageKind
	DeviceID string
	LogLevel string
}

// Classifier parses topics with a fixed precedence: the exact request
// topics are checked before the generic device-scoped pattern, which is
// refined to the log-event pattern last. The order removes any ambiguity
// between request topics living under the device root wildcard.
type Classifier struct {
	queryTopic string
	statsTopic string
	rootPrefix string
}

// NewClassifier builds a classifier. root is the subscription filter for
// device topics (for example "factory/#").
func NewClassifier(queryTopic, statsTopic, root string) *Classifier {
	return &Classifier{
		queryTopic: queryTopic,
		statsTopic: statsTopic,
		rootPrefix: strings.TrimSuffix(root, "/#"),
	}
}

// Classify parses a topic.
func (c *Classifier) Classify(topic string) Classification {
	if topic == c.queryTopic {
		return Classification{Kind: KindQuery}
	}
	if topic == c.statsTopic {
		return Classification{Kind: KindStatistics}
	}

	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[0] != c.rootPrefix || parts[1] == "" {
		return Classification{Kind: KindUnknown}
	}

	if len(parts) == 4 && parts[2] == "log" && parts[3] != "" {
		return Classification{Kind: KindLog, DeviceID: parts[1], LogLevel: parts[3]}
	}

	return Classification{Kind: KindDevice, DeviceID: parts[1]}
}
