// Package severity maps a log code and metadata reading onto a severity
// tier using the device's own threshold table.
package severity

import (
	"encoding/json"

	"github.com/factory-monitor/monitor-server/internal/models"
)

// Tier is an ordinal severity classification.
type Tier string

const (
	TierUnknown  Tier = "UNKNOWN"
	TierLow      Tier = "LOW"
	TierMedium   Tier = "MEDIUM"
	TierHigh     Tier = "HIGH"
	TierCritical Tier = "CRITICAL"
)

var tierRank = map[Tier]int{
	TierUnknown:  0,
	TierLow:      1,
	TierMedium:   2,
	TierHigh:     3,
	TierCritical: 4,
}

// Rank returns the tier's position in the LOW < MEDIUM < HIGH < CRITICAL
// order. UNKNOWN ranks below LOW.
func (t Tier) Rank() int {
	return tierRank[t]
}

// Rule evaluates one log code against metadata and the device thresholds.
// A rule must return TierMedium for anything it cannot interpret.
type Rule func(metadata map[string]interface{}, thresholds map[string]models.Thresholds) Tier

var rules = map[string]Rule{}

// Register installs the rule for a log code. New codes are added here;
// callers of Evaluate never change.
func Register(logCode string, rule Rule) {
	rules[logCode] = rule
}

func init() {
	Register(models.LogCodeTemp, thresholdRule("temperature"))
}

// thresholdRule reads a numeric metadata field and compares it against the
// same-named threshold entry, highest tier first.
func thresholdRule(metric string) Rule {
	return func(metadata map[string]interface{}, thresholds map[string]models.Thresholds) Tier {
		bounds, ok := thresholds[metric]
		if !ok {
			return TierMedium
		}
		value, ok := numeric(metadata[metric])
		if !ok {
			return TierMedium
		}
		switch {
		case value >= bounds.Critical:
			return TierCritical
		case value >= bounds.High:
			return TierHigh
		case value >= bounds.Medium:
			return TierMedium
		default:
			return TierLow
		}
	}
}

// Evaluate returns the tier for a log event. Devices without a threshold
// table yield UNKNOWN; log codes without a registered rule yield MEDIUM.
func Evaluate(logCode string, metadata map[string]interface{}, thresholds map[string]models.Thresholds) Tier {
	if len(thresholds) == 0 {
		return TierUnknown
	}
	rule, ok := rules[logCode]
	if !ok {
		return TierMedium
	}
	return rule(metadata, thresholds)
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
