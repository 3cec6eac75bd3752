package domain

import (
	"math"
	"time"
)

// StepSample is one raw observation from a step-counter sensor.
// Count is the cumulative counter value as reported by the sensor; it only
// moves backwards when the counting device resets.
type StepSample struct {
	SensorID     string    `json:"sensor_id"`
	Timestamp    time.Time `json:"ts"`
	Seq          uint64    `json:"seq"`
	Count        float64   `json:"count"`
	Values       []float64 `json:"values,omitempty"`
	Accuracy     Accuracy  `json:"accuracy,omitempty"`
	TransformVer uint16    `json:"transform_ver"`
}

// RawValues returns the values the sensor reported, falling back to the count
// when the source only supplies the counter.
func (s *StepSample) RawValues() []float64 {
	if len(s.Values) > 0 {
		return s.Values
	}
	return []float64{s.Count}
}

// Finite reports whether the count and every raw value are real numbers.
func (s *StepSample) Finite() bool {
	if math.IsNaN(s.Count) || math.IsInf(s.Count, 0) {
		return false
	}
	for _, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Accuracy mirrors the sensor status levels a host platform reports.
type Accuracy int

const (
	AccuracyUnknown Accuracy = iota
	AccuracyUnreliable
	AccuracyLow
	AccuracyMedium
	AccuracyHigh
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyUnreliable:
		return "unreliable"
	case AccuracyLow:
		return "low"
	case AccuracyMedium:
		return "medium"
	case AccuracyHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseAccuracy maps a textual status onto an Accuracy level.
func ParseAccuracy(s string) Accuracy {
	switch s {
	case "unreliable":
		return AccuracyUnreliable
	case "low":
		return AccuracyLow
	case "medium":
		return AccuracyMedium
	case "high":
		return AccuracyHigh
	default:
		return AccuracyUnknown
	}
}

// SensorInfo describes the step-counter sensor backing a collector.
type SensorInfo struct {
	Name    string `json:"name"`
	Vendor  string `json:"vendor"`
	Version int    `json:"version"`
}
