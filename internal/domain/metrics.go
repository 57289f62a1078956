package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MetricKind tells the sink how to interpret a submitted value.
type MetricKind string

const (
	// Gauge is an instantaneous reading submitted as-is.
	Gauge MetricKind = "gauge"
	// Rate is a monotonically increasing counter; the sink derives a per-interval rate.
	Rate MetricKind = "rate"
)

// ParseMetricKind maps "gauge"/"rate" (case-insensitive) to a MetricKind.
func ParseMetricKind(s string) (MetricKind, error) {
	switch MetricKind(strings.ToLower(strings.TrimSpace(s))) {
	case Gauge:
		return Gauge, nil
	case Rate:
		return Rate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Mapping binds a source counter to a target metric name and kind.
type Mapping struct {
	Name    string     `json:"metric"`
	Kind    MetricKind `json:"type"`
	Counter string     `json:"counter"`
}

// AggregateEntity is the provider's summary pseudo-entity; it never yields metrics.
const AggregateEntity = "_Total"

// SiteTagPrefix prefixes the per-entity tag.
const SiteTagPrefix = "site:"

// EntityRecord is one monitored entity's counters for a single sample.
type EntityRecord struct {
	Counters map[string]any
	Name     string
}

// Counter reports the raw value of a counter and whether the record carries it.
func (r EntityRecord) Counter(name string) (any, bool) {
	if r.Counters == nil {
		return nil, false
	}
	v, ok := r.Counters[name]
	return v, ok
}

// IsAggregate reports whether the record is the summary pseudo-entity.
func (r EntityRecord) IsAggregate() bool {
	return r.Name == AggregateEntity
}

// Sample is a single metric submission.
type Sample struct {
	Time  time.Time  `json:"ts"`
	Host  string     `json:"host,omitempty"`
	Name  string     `json:"metric"`
	Kind  MetricKind `json:"type"`
	Tags  []string   `json:"tags"`
	Value float64    `json:"value"`
}

// ToFloat coerces a raw counter value to float64.
func ToFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return checkFinite(x)
	case float32:
		return checkFinite(float64(x))
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrConversion, x.String())
		}
		return checkFinite(f)
	case string:
		// 64-bit WMI counters arrive as decimal strings.
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrConversion, x)
		}
		return checkFinite(f)
	case nil:
		return 0, fmt.Errorf("%w: nil value", ErrConversion)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrConversion, v)
	}
}

func checkFinite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: non-finite value %v", ErrConversion, f)
	}
	return f, nil
}

// PassReport summarizes one collection pass over one instance.
type PassReport struct {
	Err         error
	Host        string
	Duration    time.Duration
	Entities    int
	Aggregates  int
	Submitted   int
	Missing     int
	Conversions int
}
