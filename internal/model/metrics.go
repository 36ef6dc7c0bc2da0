// Package models defines the data structures exchanged with a Hawkular server.
package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	internalerrors "github.com/Schera-ole/hawkular-client-cli/internal/errors"
)

// MetricType selects which kind of Hawkular metric an operation works on.
type MetricType string

const (
	Gauge        MetricType = "gauge"
	Counter      MetricType = "counter"
	String       MetricType = "string"
	Availability MetricType = "availability"
)

// MetricTypes lists every supported type in the order the CLI shows them.
var MetricTypes = []MetricType{Gauge, Counter, String, Availability}

// ParseMetricType looks up a MetricType by its name.
func ParseMetricType(s string) (MetricType, error) {
	for _, t := range MetricTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", internalerrors.ErrUnknownMetricType, s)
}

// Path returns the REST path segment of the type, e.g. "gauges".
func (t MetricType) Path() string {
	switch t {
	case Gauge:
		return "gauges"
	case Counter:
		return "counters"
	case String:
		return "strings"
	case Availability:
		return "availability"
	}
	return ""
}

// MetricTypeFromPath is the inverse of MetricType.Path.
func MetricTypeFromPath(segment string) (MetricType, bool) {
	for _, t := range MetricTypes {
		if t.Path() == segment {
			return t, true
		}
	}
	return "", false
}

// Datapoint is a single raw sample.
type Datapoint struct {
	// Timestamp is in milliseconds since the epoch
	Timestamp int64 `json:"timestamp"`

	// Value is a number for gauges and counters (json.Number when read back
	// from a server), a string otherwise
	Value any `json:"value"`
}

// Bucketpoint is one bucket of a statistics query.
type Bucketpoint struct {
	Start   int64   `json:"start"`
	End     int64   `json:"end"`
	Min     float64 `json:"min"`
	Avg     float64 `json:"avg"`
	Median  float64 `json:"median"`
	Max     float64 `json:"max"`
	Samples int64   `json:"samples"`
	Empty   bool    `json:"empty"`
}

// MetricDefinition describes a metric known to the server.
type MetricDefinition struct {
	ID       string            `json:"id"`
	Type     MetricType        `json:"type,omitempty"`
	TenantID string            `json:"tenantId,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// MetricsDTO is the body element of a raw data write request.
type MetricsDTO struct {
	// ID is the metric key
	ID string `json:"id"`

	// Data holds the samples to append
	Data []Datapoint `json:"data"`
}

// Trigger is an alert trigger definition.
type Trigger struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// Query holds the time range and paging parameters of a read.
type Query struct {
	Start          time.Time
	End            time.Time
	Limit          int
	BucketDuration time.Duration
}

// Pair is a KEY=VALUE operand from the command line.
type Pair struct {
	Key   string
	Value string
}

// ParsePair splits s on the first '='.
func ParsePair(s string) (Pair, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return Pair{}, fmt.Errorf("%w: %q", internalerrors.ErrInvalidPair, s)
	}
	return Pair{Key: key, Value: value}, nil
}

// ParsePairs parses every operand of values, stopping at the first bad one.
func ParsePairs(values []string) ([]Pair, error) {
	pairs := make([]Pair, 0, len(values))
	for _, v := range values {
		p, err := ParsePair(v)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// ParseTags turns TAG=VALUE operands into a map. Later duplicates win.
func ParseTags(values []string) (map[string]string, error) {
	tags := make(map[string]string, len(values))
	for _, v := range values {
		p, err := ParsePair(v)
		if err != nil {
			return nil, err
		}
		tags[p.Key] = p.Value
	}
	return tags, nil
}

// FormatTags renders tags as "k1:v1,k2:v2" with sorted keys, the form used by
// the definitions tag filter.
func FormatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+tags[k])
	}
	return strings.Join(parts, ",")
}

// ConvertValue turns a command-line value into the JSON value the server
// expects for t.
func ConvertValue(t MetricType, raw string) (any, error) {
	switch t {
	case Gauge:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: gauge value %q should be a float", internalerrors.ErrInvalidMetricValue, raw)
		}
		return v, nil
	case Counter:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: counter value %q should be an integer", internalerrors.ErrInvalidMetricValue, raw)
		}
		return v, nil
	case String:
		return raw, nil
	case Availability:
		switch v := strings.ToLower(raw); v {
		case "up", "down", "unknown":
			return v, nil
		}
		return nil, fmt.Errorf("%w: availability value %q should be up, down or unknown", internalerrors.ErrInvalidMetricValue, raw)
	}
	return nil, fmt.Errorf("%w: %q", internalerrors.ErrUnknownMetricType, t)
}
