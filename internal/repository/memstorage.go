package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	internalerrors "github.com/Schera-ole/hawkular-client-cli/internal/errors"
	models "github.com/Schera-ole/hawkular-client-cli/internal/model"
)

var (
	_ Repository    = (*MemStorage)(nil)
	_ TriggerLister = (*MemStorage)(nil)
)

type series struct {
	tags   map[string]string
	points []models.Datapoint
}

// MemStorage keeps the metrics of a single tenant in memory.
type MemStorage struct {
	mu       sync.Mutex
	series   map[models.MetricType]map[string]*series
	triggers []models.Trigger
	now      func() time.Time
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		series: make(map[models.MetricType]map[string]*series),
		now:    time.Now,
	}
}

// SetClock replaces the time source used to stamp pushed values.
func (ms *MemStorage) SetClock(now func() time.Time) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.now = now
}

func (ms *MemStorage) lookup(typ models.MetricType, id string, create bool) *series {
	byID, ok := ms.series[typ]
	if !ok {
		if !create {
			return nil
		}
		byID = make(map[string]*series)
		ms.series[typ] = byID
	}
	s, ok := byID[id]
	if !ok && create {
		s = &series{tags: make(map[string]string)}
		byID[id] = s
	}
	return s
}

func (ms *MemStorage) Push(ctx context.Context, typ models.MetricType, id string, value string) error {
	converted, err := models.ConvertValue(typ, value)
	if err != nil {
		return err
	}
	ms.mu.Lock()
	ts := ms.now().UnixMilli()
	ms.mu.Unlock()
	return ms.Write(typ, id, models.Datapoint{Timestamp: ts, Value: converted})
}

// Write appends datapoints with their own timestamps.
func (ms *MemStorage) Write(typ models.MetricType, id string, points ...models.Datapoint) error {
	if typ.Path() == "" {
		return fmt.Errorf("%w: %q", internalerrors.ErrUnknownMetricType, typ)
	}
	if id == "" {
		return fmt.Errorf("%w: empty metric id", internalerrors.ErrInvalidMetricValue)
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s := ms.lookup(typ, id, true)
	s.points = append(s.points, points...)
	return nil
}

// inRange returns the points of s inside [start, end), newest first.
func (s *series) inRange(q models.Query) []models.Datapoint {
	start, end := q.Start.UnixMilli(), q.End.UnixMilli()
	var result []models.Datapoint
	for _, p := range s.points {
		if !q.Start.IsZero() && p.Timestamp < start {
			continue
		}
		if !q.End.IsZero() && p.Timestamp >= end {
			continue
		}
		result = append(result, p)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp > result[j].Timestamp
	})
	return result
}

func (ms *MemStorage) QueryMetric(ctx context.Context, typ models.MetricType, id string, q models.Query) ([]models.Datapoint, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s := ms.lookup(typ, id, false)
	if s == nil {
		return nil, nil
	}
	points := s.inRange(q)
	if q.Limit > 0 && len(points) > q.Limit {
		points = points[:q.Limit]
	}
	return points, nil
}

func (ms *MemStorage) QueryMetricStats(ctx context.Context, typ models.MetricType, id string, q models.Query) ([]models.Bucketpoint, error) {
	if q.BucketDuration <= 0 {
		return nil, fmt.Errorf("bucket duration must be positive, got %v", q.BucketDuration)
	}
	if q.Start.IsZero() || q.End.IsZero() || !q.End.After(q.Start) {
		return nil, fmt.Errorf("stats query needs start before end")
	}

	ms.mu.Lock()
	var points []models.Datapoint
	if s := ms.lookup(typ, id, false); s != nil {
		points = s.inRange(q)
	}
	ms.mu.Unlock()

	step := q.BucketDuration.Milliseconds()
	start, end := q.Start.UnixMilli(), q.End.UnixMilli()
	var buckets []models.Bucketpoint
	for bStart := start; bStart < end; bStart += step {
		bEnd := bStart + step
		var values []float64
		for _, p := range points {
			if p.Timestamp < bStart || p.Timestamp >= bEnd {
				continue
			}
			if v, ok := toFloat(p.Value); ok {
				values = append(values, v)
			}
		}
		buckets = append(buckets, bucketStats(bStart, bEnd, values))
	}
	return buckets, nil
}

func bucketStats(start, end int64, values []float64) models.Bucketpoint {
	b := models.Bucketpoint{Start: start, End: end, Samples: int64(len(values))}
	if len(values) == 0 {
		b.Empty = true
		return b
	}
	sort.Float64s(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	b.Min = values[0]
	b.Max = values[len(values)-1]
	b.Avg = sum / float64(len(values))
	if mid := len(values) / 2; len(values)%2 == 1 {
		b.Median = values[mid]
	} else {
		b.Median = (values[mid-1] + values[mid]) / 2
	}
	return b
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func (ms *MemStorage) QueryMetricDefinitions(ctx context.Context, typ models.MetricType, tags map[string]string) ([]models.MetricDefinition, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var definitions []models.MetricDefinition
	for id, s := range ms.series[typ] {
		if !hasTags(s.tags, tags) {
			continue
		}
		definition := models.MetricDefinition{ID: id, Type: typ}
		if len(s.tags) > 0 {
			definition.Tags = make(map[string]string, len(s.tags))
			for k, v := range s.tags {
				definition.Tags[k] = v
			}
		}
		definitions = append(definitions, definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].ID < definitions[j].ID
	})
	return definitions, nil
}

func hasTags(have, want map[string]string) bool {
	for k, v := range want {
		if got, ok := have[k]; !ok || got != v {
			return false
		}
	}
	return true
}

func (ms *MemStorage) UpdateMetricTags(ctx context.Context, typ models.MetricType, id string, tags map[string]string) error {
	if typ.Path() == "" {
		return fmt.Errorf("%w: %q", internalerrors.ErrUnknownMetricType, typ)
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s := ms.lookup(typ, id, true)
	for k, v := range tags {
		s.tags[k] = v
	}
	return nil
}

// MetricTags returns a copy of the tags of a metric, nil if it does not exist.
func (ms *MemStorage) MetricTags(typ models.MetricType, id string) map[string]string {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s := ms.lookup(typ, id, false)
	if s == nil {
		return nil
	}
	tags := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		tags[k] = v
	}
	return tags
}

func (ms *MemStorage) Status(ctx context.Context) (map[string]string, error) {
	return map[string]string{
		"MetricsService":         "STARTED",
		"Implementation-Version": "memory",
	}, nil
}

// AddTrigger registers an alert trigger.
func (ms *MemStorage) AddTrigger(trigger models.Trigger) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.triggers = append(ms.triggers, trigger)
}

func (ms *MemStorage) ListTriggers(ctx context.Context) ([]models.Trigger, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	triggers := make([]models.Trigger, len(ms.triggers))
	copy(triggers, ms.triggers)
	return triggers, nil
}
