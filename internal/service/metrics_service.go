// Package service provides the actions the CLI runs against a metrics backend.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	internalerrors "github.com/Schera-ole/hawkular-client-cli/internal/errors"
	models "github.com/Schera-ole/hawkular-client-cli/internal/model"
	"github.com/Schera-ole/hawkular-client-cli/internal/repository"
	"github.com/Schera-ole/hawkular-client-cli/internal/tagging"
)

const timeLayout = "2006-01-02 15:04:05"

// MetricsService runs read, write and tagging actions and prints their results.
//
// It delegates every server call to the underlying repository implementation.
type MetricsService struct {
	// repository is the metrics backend
	repository repository.Repository

	// alerts is optional; nil means the backend has no alerts API
	alerts repository.TriggerLister

	out    io.Writer
	logger *zap.SugaredLogger
}

// NewMetricsService creates a MetricsService writing its output to out.
func NewMetricsService(repo repository.Repository, alerts repository.TriggerLister, out io.Writer, logger *zap.SugaredLogger) *MetricsService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MetricsService{repository: repo, alerts: alerts, out: out, logger: logger}
}

// HasAlerts reports whether trigger listing is available.
func (ms *MetricsService) HasAlerts() bool {
	return ms.alerts != nil
}

// Status prints the server status.
func (ms *MetricsService) Status(ctx context.Context) error {
	status, err := ms.repository.Status(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(ms.out, "%s: %s\n", k, status[k])
	}
	fmt.Fprintln(ms.out)
	return nil
}

// Triggers prints every alert trigger.
func (ms *MetricsService) Triggers(ctx context.Context) error {
	if ms.alerts == nil {
		return internalerrors.ErrAlertsUnavailable
	}
	triggers, err := ms.alerts.ListTriggers(ctx)
	if err != nil {
		return err
	}
	for _, trigger := range triggers {
		fmt.Fprintln(ms.out, "key: ", trigger.ID)
		fmt.Fprintln(ms.out, "name:", trigger.Name)
		fmt.Fprintln(ms.out, "description:", trigger.Description)
		fmt.Fprintln(ms.out, "enabled:", trigger.Enabled)
		fmt.Fprintln(ms.out)
	}
	return nil
}

// ListDefinitions prints the metric definitions of typ matching tags.
func (ms *MetricsService) ListDefinitions(ctx context.Context, typ models.MetricType, tags map[string]string) error {
	definitions, err := ms.repository.QueryMetricDefinitions(ctx, typ, tags)
	if err != nil {
		return err
	}
	for _, definition := range definitions {
		fmt.Fprintln(ms.out, "key: ", definition.ID)
		fmt.Fprintln(ms.out, "tags:", formatTagMap(definition.Tags))
		fmt.Fprintln(ms.out)
	}
	return nil
}

func formatTagMap(tags map[string]string) string {
	if len(tags) == 0 {
		return "{}"
	}
	return "{" + models.FormatTags(tags) + "}"
}

// ReadByKeys prints values of every key. With a positive bucket duration
// bucket statistics are printed instead of raw values.
func (ms *MetricsService) ReadByKeys(ctx context.Context, typ models.MetricType, keys []string, q models.Query) error {
	for _, key := range keys {
		if err := ms.readKey(ctx, typ, key, q); err != nil {
			return err
		}
	}
	return nil
}

// ReadByTags prints values of every metric of typ carrying all of tags.
func (ms *MetricsService) ReadByTags(ctx context.Context, typ models.MetricType, tags map[string]string, q models.Query) error {
	definitions, err := ms.repository.QueryMetricDefinitions(ctx, typ, tags)
	if err != nil {
		return err
	}
	for _, definition := range definitions {
		if err := ms.readKey(ctx, typ, definition.ID, q); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsService) readKey(ctx context.Context, typ models.MetricType, key string, q models.Query) error {
	fmt.Fprintln(ms.out, "key:", key)
	if q.BucketDuration > 0 {
		buckets, err := ms.repository.QueryMetricStats(ctx, typ, key, q)
		if err != nil {
			return err
		}
		fmt.Fprintln(ms.out, "values:")
		for _, b := range buckets {
			fmt.Fprintf(ms.out, "     %d ( %s ) avg: %s [ %d ]\n", b.Start, formatMillis(b.Start), formatValue(b.Avg), b.Samples)
		}
	} else {
		points, err := ms.repository.QueryMetric(ctx, typ, key, q)
		if err != nil {
			return err
		}
		fmt.Fprintln(ms.out, "values:")
		for _, p := range points {
			fmt.Fprintf(ms.out, "     %d ( %s ) %s\n", p.Timestamp, formatMillis(p.Timestamp), formatValue(p.Value))
		}
	}
	fmt.Fprintln(ms.out)
	return nil
}

// Push sends every pair as a single value.
func (ms *MetricsService) Push(ctx context.Context, typ models.MetricType, pairs []models.Pair) error {
	for _, pair := range pairs {
		ms.logger.Debugw("push", "key", pair.Key, "value", pair.Value)
		if err := ms.repository.Push(ctx, typ, pair.Key, pair.Value); err != nil {
			return fmt.Errorf("push %s: %w", pair.Key, err)
		}
	}
	return nil
}

// UpdateTags applies explicit tags and rule-derived tags to every key.
// A nil engine applies explicit tags only. Keys ending up with no tags are
// skipped without contacting the server.
func (ms *MetricsService) UpdateTags(ctx context.Context, typ models.MetricType, keys []string, explicit map[string]string, engine *tagging.Engine) error {
	for _, key := range keys {
		tags, err := engine.Tags(key, explicit)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			ms.logger.Debugw("no tags to update", "key", key)
			continue
		}
		ms.logger.Debugw("update tags", "key", key, "tags", tags)
		if err := ms.repository.UpdateMetricTags(ctx, typ, key, tags); err != nil {
			return fmt.Errorf("update tags of %s: %w", key, err)
		}
	}
	return nil
}

// formatValue prints numbers in plain decimal notation, never with an exponent.
func formatValue(v any) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return fmt.Sprint(v)
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(timeLayout)
}
