// Package repository defines the contract of a Hawkular metrics backend and an
// in-memory implementation of it.
package repository

import (
	"context"

	models "github.com/Schera-ole/hawkular-client-cli/internal/model"
)

// Repository is the set of metrics operations the CLI needs from a backend.
//
// The Hawkular REST client implements it against a real server; MemStorage
// implements it in memory.
type Repository interface {
	// Push appends a single value, stamped with the current time.
	Push(ctx context.Context, typ models.MetricType, id string, value string) error

	// QueryMetric returns raw datapoints of a metric, newest first.
	QueryMetric(ctx context.Context, typ models.MetricType, id string, q models.Query) ([]models.Datapoint, error)

	// QueryMetricStats returns bucketed statistics of a metric.
	QueryMetricStats(ctx context.Context, typ models.MetricType, id string, q models.Query) ([]models.Bucketpoint, error)

	// QueryMetricDefinitions lists metrics of a type carrying all of the given tags.
	QueryMetricDefinitions(ctx context.Context, typ models.MetricType, tags map[string]string) ([]models.MetricDefinition, error)

	// UpdateMetricTags adds or replaces tags of a metric.
	UpdateMetricTags(ctx context.Context, typ models.MetricType, id string, tags map[string]string) error

	// Status reports the server status.
	Status(ctx context.Context) (map[string]string, error)
}

// TriggerLister is implemented by backends that expose alert triggers.
type TriggerLister interface {
	ListTriggers(ctx context.Context) ([]models.Trigger, error)
}
