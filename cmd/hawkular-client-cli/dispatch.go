package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/getsentry/raven-go"
	"go.uber.org/zap"

	"github.com/Schera-ole/hawkular-client-cli/internal/config"
	"github.com/Schera-ole/hawkular-client-cli/internal/hawkular"
	models "github.com/Schera-ole/hawkular-client-cli/internal/model"
	"github.com/Schera-ole/hawkular-client-cli/internal/repository"
	"github.com/Schera-ole/hawkular-client-cli/internal/service"
	"github.com/Schera-ole/hawkular-client-cli/internal/tagging"
)

// dispatcher runs the actions selected on the command line.
type dispatcher struct {
	opts   *options
	stdout io.Writer
	getenv func(string) string
	logger *zap.SugaredLogger

	cfg     *config.File
	service *service.MetricsService
	sentry  *raven.Client

	tags  map[string]string
	pairs []models.Pair
}

// action is one step of a run.
type action struct {
	name    string
	enabled bool
	run     func(ctx context.Context) error
}

func (d *dispatcher) execute(ctx context.Context) error {
	d.logger.Debugw("Reading config file", "path", d.opts.configPath)
	cfg, err := config.LoadFile(d.opts.configPath)
	if err != nil {
		return err
	}
	d.cfg = cfg

	settings, err := config.Resolve(d.opts.connection, cfg, d.getenv)
	var missing *config.MissingFieldError
	if errors.As(err, &missing) {
		return &usageError{err: err}
	}
	if err != nil {
		return err
	}

	if err := d.parseOperands(); err != nil {
		return &usageError{err: err}
	}

	if dsn := cfg.Application.SentryDSN; dsn != "" {
		d.sentry, err = raven.New(dsn)
		if err != nil {
			d.logger.Warnw("error reporting disabled", "error", err)
		} else {
			d.sentry.SetRelease(version)
			defer d.sentry.Close()
		}
	}

	params := hawkular.Parameters{
		URL:      settings.URL,
		Tenant:   settings.Tenant,
		Token:    settings.Token,
		Username: settings.Username,
		Password: settings.Password,
		Insecure: settings.Insecure,
		Logger:   d.logger,
	}
	client, err := hawkular.NewClient(params)
	if err != nil {
		return fmt.Errorf("not connected: %w", err)
	}
	defer client.Close()
	d.logger.Debugw("Connected", "url", settings.URL, "tenant", settings.Tenant)

	// the alerts API is optional
	var alerts repository.TriggerLister
	if alertsClient, err := hawkular.NewAlertsClient(params); err != nil {
		d.logger.Debugw("alerts client unavailable", "error", err)
	} else {
		defer alertsClient.Close()
		alerts = alertsClient
	}

	d.service = service.NewMetricsService(client, alerts, d.stdout, d.logger)
	if !d.service.HasAlerts() && d.opts.triggers {
		d.logger.Warnw("alerts API is not available", "url", settings.URL)
	}

	for _, a := range d.actions() {
		if !a.enabled {
			continue
		}
		d.logger.Debugw("running action", "action", a.name)
		if err := a.run(ctx); err != nil {
			d.report(a.name, err)
			return err
		}
	}
	return nil
}

// parseOperands validates the tag flags and the positional KEY=VALUE operands
// before anything is sent.
func (d *dispatcher) parseOperands() error {
	tags, err := models.ParseTags(d.opts.tags)
	if err != nil {
		return fmt.Errorf("invalid tag: %w", err)
	}
	pairs, err := models.ParsePairs(d.opts.values)
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	d.tags = tags
	d.pairs = pairs
	return nil
}

// actions lists every step in the order it runs.
func (d *dispatcher) actions() []action {
	opts := d.opts
	typ := opts.metric.MetricType
	return []action{
		{
			name:    "status",
			enabled: opts.status,
			run:     d.service.Status,
		},
		{
			name:    "triggers",
			enabled: opts.triggers,
			run:     d.service.Triggers,
		},
		{
			name:    "list",
			enabled: opts.list,
			run: func(ctx context.Context) error {
				return d.service.ListDefinitions(ctx, typ, d.tags)
			},
		},
		{
			name:    "read keys",
			enabled: opts.read && len(opts.keys) > 0,
			run: func(ctx context.Context) error {
				return d.service.ReadByKeys(ctx, typ, opts.keys, opts.query())
			},
		},
		{
			name:    "read tags",
			enabled: opts.read && len(d.tags) > 0,
			run: func(ctx context.Context) error {
				return d.service.ReadByTags(ctx, typ, d.tags, opts.query())
			},
		},
		{
			name:    "push",
			enabled: len(d.pairs) > 0,
			run: func(ctx context.Context) error {
				return d.service.Push(ctx, typ, d.pairs)
			},
		},
		{
			name:    "update pushed keys",
			enabled: len(d.pairs) > 0,
			run: func(ctx context.Context) error {
				keys := make([]string, len(d.pairs))
				for i, pair := range d.pairs {
					keys[i] = pair.Key
				}
				return d.updateTags(ctx, keys)
			},
		},
		{
			name:    "update keys",
			enabled: len(opts.keys) > 0 && len(d.tags) > 0,
			run: func(ctx context.Context) error {
				return d.updateTags(ctx, opts.keys)
			},
		},
	}
}

// updateTags compiles the config rules, unless disabled, and applies them
// together with the explicit tags.
func (d *dispatcher) updateTags(ctx context.Context, keys []string) error {
	var engine *tagging.Engine
	if !d.opts.noAutotags {
		var err error
		engine, err = tagging.Compile(d.cfg.Rules)
		if err != nil {
			return err
		}
		d.logger.Debugw("tagging rules compiled", "rules", engine.Len())
	}
	return d.service.UpdateTags(ctx, d.opts.metric.MetricType, keys, d.tags, engine)
}

func (d *dispatcher) report(name string, err error) {
	d.logger.Debugw("action failed", "action", name, "error", err)
	if d.sentry == nil {
		return
	}
	d.sentry.CaptureErrorAndWait(err, map[string]string{"action": name})
}
