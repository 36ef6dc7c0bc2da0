package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"github.com/Schera-ole/hawkular-client-cli/internal/config"
	models "github.com/Schera-ole/hawkular-client-cli/internal/model"
)

const (
	version     = "0.15.2"
	description = "Read/Write data to and from a Hawkular metric server."
)

// options holds everything parsed from the command line.
type options struct {
	connection config.Flags
	configPath string

	values []string
	tags   []string
	keys   []string

	list       bool
	read       bool
	status     bool
	triggers   bool
	noAutotags bool
	verbose    bool
	version    bool

	metric         metricTypeValue
	start          dateValue
	end            dateValue
	bucketDuration int
	limit          int
}

// query returns the read parameters selected by the options.
func (o *options) query() models.Query {
	return models.Query{
		Start:          o.start.Time,
		End:            o.end.Time,
		Limit:          o.limit,
		BucketDuration: time.Duration(o.bucketDuration) * time.Second,
	}
}

// dateValue is a pflag.Value accepting free-form dates.
type dateValue struct {
	time.Time
}

func (d *dateValue) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.RFC3339)
}

func (d *dateValue) Set(s string) error {
	t, err := dateparse.ParseLocal(s)
	if err != nil {
		return fmt.Errorf("not a valid date: %q", s)
	}
	d.Time = t
	return nil
}

func (d *dateValue) Type() string {
	return "date"
}

// metricTypeValue is a pflag.Value restricted to the known metric types.
type metricTypeValue struct {
	models.MetricType
}

func (m *metricTypeValue) String() string {
	return string(m.MetricType)
}

func (m *metricTypeValue) Set(s string) error {
	t, err := models.ParseMetricType(s)
	if err != nil {
		return err
	}
	m.MetricType = t
	return nil
}

func (m *metricTypeValue) Type() string {
	return "type"
}

// usageError marks errors after which the usage text is printed.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

// newRootCommand builds the command line parser. A fresh command is built for
// every invocation; run is called with the parsed options and positional
// KEY=VALUE operands.
func newRootCommand(opts *options, now time.Time, run func(cmd *cobra.Command, opts *options) error) *cobra.Command {
	opts.metric = metricTypeValue{models.Gauge}
	opts.start = dateValue{now.Add(-config.DefaultReadWindow)}
	opts.end = dateValue{now}

	metricNames := make([]string, len(models.MetricTypes))
	for i, t := range models.MetricTypes {
		metricNames[i] = string(t)
	}

	cmd := &cobra.Command{
		Use:           "hawkular-client-cli [flags] [KEY=VALUE...]",
		Short:         description,
		Long:          description,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.values = args
			return run(cmd, opts)
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.StringVarP(&opts.connection.URL, "url", "U", "", "Hawkular server url")
	flags.BoolVarP(&opts.connection.Insecure, "insecure", "i", false, "allow insecure ssl connection")
	flags.StringVarP(&opts.connection.Tenant, "tenant", "t", "", "Hawkular tenant name")
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultConfigPath, "configurations file path")
	flags.StringVarP(&opts.connection.Password, "password", "p", "", "Hawkular server password")
	flags.StringVarP(&opts.connection.Token, "token", "T", "", "Hawkular server token")
	flags.StringVarP(&opts.connection.Username, "username", "u", "", "Hawkular server username")
	// repeatable, values are taken verbatim so they may contain commas
	flags.StringArrayVarP(&opts.tags, "tags", "a", nil,
		"a TAG=VALUE tag, repeat for more [when used with keys, will update tags for these keys]")
	flags.StringArrayVarP(&opts.keys, "keys", "k", nil,
		"a key, repeat for more [when used with tags, will update tags for these keys]")
	flags.BoolVarP(&opts.list, "list", "l", false,
		"list all registered keys, can be used with --tags for filtering")
	flags.BoolVarP(&opts.read, "read", "r", false,
		"read data for keys or tag list [requires --keys or --tags]")
	flags.VarP(&opts.metric, "metric", "m",
		"use specific metrics type ["+strings.Join(metricNames, ", ")+"]")
	flags.VarP(&opts.start, "start", "s", "the start date for metrics reading")
	flags.VarP(&opts.end, "end", "e", "the end date for metrics reading")
	flags.IntVarP(&opts.bucketDuration, "bucketDuration", "b", 0,
		"the metrics statistics reading bucket duration in seconds")
	flags.IntVar(&opts.limit, "limit", config.DefaultLimit, "limit for metrics reading")
	flags.BoolVarP(&opts.verbose, "verbose", "V", false, "be more verbose")
	flags.BoolVar(&opts.status, "status", false, "query hawkular status")
	flags.BoolVar(&opts.triggers, "triggers", false, "query hawkular alert triggers")
	flags.BoolVarP(&opts.noAutotags, "no-autotags", "N", false, "do not update tags using the config file")
	flags.BoolVarP(&opts.version, "version", "v", false, "print version")

	return cmd
}
